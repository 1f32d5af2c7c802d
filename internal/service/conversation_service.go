package service

import (
	"context"
	"time"

	"fatwa-rag-go/internal/model"
	"fatwa-rag-go/internal/repository"
)

// ConversationService 管理按会话隔离的对话记忆。
type ConversationService interface {
	GetConversationHistory(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	AddExchange(ctx context.Context, sessionID, question, answer string) error
}

type conversationService struct {
	repo repository.ConversationRepository
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(repo repository.ConversationRepository) ConversationService {
	return &conversationService{repo: repo}
}

// GetConversationHistory 获取会话当前对话的消息历史。
func (s *conversationService) GetConversationHistory(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	conversationID, err := s.repo.GetOrCreateConversationID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetConversationHistory(ctx, conversationID)
}

// AddExchange 追加一轮问答，超出上限的旧消息由仓库裁剪。
func (s *conversationService) AddExchange(ctx context.Context, sessionID, question, answer string) error {
	conversationID, err := s.repo.GetOrCreateConversationID(ctx, sessionID)
	if err != nil {
		return err
	}
	history, err := s.repo.GetConversationHistory(ctx, conversationID)
	if err != nil {
		return err
	}
	now := time.Now()
	history = append(history,
		model.ChatMessage{Role: "user", Content: question, Timestamp: now},
		model.ChatMessage{Role: "assistant", Content: answer, Timestamp: now},
	)
	return s.repo.UpdateConversationHistory(ctx, conversationID, history)
}
