package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fatwa-rag-go/internal/model"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ConversationRepository 定义了对话历史记录的操作接口。
type ConversationRepository interface {
	GetOrCreateConversationID(ctx context.Context, sessionID string) (string, error)
	GetConversationHistory(ctx context.Context, conversationID string) ([]model.ChatMessage, error)
	UpdateConversationHistory(ctx context.Context, conversationID string, messages []model.ChatMessage) error
}

type redisConversationRepository struct {
	redisClient *redis.Client
	maxMessages int
	ttl         time.Duration
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
// 历史只保留最近 maxMessages 条消息。
func NewConversationRepository(redisClient *redis.Client, maxMessages int, ttl time.Duration) ConversationRepository {
	if maxMessages <= 0 {
		maxMessages = 20
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &redisConversationRepository{redisClient: redisClient, maxMessages: maxMessages, ttl: ttl}
}

// GetOrCreateConversationID 获取会话当前的对话ID，不存在时创建。
func (r *redisConversationRepository) GetOrCreateConversationID(ctx context.Context, sessionID string) (string, error) {
	sessionKey := fmt.Sprintf("session:%s:current_conversation", sessionID)
	convID, err := r.redisClient.Get(ctx, sessionKey).Result()
	if err == redis.Nil {
		convID = uuid.NewString()
		if err := r.redisClient.Set(ctx, sessionKey, convID, r.ttl).Err(); err != nil {
			return "", fmt.Errorf("failed to set conversation id: %w", err)
		}
		return convID, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get conversation id: %w", err)
	}
	return convID, nil
}

// GetConversationHistory 从 Redis 获取对话历史记录。
func (r *redisConversationRepository) GetConversationHistory(ctx context.Context, conversationID string) ([]model.ChatMessage, error) {
	key := fmt.Sprintf("conversation:%s", conversationID)
	jsonData, err := r.redisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return []model.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	var messages []model.ChatMessage
	if err := json.Unmarshal([]byte(jsonData), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation history: %w", err)
	}
	return messages, nil
}

// UpdateConversationHistory 在 Redis 中更新对话历史记录。
func (r *redisConversationRepository) UpdateConversationHistory(ctx context.Context, conversationID string, messages []model.ChatMessage) error {
	key := fmt.Sprintf("conversation:%s", conversationID)
	if len(messages) > r.maxMessages {
		messages = messages[len(messages)-r.maxMessages:]
	}
	jsonData, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}
	if err := r.redisClient.Set(ctx, key, jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set conversation history: %w", err)
	}
	return nil
}
