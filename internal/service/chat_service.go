package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fatwa-rag-go/internal/config"
	"fatwa-rag-go/internal/model"
	"fatwa-rag-go/pkg/llm"
	"fatwa-rag-go/pkg/log"

	"github.com/gorilla/websocket"
)

// ChatService 在检索结果之上生成流式回答。
type ChatService interface {
	StreamResponse(ctx context.Context, query string, lang model.Language, sessionID string, w llm.MessageWriter, shouldStop func() bool) error
}

type chatService struct {
	retrieval     RetrievalService
	llmClient     llm.Client
	conversations ConversationService
	llmCfg        config.LLMConfig
	retrievalCfg  config.RetrievalConfig
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(retrieval RetrievalService, llmClient llm.Client, conversations ConversationService, llmCfg config.LLMConfig, retrievalCfg config.RetrievalConfig) ChatService {
	return &chatService{
		retrieval:     retrieval,
		llmClient:     llmClient,
		conversations: conversations,
		llmCfg:        llmCfg,
		retrievalCfg:  retrievalCfg,
	}
}

// StreamResponse 检索上下文、调用 LLM 流式输出，最后追加来源列表并保存对话。
func (s *chatService) StreamResponse(ctx context.Context, query string, lang model.Language, sessionID string, w llm.MessageWriter, shouldStop func() bool) error {
	lc := s.retrievalCfg.ForLanguage(lang.String())

	result, err := s.retrieval.Retrieve(ctx, query, lang)
	if err != nil {
		return fmt.Errorf("failed to retrieve context: %w", err)
	}

	history, err := s.conversations.GetConversationHistory(ctx, sessionID)
	if err != nil {
		log.Errorf("[ChatService] 加载对话历史失败, session: %s, err: %v", sessionID, err)
		history = []model.ChatMessage{}
	}
	messages := composeMessages(s.buildSystemMessage(lc, result.ContextText), history, query)

	answerBuilder := &strings.Builder{}
	interceptor := &wsWriterInterceptor{conn: w, writer: answerBuilder, shouldStop: shouldStop}

	if err := s.llmClient.StreamChatMessages(ctx, messages, llm.ParamsFromConfig(s.llmCfg.Generation), interceptor); err != nil {
		return err
	}
	// 来源列表直接下发，不计入保存的回答
	stopped := shouldStop != nil && shouldStop()
	if sources := FormatSources(result.SourceURLs, lang, lc.SourcesLabel); sources != "" && !stopped {
		if err := writeChunk(w, websocket.TextMessage, sources); err != nil {
			return fmt.Errorf("failed to write sources: %w", err)
		}
	}
	sendCompletion(w)

	fullAnswer := llm.StripThinking(answerBuilder.String())
	if fullAnswer != "" {
		// 请求被取消时仍保存已生成的回答
		if err := s.conversations.AddExchange(context.Background(), sessionID, query, fullAnswer); err != nil {
			log.Errorf("[ChatService] 保存对话历史失败, session: %s, err: %v", sessionID, err)
		}
	}
	return nil
}

func (s *chatService) buildSystemMessage(lc config.LanguageConfig, contextText string) string {
	refStart := s.llmCfg.Prompt.RefStart
	if refStart == "" {
		refStart = "<<REF>>"
	}
	refEnd := s.llmCfg.Prompt.RefEnd
	if refEnd == "" {
		refEnd = "<<END>>"
	}

	var sys strings.Builder
	if s.llmCfg.Prompt.Rules != "" {
		sys.WriteString(s.llmCfg.Prompt.Rules)
		sys.WriteString("\n\n")
	}
	sys.WriteString(refStart)
	sys.WriteString("\n")
	if contextText != "" {
		sys.WriteString(contextText)
	} else {
		sys.WriteString(lc.NoResultText)
	}
	sys.WriteString("\n")
	sys.WriteString(refEnd)
	return sys.String()
}

func composeMessages(systemMsg string, history []model.ChatMessage, userInput string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: "system", Content: systemMsg})
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: userInput})
	return msgs
}

// wsWriterInterceptor 记录完整回答，并把每个分块包装成 {"chunk":"..."} 下发。
type wsWriterInterceptor struct {
	conn       llm.MessageWriter
	writer     *strings.Builder
	shouldStop func() bool
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *wsWriterInterceptor) WriteMessage(messageType int, data []byte) error {
	if w.shouldStop != nil && w.shouldStop() {
		return nil
	}
	w.writer.Write(data)
	return writeChunk(w.conn, messageType, string(data))
}

func writeChunk(w llm.MessageWriter, messageType int, chunk string) error {
	b, _ := json.Marshal(map[string]string{"chunk": chunk})
	return w.WriteMessage(messageType, b)
}

func sendCompletion(w llm.MessageWriter) {
	notif := map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"timestamp": time.Now().UnixMilli(),
	}
	b, _ := json.Marshal(notif)
	_ = w.WriteMessage(websocket.TextMessage, b)
}
