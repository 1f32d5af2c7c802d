package handler

import (
	"net/http"
	"strings"

	"fatwa-rag-go/internal/model"
	"fatwa-rag-go/internal/service"
	"fatwa-rag-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 暴露聊天会话的历史记录。
// 会话由 WebSocket 建立时下发的 session id 标识，没有用户账号的概念。
type ConversationHandler struct {
	conversations service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(conversations service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

// SessionHistory 是 GET /api/v1/conversations/:session 的响应数据。
type SessionHistory struct {
	Session  string              `json:"session"`
	Messages []model.ChatMessage `json:"messages"`
}

// GetConversation 返回 session 当前对话中保留的消息，按时间顺序。
// 过期或不存在的 session 返回空列表。
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	session := strings.TrimSpace(c.Param("session"))
	if session == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "session 不能为空", "data": nil})
		return
	}

	messages, err := h.conversations.GetConversationHistory(c.Request.Context(), session)
	if err != nil {
		log.Errorf("[ConversationHandler] 读取会话历史失败, session: %s, err: %v", session, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "读取会话历史失败", "data": nil})
		return
	}
	if messages == nil {
		messages = []model.ChatMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": SessionHistory{Session: session, Messages: messages}})
}
