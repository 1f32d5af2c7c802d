package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"fatwa-rag-go/internal/model"
	"fatwa-rag-go/internal/service"
	"fatwa-rag-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理 WebSocket 聊天连接。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// lockedConn 串行化对同一连接的写操作。
type lockedConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (l *lockedConn) WriteMessage(messageType int, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteMessage(messageType, data)
}

func (l *lockedConn) writeJSON(v interface{}) {
	b, _ := json.Marshal(v)
	_ = l.WriteMessage(websocket.TextMessage, b)
}

// Handle 处理 GET /chat/:lang?session=...。
// 每条文本消息是一个问题；{"type":"stop"} 中断当前回答。同一连接同时只处理一个问题。
func (h *ChatHandler) Handle(c *gin.Context) {
	lang, err := model.ParseLanguage(c.Param("lang"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": err.Error(), "data": nil})
		return
	}
	sessionID := c.Query("session")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer ws.Close()
	conn := &lockedConn{conn: ws}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	log.Infof("[ChatHandler] WebSocket 连接已建立, session: %s, lang: %s", sessionID, lang)
	conn.writeJSON(gin.H{"type": "session", "session": sessionID})

	var stopped, busy atomic.Bool
	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			log.Infof("[ChatHandler] 连接关闭, session: %s: %v", sessionID, err)
			return
		}

		if isStopCommand(message) {
			stopped.Store(true)
			conn.writeJSON(gin.H{"type": "stop", "message": "响应已停止", "timestamp": time.Now().UnixMilli()})
			continue
		}
		if !busy.CompareAndSwap(false, true) {
			conn.writeJSON(gin.H{"error": "上一个问题仍在回答中"})
			continue
		}
		stopped.Store(false)

		wg.Add(1)
		go func(query string) {
			defer wg.Done()
			defer busy.Store(false)
			err := h.chatService.StreamResponse(ctx, query, lang, sessionID, conn, stopped.Load)
			if err == nil {
				return
			}
			log.Errorf("[ChatHandler] 处理流式响应失败, session: %s: %v", sessionID, err)
			msg := "AI服务暂时不可用，请稍后重试"
			if errors.Is(err, model.ErrRetrievalUnavailable) {
				msg = "检索服务暂时不可用，请稍后重试"
			}
			conn.writeJSON(gin.H{"error": msg})
			conn.writeJSON(gin.H{"type": "completion", "status": "finished", "timestamp": time.Now().UnixMilli()})
		}(string(message))
	}
}

func isStopCommand(message []byte) bool {
	if len(message) == 0 || message[0] != '{' {
		return false
	}
	var ctrl struct {
		Type string `json:"type"`
	}
	return json.Unmarshal(message, &ctrl) == nil && ctrl.Type == "stop"
}
