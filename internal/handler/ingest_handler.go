package handler

import (
	"context"
	"net/http"

	"fatwa-rag-go/internal/model"
	"fatwa-rag-go/pkg/log"
	"fatwa-rag-go/pkg/tasks"
	"fatwa-rag-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// TaskProducer 把导入任务投递到消息队列。
type TaskProducer func(ctx context.Context, task tasks.IngestTask) error

// IngestHandler 负责管理员触发的数据导入。
type IngestHandler struct {
	produce TaskProducer
}

// NewIngestHandler 创建一个新的 IngestHandler 实例。
func NewIngestHandler(produce TaskProducer) *IngestHandler {
	return &IngestHandler{produce: produce}
}

// IngestRequest 定义了导入 API 的请求体结构。
type IngestRequest struct {
	ObjectName string `json:"object_name" binding:"required"`
	Language   string `json:"language" binding:"required"`
}

// Enqueue 校验请求并投递导入任务，任务由 Kafka 消费者异步处理。
func (h *IngestHandler) Enqueue(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[IngestHandler] 无效的请求负载: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}
	lang, err := model.ParseLanguage(req.Language)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": err.Error(), "data": nil})
		return
	}

	task := tasks.IngestTask{ObjectName: req.ObjectName, Language: lang.String()}
	if err := h.produce(c.Request.Context(), task); err != nil {
		log.Errorf("[IngestHandler] 投递导入任务失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "投递导入任务失败", "data": nil})
		return
	}

	subject := ""
	if v, ok := c.Get("claims"); ok {
		subject = v.(*token.CustomClaims).Subject
	}
	log.Infof("[IngestHandler] '%s' 提交了导入任务: object=%s, lang=%s", subject, task.ObjectName, task.Language)
	c.JSON(http.StatusAccepted, gin.H{"code": http.StatusAccepted, "message": "accepted", "data": task})
}
