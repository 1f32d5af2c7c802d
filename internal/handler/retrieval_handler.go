// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"fatwa-rag-go/internal/model"
	"fatwa-rag-go/internal/service"
	"fatwa-rag-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// RetrievalHandler 暴露检索网关。
type RetrievalHandler struct {
	retrievalService service.RetrievalService
}

// NewRetrievalHandler 创建一个新的 RetrievalHandler 实例。
func NewRetrievalHandler(retrievalService service.RetrievalService) *RetrievalHandler {
	return &RetrievalHandler{retrievalService: retrievalService}
}

// Retrieve 处理 GET /api/v1/retrieve?query=...&lang=en|ar。
func (h *RetrievalHandler) Retrieve(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		log.Warnf("[RetrievalHandler] 检索请求失败: query 参数为空")
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的查询参数", "data": nil})
		return
	}
	lang, err := model.ParseLanguage(c.DefaultQuery("lang", "en"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": err.Error(), "data": nil})
		return
	}
	log.Infof("[RetrievalHandler] 收到检索请求, lang: %s, query: %s", lang, query)

	result, err := h.retrievalService.Retrieve(c.Request.Context(), query, lang)
	if err != nil {
		log.Errorf("[RetrievalHandler] 检索失败: %v", err)
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrRetrievalUnavailable) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"code": status, "message": "检索失败", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": result})
}
