package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/ashwinyue/next-files/internal/service/convert"
	"github.com/gin-gonic/gin"
)

// Pinger 依赖健康检查
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusReporter 转换器状态
type StatusReporter interface {
	Status() convert.Status
}

// SystemHandler 系统处理器
type SystemHandler struct {
	db        Pinger
	converter StatusReporter
}

// NewSystemHandler 创建系统处理器
func NewSystemHandler(db Pinger, converter StatusReporter) *SystemHandler {
	return &SystemHandler{db: db, converter: converter}
}

// Health 健康检查
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	status := gin.H{"status": "ok"}
	if h.converter != nil {
		status["converter"] = h.converter.Status()
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			ServiceUnavailable(c, "database unavailable: "+err.Error())
			return
		}
	}
	c.JSON(http.StatusOK, status)
}
