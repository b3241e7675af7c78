package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader 请求 ID 头
const RequestIDHeader = "X-Request-ID"

// LoggingMiddleware 日志中间件
// 记录方法、路径、状态、耗时和用户，并回写请求 ID
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		userID, _ := GetUserID(c)
		if userID == "" {
			userID = "-"
		}
		log.Printf("[%s] %s %s | Status: %d | Latency: %v | User: %s | Request: %s",
			c.Request.Method,
			path,
			query,
			c.Writer.Status(),
			time.Since(start),
			userID,
			requestID,
		)
	}
}
