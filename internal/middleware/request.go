package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wfunc/pcpos/internal/logger"
)

const (
	// RequestIDHeader 请求ID头
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey 上下文中的请求ID键
	RequestIDKey = "requestID"
)

// RequestID 为每个请求分配ID，沿用客户端传入的值
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// AccessLog 记录请求日志
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.LogRequest(c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}

// GetRequestID 从上下文获取请求ID
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
