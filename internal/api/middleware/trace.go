package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"Ephemera/internal/pkg/logger"
)

const maxTraceIDLen = 64

// TraceMiddleware 沿用调用方的 X-Trace-ID，缺失或过长时生成新的
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" || len(traceID) > maxTraceIDLen {
			traceID = uuid.New().String()
		}

		c.Set(logger.TraceIDKey, traceID)
		c.Request = c.Request.WithContext(logger.WithTraceID(c.Request.Context(), traceID))

		c.Header("X-Trace-ID", traceID)
		c.Next()
	}
}
