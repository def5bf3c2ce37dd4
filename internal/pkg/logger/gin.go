package logger

import (
	log "log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// SetupGin 访问日志与 panic 恢复
func SetupGin(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := log.LevelInfo
		switch {
		case c.Writer.Status() >= 500:
			level = log.LevelError
		case len(c.Errors) > 0:
			level = log.LevelWarn
		}
		log.Log(c.Request.Context(), level, "GIN_ACCESS",
			log.String("method", c.Request.Method),
			log.String("path", c.FullPath()),
			log.Int("status", c.Writer.Status()),
			log.Duration("latency", time.Since(start)),
			log.String("client_ip", c.ClientIP()),
		)
	})

	r.Use(gin.CustomRecovery(func(c *gin.Context, err any) {
		log.ErrorContext(c.Request.Context(), "panic recovered", "err", err, "path", c.Request.URL.Path)
		c.AbortWithStatus(500)
	}))
}
