package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Ephemera/internal/api/middleware"
	"Ephemera/internal/pkg/logger"
	"Ephemera/internal/pkg/util"
)

func SetupRouter(group *HandlersGroup) (*gin.Engine, error) {
	if err := util.RegisterBindingValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.AuditMiddleware())
	r.Use(middleware.CORSMiddleware())
	logger.SetupGin(r)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"Code":    200,
				"Message": "pong",
				"Data":    nil,
			})
		})

		// 事件流在 query 中携带 token
		apiGroup.GET("/ws", group.WSHandler.Connect)

		authGroup := apiGroup.Group("")
		authGroup.Use(middleware.AuthMiddleware())
		{
			messageGroup := authGroup.Group("/messages")
			{
				messageGroup.POST("", group.MessageHandler.Create)
				messageGroup.GET("", group.MessageHandler.List)
				messageGroup.PUT("/:id", group.MessageHandler.Amend)
				messageGroup.DELETE("/:id", group.MessageHandler.Delete)
			}

			authGroup.GET("/conversations/:peer_id/stats", group.MessageHandler.Stats)
			authGroup.PUT("/push-token", group.PushHandler.SaveToken)
		}
	}

	return r, nil
}
