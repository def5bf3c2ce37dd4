package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"Ephemera/internal/pkg/consts"
	"Ephemera/internal/pkg/response"
	"Ephemera/internal/pkg/security"
)

// AuthMiddleware 负责验证 JWT 并将用户身份信息注入 Context
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := security.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Fail(c, response.Unauthorized, "Token 缺失或格式错误")
			c.Abort()
			return
		}

		claims, err := security.ValidateToken(tokenString)
		if err != nil {
			response.Fail(c, response.Unauthorized, security.ErrTokenInvalid.Error())
			c.Abort()
			return
		}

		SetUserID(c, claims.UserID)
		c.Next()
	}
}

// SetUserID 将用户 ID 写入 gin 与 request 的 Context
func SetUserID(c *gin.Context, userID uint64) {
	c.Set(consts.UserIDKey, userID)
	newCtx := context.WithValue(c.Request.Context(), consts.UserIDKey, userID)
	c.Request = c.Request.WithContext(newCtx)
}
