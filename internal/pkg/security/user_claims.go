package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	jwtSecret         = []byte("ephemera-dev-secret")
	jwtIssuer         = "Ephemera"
	jwtExpirationTime = time.Hour * 24
)

// Configure 启动时从配置设置签名参数
func Configure(secret, issuer string, ttl time.Duration) {
	if secret != "" {
		jwtSecret = []byte(secret)
	}
	if issuer != "" {
		jwtIssuer = issuer
	}
	if ttl > 0 {
		jwtExpirationTime = ttl
	}
}

// UserClaims Token 中携带的用户身份
type UserClaims struct {
	UserID uint64 `json:"user_id"`
	jwt.RegisteredClaims
}
