package service

import (
	"context"
	"strings"

	"Ephemera/internal/pkg/util"
)

// PushTokenStore 设备推送 token 存储
type PushTokenStore interface {
	Save(ctx context.Context, userID uint64, token string) error
	Get(ctx context.Context, userID uint64) (string, error)
}

type PushTokenService interface {
	Register(ctx context.Context, userID uint64, token string) error
}

type pushTokenServiceImpl struct {
	store PushTokenStore
}

func NewPushTokenService(store PushTokenStore) PushTokenService {
	return &pushTokenServiceImpl{store: store}
}

// Register 保存用户的 Expo 推送 token，覆盖旧值
func (s *pushTokenServiceImpl) Register(ctx context.Context, userID uint64, token string) error {
	token = strings.TrimSpace(token)
	if !util.IsExpoPushToken(token) {
		return ErrPushTokenInvalid
	}
	return s.store.Save(ctx, userID, token)
}
