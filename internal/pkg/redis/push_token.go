package redis

import (
	"context"
	"strconv"

	"Ephemera/internal/pkg/consts"
)

// PushTokenStore 用户设备推送 token，按用户覆盖写入
type PushTokenStore struct{}

func NewPushTokenStore() *PushTokenStore { return &PushTokenStore{} }

func (s *PushTokenStore) Save(ctx context.Context, userID uint64, token string) error {
	return SetWithExpiration(ctx, pushTokenKey(userID), token, 0)
}

func (s *PushTokenStore) Get(ctx context.Context, userID uint64) (string, error) {
	return GetValue(ctx, pushTokenKey(userID))
}

func (s *PushTokenStore) Delete(ctx context.Context, userID uint64) error {
	return DeleteKey(ctx, pushTokenKey(userID))
}

func pushTokenKey(userID uint64) string {
	return consts.PushTokenKey + strconv.FormatUint(userID, 10)
}
