package job

import (
	"context"
	log "log/slog"
	"time"

	"github.com/google/uuid"

	"Ephemera/internal/model"
	"Ephemera/internal/pkg/consts"
	"Ephemera/internal/pkg/decay"
	"Ephemera/internal/pkg/logger"
)

const pruneLockTTL = 5 * time.Minute

// DecayedDeleter 删除已完全衰减的消息
type DecayedDeleter interface {
	DeleteDecayed(ctx context.Context, textBefore, emojiBefore time.Time) (int64, error)
}

// Locker 多实例部署时保证同一时刻只有一个实例执行
type Locker interface {
	TryLock(ctx context.Context, key string, value interface{}, expiration time.Duration, retryTimes int) (bool, error)
	UnLock(ctx context.Context, key string, value interface{})
}

// MessagePruneJob 清理生命周期已结束的消息
type MessagePruneJob struct {
	repo   DecayedDeleter
	locker Locker
	policy decay.Policy
	now    func() time.Time
}

func NewMessagePruneJob(repo DecayedDeleter, locker Locker, policy decay.Policy) *MessagePruneJob {
	return &MessagePruneJob{repo: repo, locker: locker, policy: policy, now: time.Now}
}

func (s *MessagePruneJob) Run() {
	ctx := logger.WithTraceID(context.Background(), uuid.NewString())
	lockValue := uuid.NewString()

	ok, err := s.locker.TryLock(ctx, consts.MessagePruneLock, lockValue, pruneLockTTL, 1)
	if err != nil {
		log.ErrorContext(ctx, "acquire message prune lock failed", "err", err)
		return
	}
	if !ok {
		log.DebugContext(ctx, "message prune running elsewhere")
		return
	}
	defer s.locker.UnLock(ctx, consts.MessagePruneLock, lockValue)

	now := s.now().UTC()
	textBefore := now.Add(-s.policy.Lifespan(model.KindText))
	emojiBefore := now.Add(-s.policy.Lifespan(model.KindEmoji))

	deleted, err := s.repo.DeleteDecayed(ctx, textBefore, emojiBefore)
	if err != nil {
		log.ErrorContext(ctx, "prune decayed messages failed", "err", err)
		return
	}
	if deleted > 0 {
		log.InfoContext(ctx, "message prune job finished", "deleted", deleted)
	}
}
