package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Ephemera/internal/pkg/decay"
)

type stubDeleter struct {
	calls       int
	textBefore  time.Time
	emojiBefore time.Time
}

func (s *stubDeleter) DeleteDecayed(_ context.Context, textBefore, emojiBefore time.Time) (int64, error) {
	s.calls++
	s.textBefore, s.emojiBefore = textBefore, emojiBefore
	return 3, nil
}

type stubLocker struct {
	held     bool
	unlocked bool
}

func (s *stubLocker) TryLock(context.Context, string, interface{}, time.Duration, int) (bool, error) {
	return !s.held, nil
}

func (s *stubLocker) UnLock(context.Context, string, interface{}) { s.unlocked = true }

func TestMessagePruneJob_UsesPerKindCutoffs(t *testing.T) {
	repo := &stubDeleter{}
	locker := &stubLocker{}
	job := NewMessagePruneJob(repo, locker, decay.DefaultPolicy())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	job.Run()

	require.Equal(t, 1, repo.calls)
	assert.Equal(t, now.Add(-15*time.Minute), repo.textBefore)
	assert.Equal(t, now.Add(-20*time.Minute), repo.emojiBefore)
	assert.True(t, locker.unlocked)
}

func TestMessagePruneJob_SkipsWhenLocked(t *testing.T) {
	repo := &stubDeleter{}
	job := NewMessagePruneJob(repo, &stubLocker{held: true}, decay.DefaultPolicy())

	job.Run()

	assert.Zero(t, repo.calls)
}
