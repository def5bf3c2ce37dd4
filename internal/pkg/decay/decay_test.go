package decay

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Ephemera/internal/model"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

func textMessage(content string) *model.Message {
	return &model.Message{ID: "m1", Kind: model.KindText, Content: content, CreatedAt: t0, UpdatedAt: t0}
}

func TestProject_EndToEndScenario(t *testing.T) {
	p := Policy{TextGrace: 300 * time.Second, TextDecay: 600 * time.Second, EmojiLifespan: 1200 * time.Second}
	m := textMessage("abcdefghijklmnopqrst")
	require.Equal(t, 20, RuneLen(m.Content))

	got := Project(p, m, at(300))
	assert.True(t, got.Alive)
	assert.Equal(t, m.Content, got.Visible)

	got = Project(p, m, at(600))
	assert.True(t, got.Alive)
	assert.Equal(t, "klmnopqrst", got.Visible)

	got = Project(p, m, at(900))
	assert.False(t, got.Alive)
	assert.Empty(t, got.Visible)
}

func TestProject_EmojiCutoff(t *testing.T) {
	p := DefaultPolicy()
	m := &model.Message{ID: "e1", Kind: model.KindEmoji, Content: model.EmojiHeart, UpdatedAt: t0}

	got := Project(p, m, at(1199))
	assert.True(t, got.Alive)
	assert.Equal(t, model.EmojiHeart, got.Visible)

	assert.False(t, Project(p, m, at(1200)).Alive)
}

func TestProject_Monotonic(t *testing.T) {
	p := DefaultPolicy()
	m := textMessage("the quick brown fox jumps over the lazy dog")

	prev := Project(p, m, t0).Visible
	for sec := 1; sec <= 900; sec += 7 {
		cur := Project(p, m, at(sec))
		require.True(t, strings.HasSuffix(prev, cur.Visible), "at %ds %q is not a suffix of %q", sec, cur.Visible, prev)
		prev = cur.Visible
	}
}

func TestProject_Deterministic(t *testing.T) {
	p := DefaultPolicy()
	m := textMessage("hello there")
	now := at(512)
	require.Equal(t, Project(p, m, now), Project(p, m, now))
}

func TestProject_EdgeCases(t *testing.T) {
	p := DefaultPolicy()

	deleted := textMessage("still here")
	deleted.IsDeleted = true
	assert.Equal(t, Projection{}, Project(p, deleted, t0))

	assert.False(t, Project(p, textMessage(""), t0).Alive)

	// 客户端时钟落后于服务端时按 0 处理
	got := Project(p, textMessage("future"), t0.Add(-time.Minute))
	assert.True(t, got.Alive)
	assert.Equal(t, "future", got.Visible)
}

func TestProject_RemovesRunesNotBytes(t *testing.T) {
	p := Policy{TextGrace: 0, TextDecay: 4 * time.Second, EmojiLifespan: time.Second}
	m := textMessage("你好世界")

	assert.Equal(t, "好世界", Project(p, m, at(1)).Visible)
	assert.Equal(t, "界", Project(p, m, at(3)).Visible)
}

func TestPolicy_Validate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	bad := DefaultPolicy()
	bad.TextDecay = 0
	require.ErrorIs(t, bad.Validate(), ErrInvalidPolicy)

	bad = DefaultPolicy()
	bad.EmojiLifespan = -time.Second
	require.ErrorIs(t, bad.Validate(), ErrInvalidPolicy)
}

func TestPolicy_Lifespan(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 15*time.Minute, p.Lifespan(model.KindText))
	assert.Equal(t, 20*time.Minute, p.Lifespan(model.KindEmoji))
	assert.Equal(t, 20*time.Minute, p.MaxLifespan())
	assert.True(t, p.FullyDecayed(textMessage("x"), at(900)))
}

func TestProject_LongDecayLongContent(t *testing.T) {
	// elapsed * len 超出 int64
	p := Policy{TextGrace: 0, TextDecay: 100000 * time.Hour, EmojiLifespan: time.Minute}
	m := textMessage(strings.Repeat("ab", 50))

	got := Project(p, m, t0.Add(50000*time.Hour))
	require.True(t, got.Alive)
	assert.Equal(t, 50, RuneLen(got.Visible))
	assert.Equal(t, strings.Repeat("ab", 25), got.Visible)
}
