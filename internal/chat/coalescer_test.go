package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Ephemera/internal/model"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func ownLatest(ref, content string, updated time.Time) *Latest {
	return &Latest{Ref: ref, Message: model.Message{
		SenderID:  1,
		Kind:      model.KindText,
		Content:   content,
		CreatedAt: updated,
		UpdatedAt: updated,
	}}
}

func TestCoalescer_FlushOnSpaceCreates(t *testing.T) {
	c := NewCoalescer(1, 15*time.Second)

	res := c.Input(t0, "hello", nil)
	require.True(t, res.Accepted)
	assert.Equal(t, IntentNone, res.Intent.Kind)
	assert.Equal(t, "hello", res.Field)

	res = c.Input(t0, "hello ", nil)
	require.Equal(t, IntentCreateText, res.Intent.Kind)
	assert.Equal(t, "hello", res.Intent.Words)
	assert.Equal(t, "", res.Intent.PrefixBefore)
	assert.Equal(t, "hello ", c.Prefix())
	assert.Equal(t, t0.Add(15*time.Second), c.Deadline())
}

func TestCoalescer_AmendInsideWindowCreatesOutside(t *testing.T) {
	c := NewCoalescer(1, 15*time.Second)
	c.Input(t0, "hello ", nil)
	latest := ownLatest("local:1", "hello", t0)

	res := c.Input(t0.Add(5*time.Second), "hello world ", latest)
	require.Equal(t, IntentAmend, res.Intent.Kind)
	assert.Equal(t, "local:1", res.Intent.Ref)
	assert.Equal(t, "world", res.Intent.Words)
	assert.Equal(t, "hello ", res.Intent.PrefixBefore)

	c2 := NewCoalescer(1, 15*time.Second)
	c2.Input(t0, "hello ", nil)
	res = c2.Input(t0.Add(15*time.Second), "hello world ", latest)
	assert.Equal(t, IntentCreateText, res.Intent.Kind)
	assert.Equal(t, "world", res.Intent.Words)
}

func TestCoalescer_PeerLatestIsNeverAmended(t *testing.T) {
	c := NewCoalescer(1, 15*time.Second)
	latest := ownLatest("msg:p", "yo", t0)
	latest.Message.SenderID = 2

	res := c.Input(t0.Add(time.Second), "hi ", latest)
	assert.Equal(t, IntentCreateText, res.Intent.Kind)

	emoji := ownLatest("msg:e", model.EmojiHeart, t0)
	emoji.Message.Kind = model.KindEmoji
	res = c.Input(t0.Add(time.Second), "hi there ", emoji)
	assert.Equal(t, IntentCreateText, res.Intent.Kind)
	assert.Equal(t, "there", res.Intent.Words)
}

func TestCoalescer_PunctuationFlushAppendsSpace(t *testing.T) {
	for _, p := range []string{",", ".", "?"} {
		c := NewCoalescer(1, 15*time.Second)
		res := c.Input(t0, "hi"+p, nil)
		require.Equal(t, IntentCreateText, res.Intent.Kind, p)
		assert.Equal(t, "hi"+p, res.Intent.Words)
		assert.Equal(t, "hi"+p+" ", res.Field)
		assert.Equal(t, "hi"+p+" ", c.Prefix())
	}
}

func TestCoalescer_ExtraSpaceIsNoop(t *testing.T) {
	c := NewCoalescer(1, 15*time.Second)
	c.Input(t0, "hello ", nil)
	res := c.Input(t0, "hello  ", nil)
	assert.True(t, res.Accepted)
	assert.Equal(t, IntentNone, res.Intent.Kind)
}

func TestCoalescer_BackspaceRejectedInsideWindow(t *testing.T) {
	c := NewCoalescer(1, 15*time.Second)
	c.Input(t0, "hello ", nil)
	latest := ownLatest("local:1", "hello", t0)

	res := c.Input(t0.Add(time.Second), "hell", latest)
	assert.False(t, res.Accepted)
	assert.Equal(t, "hello ", res.Field)
	assert.Equal(t, "hello ", c.Field())

	res = c.Input(t0.Add(2*time.Second), "hello w", latest)
	assert.True(t, res.Accepted)
}

func TestCoalescer_BackspaceOutsideWindowStartsFresh(t *testing.T) {
	c := NewCoalescer(1, 15*time.Second)
	c.Input(t0, "hello ", nil)
	latest := ownLatest("local:1", "hello", t0)

	res := c.Input(t0.Add(20*time.Second), "hell", latest)
	require.True(t, res.Accepted)
	assert.Equal(t, "", c.Prefix())

	res = c.Input(t0.Add(21*time.Second), "hell ", latest)
	assert.Equal(t, IntentCreateText, res.Intent.Kind)
	assert.Equal(t, "hell", res.Intent.Words)
}

func TestCoalescer_Expire(t *testing.T) {
	c := NewCoalescer(1, 15*time.Second)
	assert.False(t, c.Expire(t0))

	c.Input(t0, "hello ", nil)
	assert.False(t, c.Expire(t0.Add(14*time.Second)))
	assert.True(t, c.Expire(t0.Add(15*time.Second)))
	assert.Equal(t, "", c.Field())
	assert.Equal(t, "", c.Prefix())
	assert.True(t, c.Deadline().IsZero())
}

func TestCoalescer_Rewind(t *testing.T) {
	c := NewCoalescer(1, 15*time.Second)
	c.Input(t0, "a ", nil)
	c.Input(t0, "a b ", nil)

	c.Rewind("a ")
	assert.Equal(t, "a ", c.Prefix())

	res := c.Input(t0, "a b c ", nil)
	assert.Equal(t, "b c", res.Intent.Words)
}

func TestCoalescer_RewindAfterExpireIsNoop(t *testing.T) {
	c := NewCoalescer(1, 15*time.Second)
	c.Input(t0, "a ", nil)
	c.Input(t0, "a b ", nil)
	require.True(t, c.Expire(t0.Add(time.Minute)))

	c.Rewind("a ")
	assert.Equal(t, "", c.Prefix())
}

func TestCoalescer_EmojiLeavesTextState(t *testing.T) {
	c := NewCoalescer(1, 15*time.Second)
	c.Input(t0, "hello ", nil)

	it := c.Emoji(model.EmojiHeart)
	assert.Equal(t, IntentCreateEmoji, it.Kind)
	assert.Equal(t, model.EmojiHeart, it.Category)
	assert.Equal(t, "hello ", c.Prefix())
	assert.Equal(t, t0.Add(15*time.Second), c.Deadline())
}
