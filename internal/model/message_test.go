package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPairKey_DirectionIndependent(t *testing.T) {
	require.Equal(t, "3_7", PairKey(7, 3))
	require.Equal(t, PairKey(3, 7), PairKey(7, 3))

	a, b, err := ParsePairKey("3_7")
	require.NoError(t, err)
	require.Equal(t, uint64(3), a)
	require.Equal(t, uint64(7), b)

	_, _, err = ParsePairKey("garbage")
	require.Error(t, err)
}

func TestLess_TieBrokenByID(t *testing.T) {
	at := time.Unix(100, 0)
	a := &Message{ID: "a", CreatedAt: at}
	b := &Message{ID: "b", CreatedAt: at}
	c := &Message{ID: "0", CreatedAt: at.Add(time.Second)}

	require.True(t, Less(a, b))
	require.False(t, Less(b, a))
	require.True(t, Less(b, c))
}

func TestIsEmojiCategory(t *testing.T) {
	require.True(t, IsEmojiCategory(EmojiWink))
	require.False(t, IsEmojiCategory("thumbs"))
	require.True(t, KindEmoji.Valid())
	require.False(t, MessageKind("image").Valid())
}
