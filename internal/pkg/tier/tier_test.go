package tier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Ephemera/internal/model"
)

func tableWith(category string, levels []Level) Table {
	t := DefaultTable()
	t[category] = levels
	return t
}

func TestResolver_For(t *testing.T) {
	r, err := New(tableWith(model.EmojiSmile, []Level{{0, "A"}, {50, "B"}, {100, "C"}, {200, "D"}}))
	require.NoError(t, err)

	cases := map[int64]string{0: "A", 49: "A", 50: "B", 199: "C", 200: "D", 10000: "D", -3: "A"}
	for count, want := range cases {
		assert.Equal(t, want, r.For(model.EmojiSmile, count), "count=%d", count)
	}
	assert.Empty(t, r.For("thumbs", 10))
}

func TestResolver_DefaultTable(t *testing.T) {
	r, err := New(DefaultTable())
	require.NoError(t, err)

	assert.Equal(t, "❤️", r.For(model.EmojiHeart, 0))
	assert.Equal(t, "💕", r.For(model.EmojiHeart, 250))
	assert.Equal(t, "❤️‍🔥", r.For(model.EmojiHeart, 1_000_000))
	assert.Equal(t, "😤", r.For(model.EmojiAngry, 999))
	assert.Equal(t, "😘", r.For(model.EmojiWink, 3000))
}

func TestNew_RejectsBadTables(t *testing.T) {
	cases := []struct {
		name  string
		table Table
	}{
		{"not increasing", tableWith(model.EmojiWink, []Level{{0, "a"}, {10, "b"}, {10, "c"}})},
		{"decreasing", tableWith(model.EmojiWink, []Level{{0, "a"}, {10, "b"}, {5, "c"}})},
		{"missing base tier", tableWith(model.EmojiWink, []Level{{1, "a"}})},
		{"empty category", tableWith(model.EmojiWink, nil)},
		{"empty glyph", tableWith(model.EmojiWink, []Level{{0, ""}})},
		{"unknown category", tableWith("thumbs", []Level{{0, "👍"}})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.table)
			require.ErrorIs(t, err, ErrConfiguration)
		})
	}

	missing := DefaultTable()
	delete(missing, model.EmojiAngry)
	_, err := New(missing)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestResolver_IsolatedFromInput(t *testing.T) {
	table := DefaultTable()
	r, err := New(table)
	require.NoError(t, err)

	table[model.EmojiSmile][0].Glyph = "mutated"
	assert.Equal(t, "🙂", r.For(model.EmojiSmile, 0))
}
