package client

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"Ephemera/internal/chat"
	"Ephemera/internal/model"
)

func TestTerminalRenderer_Render(t *testing.T) {
	var buf bytes.Buffer
	r := NewTerminalRenderer(&buf, 1, false)

	r.Render(chat.View{
		PeerID:       2,
		MessageCount: 57,
		Field:        "typ",
		Items: []chat.ViewItem{
			{Message: model.Message{SenderID: 2, Kind: model.KindText}, Visible: "llo there", Alive: true},
			{Message: model.Message{SenderID: 1, Kind: model.KindEmoji, Content: "heart"}, Glyph: "💗", Alive: true, Pending: true},
			{Message: model.Message{SenderID: 2, Kind: model.KindText}, Alive: false},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "conversation with 2 · 57 messages")
	assert.Contains(t, out, "them │ llo there\n")
	assert.Contains(t, out, "me   │ 💗 …\n")
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("│")))
	assert.Contains(t, out, "> typ")
	assert.Equal(t, "typ", r.Field())
}
