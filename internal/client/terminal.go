package client

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"Ephemera/internal/chat"
	"Ephemera/internal/model"
)

const clearScreen = "\033[H\033[2J"

// TerminalRenderer 把会话视图输出到终端
type TerminalRenderer struct {
	mu     sync.Mutex
	w      io.Writer
	selfID uint64
	clear  bool
	field  string
}

var _ chat.Renderer = (*TerminalRenderer)(nil)

func NewTerminalRenderer(w io.Writer, selfID uint64, clear bool) *TerminalRenderer {
	return &TerminalRenderer{w: w, selfID: selfID, clear: clear}
}

func (r *TerminalRenderer) Render(view chat.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.field = view.Field

	var b strings.Builder
	if r.clear {
		b.WriteString(clearScreen)
	}
	fmt.Fprintf(&b, "── conversation with %d · %d messages ──\n", view.PeerID, view.MessageCount)
	for _, item := range view.Items {
		if !item.Alive {
			continue
		}
		who := "them"
		if item.Message.SenderID == r.selfID {
			who = "me  "
		}
		text := item.Visible
		if item.Message.Kind == model.KindEmoji {
			text = item.Glyph
		}
		marker := ""
		if item.Pending {
			marker = " …"
		}
		fmt.Fprintf(&b, "%s │ %s%s\n", who, text, marker)
	}
	fmt.Fprintf(&b, "> %s", view.Field)
	_, _ = io.WriteString(r.w, b.String())
}

// Field 最近一次渲染的输入框内容
func (r *TerminalRenderer) Field() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.field
}
