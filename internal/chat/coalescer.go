package chat

import (
	"strings"
	"time"

	"Ephemera/internal/model"
)

// IntentKind 一次输入产生的写意图
type IntentKind int

const (
	IntentNone IntentKind = iota
	IntentAmend
	IntentCreateText
	IntentCreateEmoji
)

func (k IntentKind) String() string {
	switch k {
	case IntentAmend:
		return "amend"
	case IntentCreateText:
		return "create_text"
	case IntentCreateEmoji:
		return "create_emoji"
	default:
		return "none"
	}
}

// Intent 输入合并器输出
type Intent struct {
	Kind         IntentKind
	Ref          string // 追加目标的本地引用，仅 IntentAmend
	Words        string
	Category     string
	PrefixBefore string // 本次 flush 之前的已发送前缀，写失败时用于回退
}

// Latest 会话中最新的一条消息（含乐观记录）及其本地引用
type Latest struct {
	Ref     string
	Message model.Message
}

// Result 一次输入的处理结果
type Result struct {
	Field    string
	Accepted bool
	Intent   Intent
}

// Coalescer 把逐键输入合并为单词级的创建/追加意图
type Coalescer struct {
	selfID     uint64
	editWindow time.Duration

	prefix   string
	field    string
	deadline time.Time
}

// NewCoalescer 创建输入合并器
func NewCoalescer(selfID uint64, editWindow time.Duration) *Coalescer {
	return &Coalescer{selfID: selfID, editWindow: editWindow}
}

func (c *Coalescer) amendable(now time.Time, latest *Latest) bool {
	if latest == nil {
		return false
	}
	m := &latest.Message
	return m.SenderID == c.selfID &&
		m.Kind == model.KindText &&
		!m.IsDeleted &&
		now.Sub(m.UpdatedAt) < c.editWindow
}

func isBoundary(r byte) bool {
	return r == ' ' || r == ',' || r == '.' || r == '?'
}

// Input 处理一次输入框变化
func (c *Coalescer) Input(now time.Time, value string, latest *Latest) Result {
	if c.prefix != "" && !strings.HasPrefix(value, c.prefix) {
		if c.amendable(now, latest) {
			return Result{Field: c.field}
		}
		c.prefix = ""
	}

	if value == "" || !isBoundary(value[len(value)-1]) {
		c.field = value
		return Result{Field: value, Accepted: true}
	}
	if value[len(value)-1] != ' ' {
		value += " "
	}
	c.field = value

	words := strings.TrimSpace(value[len(c.prefix):])
	if words == "" {
		return Result{Field: value, Accepted: true}
	}

	intent := Intent{Kind: IntentCreateText, Words: words, PrefixBefore: c.prefix}
	if c.amendable(now, latest) {
		intent.Kind = IntentAmend
		intent.Ref = latest.Ref
	}
	c.prefix = value
	c.deadline = now.Add(c.editWindow)
	return Result{Field: value, Accepted: true, Intent: intent}
}

// Emoji 表情总是新建消息，不影响文本前缀与截止时间
func (c *Coalescer) Emoji(category string) Intent {
	return Intent{Kind: IntentCreateEmoji, Category: category}
}

// Expire 编辑窗口到期后清空前缀与输入框
func (c *Coalescer) Expire(now time.Time) bool {
	if c.deadline.IsZero() || now.Before(c.deadline) {
		return false
	}
	c.prefix = ""
	c.field = ""
	c.deadline = time.Time{}
	return true
}

// Rewind 写失败后把前缀回退到 prefix，使未发送的单词在下一次 flush 时重发
func (c *Coalescer) Rewind(prefix string) {
	if len(prefix) >= len(c.prefix) || !strings.HasPrefix(c.field, prefix) {
		return
	}
	c.prefix = prefix
}

// Field 当前输入框内容
func (c *Coalescer) Field() string { return c.field }

// Prefix 已发送前缀
func (c *Coalescer) Prefix() string { return c.prefix }

// Deadline 当前编辑截止时间，零值表示没有打开的窗口
func (c *Coalescer) Deadline() time.Time { return c.deadline }
