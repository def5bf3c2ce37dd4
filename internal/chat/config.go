package chat

import (
	"time"

	"Ephemera/internal/pkg/decay"
)

const (
	defaultEditWindow      = 15 * time.Second
	defaultTickInterval    = time.Second
	defaultUnknownRefRetry = 5 * time.Second
	defaultWriteTimeout    = 5 * time.Second
	defaultMaxTextRunes    = 2000
	defaultReopenBackoff   = 2 * time.Second
	maxReopenBackoff       = 30 * time.Second
)

// Config 客户端会话参数
type Config struct {
	SelfID          uint64
	EditWindow      time.Duration
	Policy          decay.Policy
	TickInterval    time.Duration
	UnknownRefRetry time.Duration
	WriteTimeout    time.Duration
	MaxTextRunes    int           // 单条文本消息的字符上限，与服务端一致
	ReopenBackoff   time.Duration // 打开会话失败后的首次重试间隔
	PushToken       string
}

func (c Config) withDefaults() Config {
	if c.EditWindow <= 0 {
		c.EditWindow = defaultEditWindow
	}
	if c.Policy == (decay.Policy{}) {
		c.Policy = decay.DefaultPolicy()
	}
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.UnknownRefRetry <= 0 {
		c.UnknownRefRetry = defaultUnknownRefRetry
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.MaxTextRunes <= 0 {
		c.MaxTextRunes = defaultMaxTextRunes
	}
	if c.ReopenBackoff <= 0 {
		c.ReopenBackoff = defaultReopenBackoff
	}
	return c
}
