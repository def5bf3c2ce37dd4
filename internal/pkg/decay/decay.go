package decay

import (
	"errors"
	"fmt"
	"math/bits"
	"time"
	"unicode/utf8"

	"Ephemera/internal/model"
)

var ErrInvalidPolicy = errors.New("invalid decay policy")

// Policy 各类型消息的衰减参数
type Policy struct {
	TextGrace     time.Duration `mapstructure:"text_grace"`     // 开始衰减前的完整展示时长
	TextDecay     time.Duration `mapstructure:"text_decay"`     // 宽限期结束后到完全消失的时长
	EmojiLifespan time.Duration `mapstructure:"emoji_lifespan"` // 表情硬截止
}

// DefaultPolicy 5 分钟后开始衰减，每分钟 10%
func DefaultPolicy() Policy {
	return Policy{
		TextGrace:     5 * time.Minute,
		TextDecay:     10 * time.Minute,
		EmojiLifespan: 20 * time.Minute,
	}
}

// Validate 校验参数
func (p Policy) Validate() error {
	if p.TextGrace < 0 {
		return fmt.Errorf("%w: text_grace must not be negative", ErrInvalidPolicy)
	}
	if p.TextDecay <= 0 {
		return fmt.Errorf("%w: text_decay must be positive", ErrInvalidPolicy)
	}
	if p.EmojiLifespan <= 0 {
		return fmt.Errorf("%w: emoji_lifespan must be positive", ErrInvalidPolicy)
	}
	return nil
}

// Lifespan 自最后一次更新起的总存活时长
func (p Policy) Lifespan(kind model.MessageKind) time.Duration {
	if kind == model.KindEmoji {
		return p.EmojiLifespan
	}
	return p.TextGrace + p.TextDecay
}

// MaxLifespan 所有类型中最长的存活时长，用于读窗口与清理
func (p Policy) MaxLifespan() time.Duration {
	text := p.Lifespan(model.KindText)
	if p.EmojiLifespan > text {
		return p.EmojiLifespan
	}
	return text
}

// Projection 某一时刻消息的可见内容
type Projection struct {
	Visible string
	Alive   bool
}

// Project 计算 now 时刻 m 的可见内容，纯函数
func Project(p Policy, m *model.Message, now time.Time) Projection {
	if m.IsDeleted || m.Content == "" {
		return Projection{}
	}

	elapsed := now.Sub(m.UpdatedAt)
	if elapsed < 0 {
		elapsed = 0
	}

	if m.Kind == model.KindEmoji {
		if elapsed < p.EmojiLifespan {
			return Projection{Visible: m.Content, Alive: true}
		}
		return Projection{}
	}

	if elapsed < p.TextGrace {
		return Projection{Visible: m.Content, Alive: true}
	}

	decayElapsed := elapsed - p.TextGrace
	if decayElapsed >= p.TextDecay {
		return Projection{}
	}

	runes := []rune(m.Content)
	// 128 位乘除，decayElapsed < TextDecay 保证商小于 len(runes)，不受内容长度影响
	hi, lo := bits.Mul64(uint64(decayElapsed), uint64(len(runes)))
	q, _ := bits.Div64(hi, lo, uint64(p.TextDecay))
	removed := int(q)
	if removed >= len(runes) {
		return Projection{}
	}
	return Projection{Visible: string(runes[removed:]), Alive: true}
}

// FullyDecayed 整个生命周期是否已经结束
func (p Policy) FullyDecayed(m *model.Message, now time.Time) bool {
	return !Project(p, m, now).Alive
}

// RuneLen 内容字符数
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
