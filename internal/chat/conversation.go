package chat

import (
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"Ephemera/internal/model"
	"Ephemera/internal/pkg/decay"
	"Ephemera/internal/pkg/tier"
)

// WriteKind 待发送写请求类型
type WriteKind int

const (
	WriteCreateText WriteKind = iota
	WriteCreateEmoji
	WriteAmend
)

func (k WriteKind) text() bool { return k != WriteCreateEmoji }

// Write 一次网关写请求，Content/TargetID/UpdatedAt 在出队时确定
type Write struct {
	Seq          uint64
	Kind         WriteKind
	Ref          string
	ReceiverID   uint64
	Words        string
	PrefixBefore string

	TargetID  string
	Content   string
	UpdatedAt time.Time
}

// ViewItem 视图中的一行
type ViewItem struct {
	Message model.Message
	Visible string
	Alive   bool
	Glyph   string
	Pending bool
}

// View 会话视图快照
type View struct {
	PeerID       uint64
	Items        []ViewItem
	MessageCount int64
	Field        string
}

// Conversation 单个会话的状态，只能由一个协程持有
type Conversation struct {
	cfg       Config
	peerID    uint64
	coalescer *Coalescer
	rec       *Reconciler
	tiers     *tier.Resolver

	queue    []*Write
	inflight *Write
	seq      uint64
}

// NewConversation 创建与 peerID 的会话
func NewConversation(cfg Config, peerID uint64, tiers *tier.Resolver) *Conversation {
	cfg = cfg.withDefaults()
	return &Conversation{
		cfg:       cfg,
		peerID:    peerID,
		coalescer: NewCoalescer(cfg.SelfID, cfg.EditWindow),
		rec:       NewReconciler(cfg.SelfID, cfg.Policy, cfg.UnknownRefRetry),
		tiers:     tiers,
	}
}

// PeerID 对端用户
func (c *Conversation) PeerID() uint64 { return c.peerID }

// Reconciler 底层 Reconciler
func (c *Conversation) Reconciler() *Reconciler { return c.rec }

// Seed 写入初始消息与累计计数
func (c *Conversation) Seed(msgs []model.Message, count int64) {
	c.rec.Seed(msgs, count)
}

func (c *Conversation) enqueue(w *Write) {
	c.seq++
	w.Seq = c.seq
	w.ReceiverID = c.peerID
	c.queue = append(c.queue, w)
}

// Input 处理输入框变化，需要写时乐观应用并入队
func (c *Conversation) Input(now time.Time, value string) Result {
	latest := c.rec.Latest()
	res := c.coalescer.Input(now, value, latest)
	it := res.Intent

	// 追加后超出长度上限时改为新建
	if it.Kind == IntentAmend && decay.RuneLen(joinWords(latest.Message.Content, it.Words)) > c.cfg.MaxTextRunes {
		it.Kind = IntentCreateText
		it.Ref = ""
	}

	switch it.Kind {
	case IntentAmend:
		if ref, ok := c.rec.AmendPending(now, it.Ref, it.Words); ok {
			c.enqueue(&Write{Kind: WriteAmend, Ref: ref, Words: it.Words, PrefixBefore: it.PrefixBefore})
			break
		}
		it.Kind = IntentCreateText
		c.createText(now, res.Field, it)
	case IntentCreateText:
		c.createText(now, res.Field, it)
	}
	res.Intent = it
	return res
}

// createText 按长度上限切分新建文本，每段的 PrefixBefore 指向该段在输入框中的起点
func (c *Conversation) createText(now time.Time, field string, it Intent) {
	start := len(it.PrefixBefore)
	if start <= len(field) {
		seg := field[start:]
		start += len(seg) - len(strings.TrimLeft(seg, " "))
	}
	for i, chunk := range splitText(it.Words, c.cfg.MaxTextRunes) {
		prefix := it.PrefixBefore
		if i > 0 && start+chunk.offset <= len(field) {
			prefix = field[:start+chunk.offset]
		}
		ref := c.rec.CreatePending(now, c.peerID, model.KindText, chunk.text)
		c.enqueue(&Write{Kind: WriteCreateText, Ref: ref, Words: chunk.text, PrefixBefore: prefix})
	}
}

// SendEmoji 发送表情
func (c *Conversation) SendEmoji(now time.Time, category string) error {
	if !model.IsEmojiCategory(category) {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	it := c.coalescer.Emoji(category)
	ref := c.rec.CreatePending(now, c.peerID, model.KindEmoji, it.Category)
	c.enqueue(&Write{Kind: WriteCreateEmoji, Ref: ref, Words: it.Category})
	return nil
}

// NextWrite 没有写在途时出队下一条，并根据已确认记录计算追加内容
func (c *Conversation) NextWrite(now time.Time) *Write {
	if c.inflight != nil {
		return nil
	}
	for len(c.queue) > 0 {
		w := c.queue[0]
		c.queue = c.queue[1:]

		switch w.Kind {
		case WriteAmend:
			id := c.rec.BoundID(w.Ref)
			base, ok := c.rec.Store().Get(id)
			if id == "" || !ok {
				log.Warn("amend target is gone, sending as a new message", "ref", w.Ref)
				c.rec.Release(w.Ref)
				w.Kind = WriteCreateText
				w.Ref = c.rec.CreatePending(now, c.peerID, model.KindText, w.Words)
				w.Content = w.Words
				break
			}
			content := joinWords(base.Content, w.Words)
			if decay.RuneLen(content) > c.cfg.MaxTextRunes {
				log.Warn("amend exceeds length limit, sending as a new message", "target", id)
				c.rec.Release(w.Ref)
				w.Kind = WriteCreateText
				w.Ref = c.rec.CreatePending(now, c.peerID, model.KindText, w.Words)
				w.Content = w.Words
				break
			}
			w.TargetID = id
			w.Content = content
			w.UpdatedAt = now
		default:
			w.Content = w.Words
		}
		c.inflight = w
		return w
	}
	return nil
}

// InFlight 当前在途写请求
func (c *Conversation) InFlight() *Write { return c.inflight }

// Queued 排队中的写请求数
func (c *Conversation) Queued() int { return len(c.queue) }

// WriteSucceeded 写请求成功返回
func (c *Conversation) WriteSucceeded(w *Write, m model.Message) Outcome {
	if w != c.inflight {
		return Outcome{}
	}
	c.inflight = nil
	return c.rec.Confirm(w.Ref, m)
}

// WriteFailed 写请求失败：追加被拒转为新建，确定性拒绝不再重试，其余按临时失败回滚
func (c *Conversation) WriteFailed(now time.Time, w *Write, err error) {
	if w != c.inflight {
		return
	}
	c.inflight = nil

	if w.Kind == WriteAmend && errors.Is(err, ErrStaleAmend) {
		c.foldStaleAmend(now, w)
		return
	}

	// 回显已到达，说明服务端已持久化
	if c.applied(w) {
		log.Warn("write response lost after echo", "ref", w.Ref, "err", err)
		c.rec.Release(w.Ref)
		return
	}

	if errors.Is(err, ErrRejectedWrite) {
		c.rejected(now, w, err)
		return
	}

	log.Warn("write failed, rolling back", "ref", w.Ref, "kind", w.Kind, "err", err)
	c.rec.Rollback(w.Ref)
	if !w.Kind.text() {
		return
	}
	c.coalescer.Rewind(w.PrefixBefore)

	kept := c.queue[:0]
	for _, q := range c.queue {
		if q.Kind.text() {
			c.rec.Rollback(q.Ref)
			continue
		}
		kept = append(kept, q)
	}
	c.queue = kept
}

// applied 写请求的效果是否已经通过事件流到达
func (c *Conversation) applied(w *Write) bool {
	if w.Kind != WriteAmend {
		return c.rec.BoundID(w.Ref) != ""
	}
	stored, ok := c.rec.Store().Get(w.TargetID)
	return ok && w.Content != "" && strings.HasPrefix(stored.Content, w.Content)
}

// rejected 网关确定性拒绝：追加改为新建，新建丢弃，不回退输入前缀
func (c *Conversation) rejected(now time.Time, w *Write, err error) {
	if w.Kind == WriteAmend {
		log.Warn("amend rejected by gateway, sending as a new message", "target", w.TargetID, "err", err)
		c.foldStaleAmend(now, w)
		return
	}
	log.Warn("write rejected by gateway, dropping", "ref", w.Ref, "kind", w.Kind, "runes", decay.RuneLen(w.Content), "err", err)
	c.rec.Rollback(w.Ref)
}

func (c *Conversation) foldStaleAmend(now time.Time, w *Write) {
	words := []string{w.Words}
	kept := c.queue[:0]
	for _, q := range c.queue {
		if q.Kind == WriteAmend && q.Ref == w.Ref {
			words = append(words, q.Words)
			continue
		}
		kept = append(kept, q)
	}
	c.queue = kept
	c.rec.Rollback(w.Ref)

	joined := strings.Join(words, " ")
	heads := make([]*Write, 0, 1)
	for i, chunk := range splitText(joined, c.cfg.MaxTextRunes) {
		// 后续片段的起点不在输入框中，失败时不再回退
		prefix := w.PrefixBefore
		if i > 0 {
			prefix = c.coalescer.Prefix()
		}
		c.seq++
		heads = append(heads, &Write{
			Seq:          c.seq,
			Kind:         WriteCreateText,
			Ref:          c.rec.CreatePending(now, c.peerID, model.KindText, chunk.text),
			ReceiverID:   c.peerID,
			Words:        chunk.text,
			PrefixBefore: prefix,
		})
	}
	c.queue = append(heads, c.queue...)
	log.Info("amend rejected as stale, sending as a new message", "target", w.TargetID, "words", len(words))
}

// Apply 应用网关事件
func (c *Conversation) Apply(now time.Time, ev model.ChangeEvent) Outcome {
	return c.rec.Apply(now, ev)
}

// ExpireEditWindow 编辑窗口到期后清空输入框
func (c *Conversation) ExpireEditWindow(now time.Time) bool {
	return c.coalescer.Expire(now)
}

// EditDeadline 当前编辑窗口截止时间
func (c *Conversation) EditDeadline() time.Time { return c.coalescer.Deadline() }

// Tick 衰减节拍
func (c *Conversation) Tick(now time.Time) { c.rec.Tick(now) }

// View now 时刻的视图快照
func (c *Conversation) View(now time.Time) View {
	return View{
		PeerID:       c.peerID,
		Items:        c.rec.View(now, c.tiers),
		MessageCount: c.rec.Count(),
		Field:        c.coalescer.Field(),
	}
}

type textChunk struct {
	text   string
	offset int // 在原文本中的字节偏移
}

// splitText 把 s 切成不超过 limit 个字符的片段，优先在空格处断开
func splitText(s string, limit int) []textChunk {
	var out []textChunk
	offset := 0
	for {
		rest := s[offset:]
		if limit <= 0 || utf8.RuneCountInString(rest) <= limit {
			return append(out, textChunk{text: rest, offset: offset})
		}

		cut, n := len(rest), 0
		for i := range rest {
			if n == limit {
				cut = i
				break
			}
			n++
		}
		if sp := strings.LastIndexByte(rest[:cut], ' '); sp > 0 {
			cut = sp
		}
		out = append(out, textChunk{text: strings.TrimRight(rest[:cut], " "), offset: offset})

		next := cut
		for next < len(rest) && rest[next] == ' ' {
			next++
		}
		offset += next
	}
}
