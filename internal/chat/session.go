package chat

import (
	"context"
	"fmt"
	log "log/slog"
	"time"

	"Ephemera/internal/model"
	"Ephemera/internal/pkg/consts"
	"Ephemera/internal/pkg/tier"
)

// Session 客户端事件循环，所有会话状态只在 Run 所在协程中修改
type Session struct {
	cfg      Config
	gw       Gateway
	tiers    *tier.Resolver
	renderer Renderer
	notifier Notifier
	clock    Clock

	events chan func()
	done   chan struct{}

	// 以下字段只在事件循环中访问
	ctx       context.Context
	gen       uint64
	conv      *Conversation
	sub       Subscription
	tickTimer   Timer
	editTimer   Timer
	reopenTimer Timer
}

// Option Session 可选项
type Option func(*Session)

// WithClock 替换时钟
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithNotifier 设置推送通知协作方
func WithNotifier(n Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

// NewSession 创建会话循环
func NewSession(cfg Config, gw Gateway, tiers *tier.Resolver, renderer Renderer, opts ...Option) *Session {
	s := &Session{
		cfg:      cfg.withDefaults(),
		gw:       gw,
		tiers:    tiers,
		renderer: renderer,
		clock:    SystemClock(),
		events:   make(chan func(), 64),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run 执行事件循环直到 ctx 结束
func (s *Session) Run(ctx context.Context) error {
	s.ctx = ctx
	defer close(s.done)
	defer s.teardown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-s.events:
			f()
		}
	}
}

func (s *Session) post(f func()) {
	select {
	case s.events <- f:
	case <-s.done:
	}
}

// Open 切换到与 peerID 的会话
func (s *Session) Open(peerID uint64) {
	s.post(func() { s.open(peerID) })
}

// Type 输入框内容变化
func (s *Session) Type(value string) {
	s.post(func() { s.input(value) })
}

// SendEmoji 发送表情
func (s *Session) SendEmoji(category string) {
	s.post(func() {
		if s.conv == nil {
			return
		}
		if err := s.conv.SendEmoji(s.clock.Now(), category); err != nil {
			log.Warn("emoji rejected", "category", category, "err", err)
			return
		}
		s.dispatch()
		s.render()
	})
}

func (s *Session) open(peerID uint64) {
	s.teardown()
	s.gen++
	gen := s.gen
	s.conv = NewConversation(s.cfg, peerID, s.tiers)
	s.armTick(gen)
	s.render()
	s.load(gen, peerID, s.cfg.ReopenBackoff)
}

// load 订阅并拉取初始状态，失败时按退避间隔重试
func (s *Session) load(gen, peerID uint64, backoff time.Duration) {
	ctx := s.ctx
	go func() {
		sub, stats, msgs, err := s.fetch(ctx, peerID)
		s.post(func() {
			if gen != s.gen {
				if sub != nil {
					_ = sub.Close()
				}
				return
			}
			if err != nil {
				log.Error("open conversation failed", "peer_id", peerID, "retry_in", backoff, "err", err)
				s.armReopen(gen, peerID, backoff)
				return
			}
			var count int64
			if stats != nil {
				count = stats.MessageCount
			}
			s.conv.Seed(msgs, count)
			s.sub = sub
			go s.pump(gen, sub)
			s.render()
		})
	}()
}

// fetch 先订阅再拉取，拉取期间产生的事件留在订阅缓冲中，合并幂等
func (s *Session) fetch(ctx context.Context, peerID uint64) (Subscription, *model.ConversationStats, []model.Message, error) {
	sub, err := s.gw.Subscribe(ctx, peerID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("subscribe: %w", err)
	}
	stats, err := s.gw.Stats(ctx, peerID)
	if err != nil {
		_ = sub.Close()
		return nil, nil, nil, fmt.Errorf("load conversation stats: %w", err)
	}
	since := s.clock.Now().Add(-s.cfg.Policy.MaxLifespan())
	msgs, err := s.gw.ListMessages(ctx, peerID, since)
	if err != nil {
		_ = sub.Close()
		return nil, nil, nil, fmt.Errorf("list messages: %w", err)
	}
	return sub, stats, msgs, nil
}

func (s *Session) armReopen(gen, peerID uint64, backoff time.Duration) {
	if s.ctx.Err() != nil {
		return
	}
	next := min(backoff*2, maxReopenBackoff)
	s.reopenTimer = s.clock.AfterFunc(backoff, func() {
		s.post(func() {
			if gen != s.gen {
				return
			}
			s.reopenTimer = nil
			s.load(gen, peerID, next)
		})
	})
}

func (s *Session) pump(gen uint64, sub Subscription) {
	for ev := range sub.Events() {
		s.post(func() {
			if gen != s.gen {
				return
			}
			out := s.conv.Apply(s.clock.Now(), ev)
			s.notify(out)
			s.render()
		})
	}
	// 事件流被对端关闭时重新建立
	s.post(func() {
		if gen != s.gen || s.sub != sub {
			return
		}
		s.sub = nil
		log.Warn("event stream closed, reconnecting", "peer_id", s.conv.PeerID(), "retry_in", s.cfg.ReopenBackoff)
		s.armReopen(gen, s.conv.PeerID(), s.cfg.ReopenBackoff)
	})
}

func (s *Session) input(value string) {
	if s.conv == nil {
		return
	}
	res := s.conv.Input(s.clock.Now(), value)
	if res.Intent.Kind != IntentNone {
		s.armEdit(s.gen)
		s.dispatch()
	}
	s.render()
}

func (s *Session) dispatch() {
	w := s.conv.NextWrite(s.clock.Now())
	if w == nil {
		return
	}
	gen := s.gen
	ctx := s.ctx
	go func() {
		m, err := s.write(ctx, w)
		s.post(func() {
			if gen != s.gen {
				return
			}
			if err != nil {
				s.conv.WriteFailed(s.clock.Now(), w, err)
			} else {
				s.conv.WriteSucceeded(w, *m)
			}
			s.dispatch()
			s.render()
		})
	}()
}

func (s *Session) write(ctx context.Context, w *Write) (*model.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	var (
		m   *model.Message
		err error
	)
	switch w.Kind {
	case WriteAmend:
		m, err = s.gw.AmendMessage(ctx, w.TargetID, w.Content, w.UpdatedAt)
	case WriteCreateEmoji:
		m, err = s.gw.CreateMessage(ctx, w.ReceiverID, model.KindEmoji, w.Content)
	default:
		m, err = s.gw.CreateMessage(ctx, w.ReceiverID, model.KindText, w.Content)
	}
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: empty gateway response", ErrTransientWrite)
	}
	return m, nil
}

func (s *Session) notify(out Outcome) {
	if !out.NewInsert || !out.FromPeer || s.notifier == nil || s.cfg.PushToken == "" {
		return
	}
	body := out.Message.Content
	if out.Message.Kind == model.KindEmoji && s.tiers != nil {
		body = s.tiers.For(out.Message.Content, s.conv.rec.Count())
	}
	ctx := s.ctx
	go func() {
		if err := s.notifier.Notify(ctx, s.cfg.PushToken, consts.NotifyTitle, body); err != nil {
			log.Warn("push notification failed", "err", err)
		}
	}()
}

func (s *Session) armTick(gen uint64) {
	s.tickTimer = s.clock.AfterFunc(s.cfg.TickInterval, func() {
		s.post(func() {
			if gen != s.gen {
				return
			}
			s.conv.Tick(s.clock.Now())
			s.render()
			s.armTick(gen)
		})
	})
}

func (s *Session) armEdit(gen uint64) {
	if s.editTimer != nil {
		s.editTimer.Stop()
	}
	deadline := s.conv.EditDeadline()
	if deadline.IsZero() {
		return
	}
	s.editTimer = s.clock.AfterFunc(deadline.Sub(s.clock.Now()), func() {
		s.post(func() {
			if gen != s.gen {
				return
			}
			if s.conv.ExpireEditWindow(s.clock.Now()) {
				s.render()
			}
		})
	})
}

func (s *Session) teardown() {
	if s.tickTimer != nil {
		s.tickTimer.Stop()
		s.tickTimer = nil
	}
	if s.editTimer != nil {
		s.editTimer.Stop()
		s.editTimer = nil
	}
	if s.reopenTimer != nil {
		s.reopenTimer.Stop()
		s.reopenTimer = nil
	}
	if s.sub != nil {
		if err := s.sub.Close(); err != nil {
			log.Warn("close subscription failed", "err", err)
		}
		s.sub = nil
	}
	s.conv = nil
}

func (s *Session) render() {
	if s.renderer == nil || s.conv == nil {
		return
	}
	s.renderer.Render(s.conv.View(s.clock.Now()))
}

// Time 当前时钟读数，供渲染层计算剩余时间
func (s *Session) Time() time.Time { return s.clock.Now() }
