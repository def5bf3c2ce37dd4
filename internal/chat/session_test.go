package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Ephemera/internal/model"
)

type fakeTimer struct {
	c       *fakeClock
	at      time.Time
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// armed 未触发也未取消的定时器数
func (c *fakeClock) armed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	kept := c.timers[:0]
	for _, t := range c.timers {
		if t.stopped {
			continue
		}
		if !t.at.After(c.now) {
			t.stopped = true
			due = append(due, t)
			continue
		}
		kept = append(kept, t)
	}
	c.timers = kept
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

type fakeSub struct {
	peer   uint64
	ch     chan model.ChangeEvent
	once   sync.Once
	mu     sync.Mutex
	closed bool
}

func (s *fakeSub) Events() <-chan model.ChangeEvent { return s.ch }

func (s *fakeSub) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.ch)
	})
	return nil
}

func (s *fakeSub) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeGateway struct {
	clock *fakeClock

	mu      sync.Mutex
	seq     int
	created []model.Message
	list    []model.Message
	count   int64
	subs    []*fakeSub

	subscribeErrs int
}

func (g *fakeGateway) CreateMessage(_ context.Context, receiverID uint64, kind model.MessageKind, content string) (*model.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	now := g.clock.Now()
	m := model.Message{
		ID: fmt.Sprintf("m%d", g.seq), SenderID: 1, ReceiverID: receiverID,
		Kind: kind, Content: content, CreatedAt: now, UpdatedAt: now,
	}
	g.created = append(g.created, m)
	return &m, nil
}

func (g *fakeGateway) AmendMessage(_ context.Context, id, newContent string, newUpdatedAt time.Time) (*model.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.created {
		if g.created[i].ID == id {
			g.created[i].Content = newContent
			g.created[i].UpdatedAt = newUpdatedAt
			m := g.created[i]
			return &m, nil
		}
	}
	return nil, ErrStaleAmend
}

func (g *fakeGateway) ListMessages(_ context.Context, _ uint64, _ time.Time) ([]model.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]model.Message(nil), g.list...), nil
}

func (g *fakeGateway) Stats(_ context.Context, peerID uint64) (*model.ConversationStats, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &model.ConversationStats{PairKey: model.PairKey(1, peerID), MessageCount: g.count}, nil
}

func (g *fakeGateway) Subscribe(_ context.Context, peerID uint64) (Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.subscribeErrs > 0 {
		g.subscribeErrs--
		return nil, fmt.Errorf("%w: dial refused", ErrTransientWrite)
	}
	s := &fakeSub{peer: peerID, ch: make(chan model.ChangeEvent, 16)}
	g.subs = append(g.subs, s)
	return s, nil
}

func (g *fakeGateway) sub(i int) *fakeSub {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i >= len(g.subs) {
		return nil
	}
	return g.subs[i]
}

func (g *fakeGateway) createdContents() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, m := range g.created {
		out = append(out, m.Content)
	}
	return out
}

type recorder struct {
	mu    sync.Mutex
	views []View
}

func (r *recorder) Render(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

func (r *recorder) last() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.views) == 0 {
		return View{}
	}
	return r.views[len(r.views)-1]
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *fakeNotifier) Notify(_ context.Context, token, _, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, token+":"+body)
	return nil
}

func (n *fakeNotifier) got() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func startSession(t *testing.T, gw *fakeGateway, clk *fakeClock, opts ...Option) (*Session, *recorder) {
	t.Helper()
	rec := &recorder{}
	cfg := Config{SelfID: 1, EditWindow: 15 * time.Second, PushToken: "ExponentPushToken[x]"}
	s := NewSession(cfg, gw, nil, rec, append(opts, WithClock(clk))...)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = s.Run(ctx) }()
	return s, rec
}

func TestSession_OpenSeedsView(t *testing.T) {
	clk := &fakeClock{now: t0}
	gw := &fakeGateway{clock: clk, count: 7, list: []model.Message{textMsg("p1", 2, "hey", t0, t0)}}
	s, rec := startSession(t, gw, clk)

	s.Open(2)
	require.Eventually(t, func() bool {
		v := rec.last()
		return v.PeerID == 2 && v.MessageCount == 7 && len(v.Items) == 1
	}, waitFor, tick)
	assert.Equal(t, "hey", rec.last().Items[0].Visible)
}

func TestSession_TypingWritesAndPeerInsertNotifies(t *testing.T) {
	clk := &fakeClock{now: t0}
	gw := &fakeGateway{clock: clk, count: 3}
	notifier := &fakeNotifier{}
	s, rec := startSession(t, gw, clk, WithNotifier(notifier))

	s.Open(2)
	require.Eventually(t, func() bool { return rec.last().MessageCount == 3 }, waitFor, tick)

	s.Type("hello ")
	s.Type("hello world ")
	require.Eventually(t, func() bool {
		v := rec.last()
		return len(v.Items) == 1 && !v.Items[0].Pending && v.Items[0].Visible == "hello world"
	}, waitFor, tick)
	assert.Equal(t, []string{"hello world"}, gw.createdContents(), "one row created then amended")
	assert.Equal(t, int64(4), rec.last().MessageCount)

	gw.sub(0).ch <- insert(textMsg("p2", 2, "yo", t0, t0))
	require.Eventually(t, func() bool { return len(notifier.got()) == 1 }, waitFor, tick)
	assert.Equal(t, "ExponentPushToken[x]:yo", notifier.got()[0])
	assert.Equal(t, int64(5), rec.last().MessageCount)
}

func TestSession_SwitchClosesPreviousSubscription(t *testing.T) {
	clk := &fakeClock{now: t0}
	gw := &fakeGateway{clock: clk}
	s, rec := startSession(t, gw, clk)

	s.Open(2)
	require.Eventually(t, func() bool { return gw.sub(0) != nil }, waitFor, tick)
	s.Open(3)

	require.Eventually(t, func() bool {
		return gw.sub(1) != nil && gw.sub(0).isClosed() && rec.last().PeerID == 3
	}, waitFor, tick)
	assert.False(t, gw.sub(1).isClosed())
}

func TestSession_DecayTickRemovesExpired(t *testing.T) {
	clk := &fakeClock{now: t0}
	emoji := model.Message{
		ID: "e", SenderID: 2, ReceiverID: 1, Kind: model.KindEmoji, Content: model.EmojiSmile,
		CreatedAt: t0, UpdatedAt: t0,
	}
	gw := &fakeGateway{clock: clk, list: []model.Message{emoji}}
	s, rec := startSession(t, gw, clk)

	s.Open(2)
	require.Eventually(t, func() bool { return len(rec.last().Items) == 1 }, waitFor, tick)

	clk.Advance(20 * time.Minute)
	require.Eventually(t, func() bool { return len(rec.last().Items) == 0 }, waitFor, tick)
}

func TestSession_EditWindowClearsField(t *testing.T) {
	clk := &fakeClock{now: t0}
	gw := &fakeGateway{clock: clk}
	s, rec := startSession(t, gw, clk)

	s.Open(2)
	s.Type("hi ")
	require.Eventually(t, func() bool { return rec.last().Field == "hi " }, waitFor, tick)

	clk.Advance(15 * time.Second)
	require.Eventually(t, func() bool { return rec.last().Field == "" }, waitFor, tick)
}

func TestSession_OpenRetriesAfterFailure(t *testing.T) {
	clk := &fakeClock{now: t0}
	gw := &fakeGateway{clock: clk, count: 4, subscribeErrs: 1, list: []model.Message{textMsg("p1", 2, "hey", t0, t0)}}
	s, rec := startSession(t, gw, clk)

	s.Open(2)
	// 节拍定时器 + 重试定时器
	require.Eventually(t, func() bool { return clk.armed() == 2 }, waitFor, tick)
	assert.Nil(t, gw.sub(0))
	assert.Empty(t, rec.last().Items)

	clk.Advance(defaultReopenBackoff)
	require.Eventually(t, func() bool {
		v := rec.last()
		return gw.sub(0) != nil && v.MessageCount == 4 && len(v.Items) == 1
	}, waitFor, tick)
}

func TestSession_ReconnectsWhenStreamCloses(t *testing.T) {
	clk := &fakeClock{now: t0}
	gw := &fakeGateway{clock: clk}
	s, _ := startSession(t, gw, clk)

	s.Open(2)
	require.Eventually(t, func() bool { return gw.sub(0) != nil }, waitFor, tick)
	require.Eventually(t, func() bool { return clk.armed() == 1 }, waitFor, tick)

	require.NoError(t, gw.sub(0).Close())
	require.Eventually(t, func() bool { return clk.armed() == 2 }, waitFor, tick)

	clk.Advance(defaultReopenBackoff)
	require.Eventually(t, func() bool {
		return gw.sub(1) != nil && !gw.sub(1).isClosed()
	}, waitFor, tick)
}
