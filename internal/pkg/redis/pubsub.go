package redis

import (
	"context"
	"sync"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"Ephemera/internal/model"
	"Ephemera/internal/pkg/consts"
)

// PairChannel 双人会话的事件频道
func PairChannel(pairKey string) string {
	return consts.PairChannelKey + pairKey
}

// Publish 发布原始消息
func Publish(ctx context.Context, channel string, payload []byte) error {
	return Rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe 订阅频道，调用方负责 Close
func Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return Rdb.Subscribe(ctx, channels...)
}

// EventStream 单个会话频道上的原始事件
type EventStream interface {
	Payloads() <-chan string
	Close() error
}

// EventBus 会话频道的发布与订阅
type EventBus struct{}

func NewEventBus() *EventBus { return &EventBus{} }

// PublishEvent 把变更事件发布到会话频道
func (b *EventBus) PublishEvent(ctx context.Context, pairKey string, ev model.ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return Publish(ctx, PairChannel(pairKey), data)
}

// SubscribePair 订阅会话频道，返回前确认订阅已生效
func (b *EventBus) SubscribePair(ctx context.Context, pairKey string) (EventStream, error) {
	ps := Subscribe(ctx, PairChannel(pairKey))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	s := &pairStream{ps: ps, out: make(chan string), done: make(chan struct{})}
	go s.relay()
	return s, nil
}

type pairStream struct {
	ps   *redis.PubSub
	out  chan string
	once sync.Once
	done chan struct{}
}

func (s *pairStream) relay() {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		select {
		case s.out <- msg.Payload:
		case <-s.done:
			return
		}
	}
}

func (s *pairStream) Payloads() <-chan string { return s.out }

func (s *pairStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
