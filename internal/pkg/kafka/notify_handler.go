package kafka

import (
	"context"
	"fmt"
	log "log/slog"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"

	"Ephemera/internal/model"
	"Ephemera/internal/pkg/consts"
	"Ephemera/internal/pkg/logger"
	"Ephemera/internal/pkg/util"
)

const maxBodyRunes = 120

// TokenLookup 查询用户推送 token
type TokenLookup interface {
	Get(ctx context.Context, userID uint64) (string, error)
}

// Notifier 设备推送
type Notifier interface {
	Notify(ctx context.Context, token, title, body string) error
}

// GlyphResolver 表情分类 + 会话消息数 -> 展示字符
type GlyphResolver interface {
	For(category string, count int64) string
}

// NotifyHandler 新消息推送给接收方设备
type NotifyHandler struct {
	tokens   TokenLookup
	notifier Notifier
	glyphs   GlyphResolver
}

func NewNotifyHandler(tokens TokenLookup, notifier Notifier, glyphs GlyphResolver) *NotifyHandler {
	return &NotifyHandler{tokens: tokens, notifier: notifier, glyphs: glyphs}
}

func (s *NotifyHandler) Setup(sarama.ConsumerGroupSession) error {
	log.Info("notify consumer setup")
	return nil
}

func (s *NotifyHandler) Cleanup(sarama.ConsumerGroupSession) error {
	log.Info("notify consumer cleanup")
	return nil
}

func (s *NotifyHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	return pullMessageBatch(session, claim, s.logic)
}

func (s *NotifyHandler) logic(ctx context.Context, msg *sarama.ConsumerMessage) error {
	for _, h := range msg.Headers {
		if h != nil && string(h.Key) == logger.TraceIDKey {
			ctx = logger.WithTraceID(ctx, string(h.Value))
		}
	}

	var ev MessageCreatedEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		// 格式错误的消息重试也无法成功
		log.ErrorContext(ctx, "unmarshal message created event error", "err", err)
		return nil
	}
	if err := util.ValidateDTO(&ev); err != nil {
		log.ErrorContext(ctx, "drop invalid message created event", "err", err)
		return nil
	}
	if !keyMatches(msg.Key, &ev) {
		log.ErrorContext(ctx, "drop message created event with mismatched key", "key", string(msg.Key), "message_id", ev.ID)
		return nil
	}

	token, err := s.tokens.Get(ctx, ev.ReceiverID)
	if err != nil {
		return fmt.Errorf("lookup push token: %w", err)
	}
	if token == "" {
		return nil
	}

	if err = s.notifier.Notify(ctx, token, consts.NotifyTitle, s.body(&ev)); err != nil {
		return err
	}
	log.DebugContext(ctx, "push notification sent", "message_id", ev.ID, "receiver_id", ev.ReceiverID)
	return nil
}

// keyMatches 分区 key 为会话标识时必须与事件双方一致
func keyMatches(key []byte, ev *MessageCreatedEvent) bool {
	if len(key) == 0 {
		return true
	}
	a, b, err := model.ParsePairKey(string(key))
	if err != nil {
		return false
	}
	return model.PairKey(a, b) == model.PairKey(ev.SenderID, ev.ReceiverID)
}

func (s *NotifyHandler) body(ev *MessageCreatedEvent) string {
	if ev.Kind == model.KindEmoji {
		return s.glyphs.For(ev.Content, ev.MessageCount)
	}
	runes := []rune(ev.Content)
	if len(runes) > maxBodyRunes {
		return string(runes[:maxBodyRunes]) + "…"
	}
	return ev.Content
}
