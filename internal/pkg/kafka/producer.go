package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/jinzhu/copier"

	"Ephemera/internal/api/config"
	"Ephemera/internal/model"
	"Ephemera/internal/pkg/logger"
)

// MessageCreatedEvent 新消息通知事件
type MessageCreatedEvent struct {
	ID           string            `json:"id" validate:"required"`
	SenderID     uint64            `json:"sender_id" validate:"required"`
	ReceiverID   uint64            `json:"receiver_id" validate:"required,nefield=SenderID"`
	Kind         model.MessageKind `json:"kind" validate:"oneof=text emoji"`
	Content      string            `json:"content" validate:"required"`
	CreatedAt    time.Time         `json:"created_at"`
	MessageCount int64             `json:"message_count" validate:"gte=0"`
}

// MessageProducer 把新消息写入通知 topic，按会话分区保证顺序
type MessageProducer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewMessageProducer(cfg config.KafkaConfig, topic string) (*MessageProducer, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, newProducerConfig(cfg))
	if err != nil {
		return nil, err
	}
	return newMessageProducer(producer, topic), nil
}

func newMessageProducer(producer sarama.SyncProducer, topic string) *MessageProducer {
	return &MessageProducer{producer: producer, topic: topic}
}

// MessageCreated 投递新消息事件，count 为会话当前累计消息数
func (p *MessageProducer) MessageCreated(ctx context.Context, m model.Message, count int64) error {
	var ev MessageCreatedEvent
	if err := copier.Copy(&ev, &m); err != nil {
		return err
	}
	ev.MessageCount = count

	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(model.PairKey(m.SenderID, m.ReceiverID)),
		Value: sarama.ByteEncoder(value),
	}
	if traceID := logger.TraceID(ctx); traceID != "" {
		msg.Headers = []sarama.RecordHeader{{Key: []byte(logger.TraceIDKey), Value: []byte(traceID)}}
	}

	if _, _, err = p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("produce message created: %w", err)
	}
	return nil
}

func (p *MessageProducer) Close() error {
	return p.producer.Close()
}
