package kafka

import (
	"context"
	"errors"
	log "log/slog"

	"github.com/IBM/sarama"

	"Ephemera/internal/api/config"
)

// ConsumerManager 管理所有 Kafka 消费者
type ConsumerManager struct {
	notifyConsumer sarama.ConsumerGroup
	notifyHandler  sarama.ConsumerGroupHandler
	topic          string
}

// NewConsumerManager 构造函数
func NewConsumerManager(cfg *config.Config, tokens TokenLookup, notifier Notifier, glyphs GlyphResolver) (*ConsumerManager, error) {
	saramaCfg := newSaramaConfig(cfg.Kafka)

	notifyConsumer, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.KafkaNotifyConsumer.GroupID, saramaCfg)
	if err != nil {
		return nil, err
	}

	return &ConsumerManager{
		notifyConsumer: notifyConsumer,
		notifyHandler:  NewNotifyHandler(tokens, notifier, glyphs),
		topic:          cfg.KafkaNotifyConsumer.Topic,
	}, nil
}

// Start 启动所有消费者，ctx 结束后关闭
func (m *ConsumerManager) Start(ctx context.Context) error {
	go func() {
		for err := range m.notifyConsumer.Errors() {
			log.Error("notify consumer error", "err", err)
		}
	}()

	go func() {
		log.Info("Notify consumer started", "topic", m.topic)
		for {
			if err := m.notifyConsumer.Consume(ctx, []string{m.topic}, m.notifyHandler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				log.Error("Error from consumer", "err", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	<-ctx.Done()
	log.Info("Kafka Manager shutting down...")

	if err := m.notifyConsumer.Close(); err != nil {
		log.Error("Failed to close notify consumer", "err", err)
	}
	return nil
}
