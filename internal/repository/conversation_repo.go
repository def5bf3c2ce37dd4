package repository

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Ephemera/internal/model"
)

const mysqlDuplicateEntry = 1062

type ConversationRepo interface {
	GetByPairKey(ctx context.Context, pairKey string) (*model.Conversation, error)
	GetOrCreate(ctx context.Context, pairKey string) (*model.Conversation, error)
	RecordMessage(ctx context.Context, pairKey, messageID string, senderID uint64, at time.Time) (int64, error)
}

type conversationRepoImpl struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepoImpl{db: db}
}

// GetByPairKey 根据会话标识获取会话
func (s *conversationRepoImpl) GetByPairKey(ctx context.Context, pairKey string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).Where("pair_key = ?", pairKey).First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetOrCreate 获取会话，不存在时创建；并发创建命中唯一索引时重新读取
func (s *conversationRepoImpl) GetOrCreate(ctx context.Context, pairKey string) (*model.Conversation, error) {
	conv, err := s.GetByPairKey(ctx, pairKey)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conv = &model.Conversation{PairKey: pairKey, LastMessageAt: time.Now()}
	if err = s.db.WithContext(ctx).Create(conv).Error; err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return s.GetByPairKey(ctx, pairKey)
		}
		return nil, err
	}
	return conv, nil
}

// RecordMessage 行锁内累加消息数并刷新最新消息指针，返回累加后的总数
func (s *conversationRepoImpl) RecordMessage(ctx context.Context, pairKey, messageID string, senderID uint64, at time.Time) (int64, error) {
	if _, err := s.GetOrCreate(ctx, pairKey); err != nil {
		return 0, err
	}

	var count int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv model.Conversation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("pair_key = ?", pairKey).First(&conv).Error; err != nil {
			return err
		}

		err := tx.Model(&model.Conversation{}).Where("id = ?", conv.ID).
			Updates(map[string]interface{}{
				"message_count":   gorm.Expr("message_count + 1"),
				"last_message_id": messageID,
				"last_sender_id":  senderID,
				"last_message_at": at,
			}).Error
		if err != nil {
			return err
		}
		count = conv.MessageCount + 1
		return nil
	})
	return count, err
}
