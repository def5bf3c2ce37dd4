package service

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"Ephemera/internal/api/dto"
	"Ephemera/internal/model"
	"Ephemera/internal/pkg/decay"
	"Ephemera/internal/pkg/mongo"
	"Ephemera/internal/repository"
)

const maxTextRunes = 2000

// EventPublisher 会话变更事件的发布通道
type EventPublisher interface {
	PublishEvent(ctx context.Context, pairKey string, ev model.ChangeEvent) error
}

// NotificationQueue 新消息通知队列
type NotificationQueue interface {
	MessageCreated(ctx context.Context, m model.Message, count int64) error
}

// MessageService 同步网关：消息写入、追加与读窗口
type MessageService interface {
	Create(ctx context.Context, senderID uint64, req *dto.CreateMessageReq) (*model.Message, error)
	Amend(ctx context.Context, callerID uint64, id string, req *dto.AmendMessageReq) (*model.Message, error)
	Delete(ctx context.Context, callerID uint64, id string) (*model.Message, error)
	List(ctx context.Context, callerID, peerID uint64, since time.Time) ([]model.Message, error)
	Stats(ctx context.Context, callerID, peerID uint64) (*model.ConversationStats, error)
}

// MessageServiceOptions 消息生命周期参数
type MessageServiceOptions struct {
	EditWindow time.Duration
	Policy     decay.Policy
	Now        func() time.Time
}

type messageServiceImpl struct {
	convRepo    repository.ConversationRepo
	messageRepo mongo.MessageRepo
	publisher   EventPublisher
	queue       NotificationQueue
	editWindow  time.Duration
	policy      decay.Policy
	now         func() time.Time
}

// NewMessageService queue 为 nil 时不发送通知
func NewMessageService(
	convRepo repository.ConversationRepo,
	messageRepo mongo.MessageRepo,
	publisher EventPublisher,
	queue NotificationQueue,
	opts MessageServiceOptions,
) MessageService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &messageServiceImpl{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		publisher:   publisher,
		queue:       queue,
		editWindow:  opts.EditWindow,
		policy:      opts.Policy,
		now:         opts.Now,
	}
}

// clock Mongo 只保存毫秒精度，返回给客户端的时间必须与存储一致
func (s *messageServiceImpl) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Create 新建消息
func (s *messageServiceImpl) Create(ctx context.Context, senderID uint64, req *dto.CreateMessageReq) (*model.Message, error) {
	if req.ReceiverID == 0 || req.ReceiverID == senderID {
		return nil, ErrTargetUserInvalid
	}

	kind := model.MessageKind(req.Kind)
	switch kind {
	case model.KindText:
		if strings.TrimSpace(req.Content) == "" {
			return nil, ErrParamInvalid
		}
		if decay.RuneLen(req.Content) > maxTextRunes {
			return nil, ErrContentTooLong
		}
	case model.KindEmoji:
		if !model.IsEmojiCategory(req.Content) {
			return nil, ErrUnknownEmoji
		}
	default:
		return nil, ErrParamInvalid
	}

	now := s.clock()
	pairKey := model.PairKey(senderID, req.ReceiverID)
	doc := &mongo.Message{
		PairKey:    pairKey,
		SenderID:   senderID,
		ReceiverID: req.ReceiverID,
		Kind:       string(kind),
		Content:    req.Content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.messageRepo.Insert(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	msg := doc.ToModel()

	// 计数失败不影响消息本身，只会让这条消息无法被追加
	count, err := s.convRepo.RecordMessage(ctx, pairKey, msg.ID, senderID, now)
	if err != nil {
		log.ErrorContext(ctx, "record conversation message failed", "pair_key", pairKey, "message_id", msg.ID, "err", err)
	}

	s.publish(ctx, pairKey, model.EventInsert, msg)

	if s.queue != nil {
		if err := s.queue.MessageCreated(ctx, msg, count); err != nil {
			log.WarnContext(ctx, "enqueue message notification failed", "message_id", msg.ID, "err", err)
		}
	}
	return &msg, nil
}

// Amend 追加文本：发送者本人、文本、未删除、会话最新一条、编辑窗口内、严格前缀扩展
func (s *messageServiceImpl) Amend(ctx context.Context, callerID uint64, id string, req *dto.AmendMessageReq) (*model.Message, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.SenderID != callerID {
		return nil, ErrNotMessageOwner
	}
	if doc.Kind != string(model.KindText) {
		return nil, ErrEmojiImmutable
	}
	if doc.IsDeleted {
		return nil, ErrStaleAmend
	}
	if len(req.Content) <= len(doc.Content) || !strings.HasPrefix(req.Content, doc.Content) {
		return nil, ErrNotAppend
	}
	if decay.RuneLen(req.Content) > maxTextRunes {
		return nil, ErrContentTooLong
	}

	now := s.clock()
	if now.Sub(doc.UpdatedAt) >= s.editWindow {
		return nil, ErrStaleAmend
	}

	conv, err := s.convRepo.GetByPairKey(ctx, doc.PairKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStaleAmend
		}
		return nil, err
	}
	if conv.LastMessageID != id {
		return nil, ErrStaleAmend
	}

	updatedAt := now
	if req.UpdatedAt != nil {
		proposed := req.UpdatedAt.UTC().Truncate(time.Millisecond)
		if !proposed.After(now) && !proposed.Before(doc.UpdatedAt) {
			updatedAt = proposed
		}
	}

	amended, err := s.messageRepo.Amend(ctx, id, doc.UpdatedAt, req.Content, updatedAt)
	if err != nil {
		if errors.Is(err, mongo.ErrConcurrentUpdate) {
			return nil, ErrStaleAmend
		}
		return nil, fmt.Errorf("amend message: %w", err)
	}

	msg := amended.ToModel()
	s.publish(ctx, doc.PairKey, model.EventUpdate, msg)
	return &msg, nil
}

// Delete 发送者删除消息，以 update 事件下发
func (s *messageServiceImpl) Delete(ctx context.Context, callerID uint64, id string) (*model.Message, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.SenderID != callerID {
		return nil, ErrNotMessageOwner
	}
	if doc.IsDeleted {
		msg := doc.ToModel()
		return &msg, nil
	}

	deleted, err := s.messageRepo.MarkDeleted(ctx, id, s.clock())
	if err != nil {
		return nil, fmt.Errorf("delete message: %w", err)
	}
	msg := deleted.ToModel()
	s.publish(ctx, doc.PairKey, model.EventUpdate, msg)
	return &msg, nil
}

// List 读窗口：最后更新不早于 since 且仍可见的消息，since 不会早于最长生命周期
func (s *messageServiceImpl) List(ctx context.Context, callerID, peerID uint64, since time.Time) ([]model.Message, error) {
	if peerID == 0 || peerID == callerID {
		return nil, ErrTargetUserInvalid
	}

	now := s.clock()
	horizon := now.Add(-s.policy.MaxLifespan())
	if since.Before(horizon) {
		since = horizon
	}

	docs, err := s.messageRepo.ListSince(ctx, model.PairKey(callerID, peerID), since)
	if err != nil {
		return nil, err
	}

	res := make([]model.Message, 0, len(docs))
	for _, d := range docs {
		m := d.ToModel()
		if !decay.Project(s.policy, &m, now).Alive {
			continue
		}
		res = append(res, m)
	}
	return res, nil
}

// Stats 会话累计消息数，会话不存在时为 0
func (s *messageServiceImpl) Stats(ctx context.Context, callerID, peerID uint64) (*model.ConversationStats, error) {
	if peerID == 0 || peerID == callerID {
		return nil, ErrTargetUserInvalid
	}
	pairKey := model.PairKey(callerID, peerID)
	stats := &model.ConversationStats{PairKey: pairKey}

	conv, err := s.convRepo.GetByPairKey(ctx, pairKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return stats, nil
		}
		return nil, err
	}
	stats.MessageCount = conv.MessageCount
	return stats, nil
}

func (s *messageServiceImpl) load(ctx context.Context, id string) (*mongo.Message, error) {
	doc, err := s.messageRepo.GetByID(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrInvalidID):
			return nil, ErrParamInvalid
		case errors.Is(err, mongo.ErrMessageNotFound):
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *messageServiceImpl) publish(ctx context.Context, pairKey string, t model.EventType, m model.Message) {
	if err := s.publisher.PublishEvent(ctx, pairKey, model.ChangeEvent{EventType: t, Message: m}); err != nil {
		log.ErrorContext(ctx, "publish change event failed", "pair_key", pairKey, "event_type", t, "err", err)
	}
}
