package model

import (
	"fmt"
	"time"
)

// MessageKind 消息类型
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindEmoji MessageKind = "emoji"
)

// Valid 是否为已知消息类型
func (k MessageKind) Valid() bool {
	return k == KindText || k == KindEmoji
}

// 表情分类
const (
	EmojiHeart = "heart"
	EmojiSmile = "smile"
	EmojiAngry = "angry"
	EmojiWink  = "wink"
)

// EmojiCategories 全部表情分类，顺序固定
var EmojiCategories = []string{EmojiHeart, EmojiSmile, EmojiAngry, EmojiWink}

// IsEmojiCategory 是否为已知表情分类
func IsEmojiCategory(category string) bool {
	for _, c := range EmojiCategories {
		if c == category {
			return true
		}
	}
	return false
}

// Message 会话中的一条消息
type Message struct {
	ID         string      `json:"id"`
	SenderID   uint64      `json:"sender_id"`
	ReceiverID uint64      `json:"receiver_id"`
	Kind       MessageKind `json:"kind"`
	Content    string      `json:"content"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	IsDeleted  bool        `json:"is_deleted"`
}

// Less 会话内全序：先按 createdAt，再按 id
func Less(a, b *Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// EventType 变更事件类型
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
)

// ChangeEvent 同步网关推送的变更事件
type ChangeEvent struct {
	EventType EventType `json:"event_type"`
	Message   Message   `json:"message"`
}

// ConversationStats 会话统计
type ConversationStats struct {
	PairKey      string `json:"pair_key"`
	MessageCount int64  `json:"message_count"`
}

// PairKey 生成双人会话唯一标识，与方向无关
func PairKey(a, b uint64) string {
	if a < b {
		return fmt.Sprintf("%d_%d", a, b)
	}
	return fmt.Sprintf("%d_%d", b, a)
}

// ParsePairKey 解析会话标识
func ParsePairKey(key string) (uint64, uint64, error) {
	var u1, u2 uint64
	if _, err := fmt.Sscanf(key, "%d_%d", &u1, &u2); err != nil {
		return 0, 0, err
	}
	return u1, u2, nil
}
