package model

import "time"

// Conversation 双人会话主表
type Conversation struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	PairKey       string    `gorm:"uniqueIndex;type:varchar(64)" json:"pairKey"` // uid1_uid2
	MessageCount  int64     `gorm:"not null;default:0" json:"messageCount"`      // 累计消息数，只增不减
	LastMessageID string    `gorm:"type:varchar(32);default:''" json:"lastMessageId"`
	LastSenderID  uint64    `gorm:"not null;default:0" json:"lastSenderId"`
	LastMessageAt time.Time `gorm:"index" json:"lastMessageAt"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (Conversation) TableName() string { return "conversations" }
