package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"Ephemera/internal/model"
)

// Message MongoDB 消息明细模型
type Message struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	PairKey    string             `bson:"pair_key"`    // 双人会话标识 min_max
	SenderID   uint64             `bson:"sender_id"`   // 发送者 UID
	ReceiverID uint64             `bson:"receiver_id"` // 接收者 UID
	Kind       string             `bson:"kind"`        // text | emoji
	Content    string             `bson:"content"`     // 文本累积内容或表情分类
	CreatedAt  time.Time          `bson:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at"` // 衰减起点，每次追加刷新
	IsDeleted  bool               `bson:"is_deleted"`
}

// ToModel 转为领域模型
func (m *Message) ToModel() model.Message {
	return model.Message{
		ID:         m.ID.Hex(),
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Kind:       model.MessageKind(m.Kind),
		Content:    m.Content,
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
		IsDeleted:  m.IsDeleted,
	}
}
