package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrInvalidID       = errors.New("invalid message id")
	// ErrConcurrentUpdate 条件更新未命中：记录已被其他请求修改
	ErrConcurrentUpdate = errors.New("message changed concurrently")
)

type MessageRepo interface {
	Insert(ctx context.Context, msg *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	Amend(ctx context.Context, id string, expectUpdatedAt time.Time, content string, updatedAt time.Time) (*Message, error)
	MarkDeleted(ctx context.Context, id string, updatedAt time.Time) (*Message, error)
	ListSince(ctx context.Context, pairKey string, since time.Time) ([]*Message, error)
	DeleteDecayed(ctx context.Context, textBefore, emojiBefore time.Time) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type messageRepoImpl struct {
	col *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) MessageRepo {
	return &messageRepoImpl{
		col: db.Collection("messages"),
	}
}

// EnsureIndexes 会话读窗口与清理任务使用的索引
func (s *messageRepoImpl) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "pair_key", Value: 1}, {Key: "updated_at", Value: 1}}},
		{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "updated_at", Value: 1}}},
	})
	return err
}

// Insert 写入新消息，ID 为空时生成 ObjectID
func (s *messageRepoImpl) Insert(ctx context.Context, msg *Message) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, msg)
	return err
}

func (s *messageRepoImpl) GetByID(ctx context.Context, id string) (*Message, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	var msg Message
	if err = s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&msg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// Amend 条件追加：仅当 updated_at 仍为读取时的值才写入，避免并发追加互相覆盖
func (s *messageRepoImpl) Amend(ctx context.Context, id string, expectUpdatedAt time.Time, content string, updatedAt time.Time) (*Message, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	filter := bson.M{
		"_id":        oid,
		"updated_at": expectUpdatedAt,
		"is_deleted": false,
	}
	update := bson.M{"$set": bson.M{"content": content, "updated_at": updatedAt}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var msg Message
	if err = s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&msg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrConcurrentUpdate
		}
		return nil, err
	}
	return &msg, nil
}

func (s *messageRepoImpl) MarkDeleted(ctx context.Context, id string, updatedAt time.Time) (*Message, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	update := bson.M{"$set": bson.M{"is_deleted": true, "updated_at": updatedAt}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var msg Message
	if err = s.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&msg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// ListSince 会话内最后更新不早于 since 的未删除消息，按 created_at、_id 升序
func (s *messageRepoImpl) ListSince(ctx context.Context, pairKey string, since time.Time) ([]*Message, error) {
	filter := bson.M{
		"pair_key":   pairKey,
		"updated_at": bson.M{"$gte": since},
		"is_deleted": false,
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.col.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	messages := make([]*Message, 0)
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// DeleteDecayed 物理删除生命周期已结束或已标记删除的消息
func (s *messageRepoImpl) DeleteDecayed(ctx context.Context, textBefore, emojiBefore time.Time) (int64, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"kind": "text", "updated_at": bson.M{"$lt": textBefore}},
		bson.M{"kind": "emoji", "updated_at": bson.M{"$lt": emojiBefore}},
		bson.M{"is_deleted": true},
	}}
	res, err := s.col.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
