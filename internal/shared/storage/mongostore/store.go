// Package mongostore 实现基于 MongoDB 的 PersistentStore
//
// 使用 mongo-go-driver v2，通过 bson tag 实现 model 结构体的序列化/反序列化。
// 所有 Collection 名称和索引在 ensureIndexes 中统一管理。
package mongostore

import (
	"context"
	"fmt"
	"time"

	"mindcare/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection 名称常量
const (
	ColAccounts             = "accounts"
	ColRooms                = "rooms"
	ColMessages             = "messages"
	ColConversations        = "conversations"
	ColPrivateMessages      = "private_messages"
	ColBlogs                = "blogs"
	ColChatbotConversations = "chatbot_conversations"
	ColChatbotMessages      = "chatbot_messages"
)

// Store 实现 storage.PersistentStore 接口的 MongoDB 驱动
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ storage.PersistentStore = (*Store)(nil)

// NewStore 创建 MongoDB 存储实例
//
// uri: MongoDB 连接 URI，如 "mongodb://localhost:27017"
// dbName: 数据库名称，如 "mindcare"
func NewStore(uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect failed: %w", err)
	}

	// 验证连接
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongostore: ping failed: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{client: client, db: db}

	// 唯一索引是会话去重与邮箱唯一的前提，创建失败直接返回
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ensure indexes: %w", err)
	}

	return s, nil
}

// Ping 探测 MongoDB 连接
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close 关闭 MongoDB 连接
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// col 获取指定 Collection
func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// ensureIndexes 创建所有必要的索引
func (s *Store) ensureIndexes(ctx context.Context) error {
	type idx struct {
		col    string
		keys   bson.D
		unique bool
	}

	indexes := []idx{
		// accounts
		{ColAccounts, bson.D{{Key: "email", Value: 1}}, true},
		{ColAccounts, bson.D{{Key: "role", Value: 1}}, false},

		// rooms
		{ColRooms, bson.D{{Key: "type", Value: 1}}, true},

		// messages
		{ColMessages, bson.D{{Key: "room_id", Value: 1}, {Key: "seq", Value: 1}}, true},

		// conversations
		{ColConversations, bson.D{{Key: "user_id", Value: 1}, {Key: "expert_id", Value: 1}}, true},
		{ColConversations, bson.D{{Key: "expert_id", Value: 1}}, false},

		// private_messages
		{ColPrivateMessages, bson.D{{Key: "conversation_id", Value: 1}, {Key: "seq", Value: 1}}, true},

		// blogs
		{ColBlogs, bson.D{{Key: "author_id", Value: 1}}, false},
		{ColBlogs, bson.D{{Key: "created_at", Value: -1}}, false},
		{ColBlogs, bson.D{{Key: "tags", Value: 1}}, false},

		// chatbot
		{ColChatbotConversations, bson.D{{Key: "owner_id", Value: 1}, {Key: "updated_at", Value: -1}}, false},
		{ColChatbotMessages, bson.D{{Key: "conversation_id", Value: 1}, {Key: "seq", Value: 1}}, false},
	}

	for _, i := range indexes {
		model := mongo.IndexModel{Keys: i.keys}
		if i.unique {
			model.Options = options.Index().SetUnique(true)
		}
		if _, err := s.col(i.col).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", i.col, err)
		}
	}

	return nil
}
