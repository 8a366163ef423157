package mongostore

import (
	"context"

	"mindcare/internal/shared/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// ExpertChatStore
// ============================================================================

// GetOrCreateConversation 依赖 (user_id, expert_id) 唯一索引的 upsert
//
// 并发 upsert 可能有一方收到重复键错误，此时会话已由另一方创建
func (s *Store) GetOrCreateConversation(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	pair := bson.D{
		{Key: "user_id", Value: conv.UserID},
		{Key: "expert_id", Value: conv.ExpertID},
	}
	_, err := s.col(ColConversations).UpdateOne(ctx, pair,
		bson.D{{Key: "$setOnInsert", Value: conv}},
		options.UpdateOne().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, wrapError(err)
	}

	got, err := findOne[model.Conversation](ctx, s.col(ColConversations), pair)
	if err != nil {
		return nil, err
	}
	if got == nil {
		return nil, wrapError(mongo.ErrNoDocuments)
	}
	return got, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	return findOne[model.Conversation](ctx, s.col(ColConversations), bson.D{{Key: "_id", Value: id}})
}

// ListConversations 按最近活跃时间（无消息时取创建时间）倒序
func (s *Store) ListConversations(ctx context.Context, accountID string) ([]*model.Conversation, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "user_id", Value: accountID}},
			bson.D{{Key: "expert_id", Value: accountID}},
		}}}}},
		{{Key: "$addFields", Value: bson.D{{Key: "activity_at", Value: bson.D{
			{Key: "$ifNull", Value: bson.A{"$last_message_at", "$created_at"}},
		}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "activity_at", Value: -1}}}},
	}

	cursor, err := s.col(ColConversations).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, wrapError(err)
	}
	defer cursor.Close(ctx)

	convs := []*model.Conversation{}
	for cursor.Next(ctx) {
		var c model.Conversation
		if err := cursor.Decode(&c); err != nil {
			return nil, err
		}
		convs = append(convs, &c)
	}
	return convs, cursor.Err()
}

func (s *Store) AppendPrivateMessage(ctx context.Context, msg *model.PrivateMessage) error {
	conv, err := incrementSeq[model.Conversation](ctx, s.col(ColConversations), msg.ConversationID,
		bson.D{{Key: "last_message_at", Value: msg.Timestamp}})
	if err != nil {
		return err
	}
	msg.Seq = conv.MessageCount
	return insertOne(ctx, s.col(ColPrivateMessages), msg)
}

func (s *Store) ListPrivateMessages(ctx context.Context, conversationID string, after int64) ([]*model.PrivateMessage, error) {
	filter := bson.D{
		{Key: "conversation_id", Value: conversationID},
		{Key: "seq", Value: bson.D{{Key: "$gt", Value: after}}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	return findMany[model.PrivateMessage](ctx, s.col(ColPrivateMessages), filter, opts)
}
