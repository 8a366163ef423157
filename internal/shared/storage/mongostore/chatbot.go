package mongostore

import (
	"context"
	"time"

	"mindcare/internal/shared/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// ChatbotStore
// ============================================================================

func (s *Store) CreateChatbotConversation(ctx context.Context, conv *model.ChatbotConversation) error {
	return insertOne(ctx, s.col(ColChatbotConversations), conv)
}

func (s *Store) GetChatbotConversation(ctx context.Context, id string) (*model.ChatbotConversation, error) {
	return findOne[model.ChatbotConversation](ctx, s.col(ColChatbotConversations), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) ListChatbotConversations(ctx context.Context, ownerID string) ([]*model.ChatbotConversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	return findMany[model.ChatbotConversation](ctx, s.col(ColChatbotConversations),
		bson.D{{Key: "owner_id", Value: ownerID}}, opts)
}

func (s *Store) RenameChatbotConversation(ctx context.Context, id, title string) error {
	return updateFields(ctx, s.col(ColChatbotConversations), id, bson.D{
		{Key: "title", Value: title},
		{Key: "updated_at", Value: time.Now()},
	})
}

func (s *Store) DeleteChatbotConversation(ctx context.Context, id string) error {
	if _, err := s.col(ColChatbotMessages).DeleteMany(ctx, bson.D{{Key: "conversation_id", Value: id}}); err != nil {
		return wrapError(err)
	}
	return deleteByID(ctx, s.col(ColChatbotConversations), id)
}

func (s *Store) AppendChatbotMessage(ctx context.Context, msg *model.ChatbotMessage) error {
	conv, err := incrementSeq[model.ChatbotConversation](ctx, s.col(ColChatbotConversations), msg.ConversationID,
		bson.D{{Key: "updated_at", Value: msg.Timestamp}})
	if err != nil {
		return err
	}
	msg.Seq = conv.MessageCount
	return insertOne(ctx, s.col(ColChatbotMessages), msg)
}

func (s *Store) ListChatbotMessages(ctx context.Context, conversationID string) ([]*model.ChatbotMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	return findMany[model.ChatbotMessage](ctx, s.col(ColChatbotMessages),
		bson.D{{Key: "conversation_id", Value: conversationID}}, opts)
}
