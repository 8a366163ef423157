package mongostore

import (
	"context"
	"time"

	"mindcare/internal/shared/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// RoomStore
// ============================================================================

func (s *Store) SeedRooms(ctx context.Context, rooms []*model.Room) error {
	for _, r := range rooms {
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now()
		}
		_, err := s.col(ColRooms).UpdateOne(ctx,
			bson.D{{Key: "type", Value: r.Type}},
			bson.D{{Key: "$setOnInsert", Value: r}},
			options.UpdateOne().SetUpsert(true))
		if err != nil {
			return wrapError(err)
		}
	}
	return nil
}

func (s *Store) ListRooms(ctx context.Context) ([]*model.Room, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "type", Value: 1}})
	return findMany[model.Room](ctx, s.col(ColRooms), bson.D{}, opts)
}

func (s *Store) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	return findOne[model.Room](ctx, s.col(ColRooms), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) AppendMessage(ctx context.Context, msg *model.Message) error {
	room, err := incrementSeq[model.Room](ctx, s.col(ColRooms), msg.RoomID, nil)
	if err != nil {
		return err
	}
	msg.Seq = room.MessageCount
	return insertOne(ctx, s.col(ColMessages), msg)
}

func (s *Store) ListMessages(ctx context.Context, roomID string, after int64) ([]*model.Message, error) {
	filter := bson.D{
		{Key: "room_id", Value: roomID},
		{Key: "seq", Value: bson.D{{Key: "$gt", Value: after}}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	return findMany[model.Message](ctx, s.col(ColMessages), filter, opts)
}

func (s *Store) CountRooms(ctx context.Context) (int64, error) {
	return countDocs(ctx, s.col(ColRooms), bson.D{})
}

func (s *Store) CountMessages(ctx context.Context) (int64, error) {
	return countDocs(ctx, s.col(ColMessages), bson.D{})
}
