package repository

import (
	"context"
	"database/sql"
	"time"

	"mindcare/internal/shared/model"
)

// SeedRooms 按 type 幂等创建讨论室
func (s *Store) SeedRooms(ctx context.Context, rooms []*model.Room) error {
	for _, r := range rooms {
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now()
		}
		_, err := s.db.ExecContext(ctx, s.rebind(
			`INSERT INTO rooms (id, name, description, type, message_count, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (type) DO NOTHING`),
			r.ID, r.Name, r.Description, r.Type, 0, r.CreatedAt)
		if err != nil {
			return s.wrapError(err)
		}
	}
	return nil
}

func scanRoom(row rowScanner) (*model.Room, error) {
	r := &model.Room{}
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.Type, &r.MessageCount, &r.CreatedAt); err != nil {
		return nil, err
	}
	return r, nil
}

// ListRooms 列出所有讨论室
func (s *Store) ListRooms(ctx context.Context) ([]*model.Room, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, type, message_count, created_at FROM rooms ORDER BY created_at, type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := []*model.Room{}
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

// GetRoom 获取讨论室
func (s *Store) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	r, err := scanRoom(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, name, description, type, message_count, created_at FROM rooms WHERE id = $1`), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// AppendMessage 分配 seq 并写入讨论室消息
func (s *Store) AppendMessage(ctx context.Context, msg *model.Message) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		seq, err := s.nextSeq(ctx, tx, "rooms", msg.RoomID)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, s.rebind(
			`INSERT INTO messages (id, room_id, author_id, content, seq, sent_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`),
			msg.ID, msg.RoomID, msg.AuthorID, msg.Content, seq, msg.Timestamp)
		if err != nil {
			return s.wrapError(err)
		}
		msg.Seq = seq
		return nil
	})
}

// ListMessages 按 seq 升序列出讨论室消息
func (s *Store) ListMessages(ctx context.Context, roomID string, after int64) ([]*model.Message, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, room_id, author_id, content, seq, sent_at FROM messages
		 WHERE room_id = $1 AND seq > $2 ORDER BY seq`), roomID, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []*model.Message{}
	for rows.Next() {
		m := &model.Message{}
		if err := rows.Scan(&m.ID, &m.RoomID, &m.AuthorID, &m.Content, &m.Seq, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CountRooms 讨论室数量
func (s *Store) CountRooms(ctx context.Context) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM rooms`)
}

// CountMessages 讨论室消息总数
func (s *Store) CountMessages(ctx context.Context) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM messages`)
}
