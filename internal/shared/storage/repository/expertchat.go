package repository

import (
	"context"
	"database/sql"

	"mindcare/internal/shared/model"
)

const conversationColumns = `id, user_id, expert_id, message_count, last_message_at, created_at`

func scanConversation(row rowScanner) (*model.Conversation, error) {
	c := &model.Conversation{}
	var last sql.NullTime
	if err := row.Scan(&c.ID, &c.UserID, &c.ExpertID, &c.MessageCount, &last, &c.CreatedAt); err != nil {
		return nil, err
	}
	if last.Valid {
		t := last.Time
		c.LastMessageAt = &t
	}
	return c, nil
}

// GetOrCreateConversation 插入会话，(user_id, expert_id) 已存在时返回已有会话
func (s *Store) GetOrCreateConversation(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO conversations (`+conversationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, expert_id) DO NOTHING`),
		conv.ID, conv.UserID, conv.ExpertID, 0, nil, conv.CreatedAt)
	if err != nil {
		return nil, s.wrapError(err)
	}

	return scanConversation(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+conversationColumns+` FROM conversations WHERE user_id = $1 AND expert_id = $2`),
		conv.UserID, conv.ExpertID))
}

// GetConversation 获取会话
func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	c, err := scanConversation(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ListConversations 列出账号参与的会话
func (s *Store) ListConversations(ctx context.Context, accountID string) ([]*model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE user_id = $1 OR expert_id = $2
		 ORDER BY COALESCE(last_message_at, created_at) DESC`), accountID, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	convs := []*model.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// AppendPrivateMessage 分配 seq、写入私聊消息并刷新会话活跃时间
func (s *Store) AppendPrivateMessage(ctx context.Context, msg *model.PrivateMessage) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		seq, err := s.nextSeq(ctx, tx, "conversations", msg.ConversationID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO private_messages (id, conversation_id, sender_id, content, seq, sent_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`),
			msg.ID, msg.ConversationID, msg.SenderID, msg.Content, seq, msg.Timestamp); err != nil {
			return s.wrapError(err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(
			`UPDATE conversations SET last_message_at = $1 WHERE id = $2`),
			msg.Timestamp, msg.ConversationID); err != nil {
			return err
		}
		msg.Seq = seq
		return nil
	})
}

// ListPrivateMessages 按 seq 升序列出会话消息
func (s *Store) ListPrivateMessages(ctx context.Context, conversationID string, after int64) ([]*model.PrivateMessage, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, conversation_id, sender_id, content, seq, sent_at FROM private_messages
		 WHERE conversation_id = $1 AND seq > $2 ORDER BY seq`), conversationID, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []*model.PrivateMessage{}
	for rows.Next() {
		m := &model.PrivateMessage{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Seq, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
