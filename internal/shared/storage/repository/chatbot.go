package repository

import (
	"context"
	"database/sql"
	"time"

	"mindcare/internal/shared/model"
)

const chatbotConversationColumns = `id, owner_id, title, message_count, created_at, updated_at`

func scanChatbotConversation(row rowScanner) (*model.ChatbotConversation, error) {
	c := &model.ChatbotConversation{}
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Title, &c.MessageCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateChatbotConversation 创建聊天机器人会话
func (s *Store) CreateChatbotConversation(ctx context.Context, c *model.ChatbotConversation) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO chatbot_conversations (`+chatbotConversationColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`),
		c.ID, c.OwnerID, c.Title, 0, c.CreatedAt, c.UpdatedAt)
	return s.wrapError(err)
}

// GetChatbotConversation 获取聊天机器人会话
func (s *Store) GetChatbotConversation(ctx context.Context, id string) (*model.ChatbotConversation, error) {
	c, err := scanChatbotConversation(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+chatbotConversationColumns+` FROM chatbot_conversations WHERE id = $1`), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ListChatbotConversations 列出所有者的会话
func (s *Store) ListChatbotConversations(ctx context.Context, ownerID string) ([]*model.ChatbotConversation, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+chatbotConversationColumns+` FROM chatbot_conversations
		 WHERE owner_id = $1 ORDER BY updated_at DESC`), ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	convs := []*model.ChatbotConversation{}
	for rows.Next() {
		c, err := scanChatbotConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// RenameChatbotConversation 修改会话标题
func (s *Store) RenameChatbotConversation(ctx context.Context, id, title string) error {
	return s.exec(ctx, `UPDATE chatbot_conversations SET title = $1, updated_at = $2 WHERE id = $3`,
		title, time.Now(), id)
}

// DeleteChatbotConversation 删除会话及消息
func (s *Store) DeleteChatbotConversation(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind(
			`DELETE FROM chatbot_messages WHERE conversation_id = $1`), id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM chatbot_conversations WHERE id = $1`), id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return s.wrapError(sql.ErrNoRows)
		}
		return nil
	})
}

// AppendChatbotMessage 分配 seq 并写入一轮对话
func (s *Store) AppendChatbotMessage(ctx context.Context, msg *model.ChatbotMessage) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		seq, err := s.nextSeq(ctx, tx, "chatbot_conversations", msg.ConversationID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO chatbot_messages (id, conversation_id, sender, text, seq, sent_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`),
			msg.ID, msg.ConversationID, msg.Sender, msg.Text, seq, msg.Timestamp); err != nil {
			return s.wrapError(err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(
			`UPDATE chatbot_conversations SET updated_at = $1 WHERE id = $2`),
			msg.Timestamp, msg.ConversationID); err != nil {
			return err
		}
		msg.Seq = seq
		return nil
	})
}

// ListChatbotMessages 按 seq 升序列出会话消息
func (s *Store) ListChatbotMessages(ctx context.Context, conversationID string) ([]*model.ChatbotMessage, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, conversation_id, sender, text, seq, sent_at FROM chatbot_messages
		 WHERE conversation_id = $1 ORDER BY seq`), conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []*model.ChatbotMessage{}
	for rows.Next() {
		m := &model.ChatbotMessage{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Text, &m.Seq, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
