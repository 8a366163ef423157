package model

import "time"

// ConversationRole 账号在专家会话中的角色
type ConversationRole string

const (
	ConversationRoleUser   ConversationRole = "user"
	ConversationRoleExpert ConversationRole = "expert"
)

// Conversation 用户与专家之间的 1:1 私聊会话
//
// (UserID, ExpertID) 在存储层唯一，角色在会话生命周期内固定
type Conversation struct {
	ID            string       `json:"_id" bson:"_id" db:"id"`
	UserID        string       `json:"-" bson:"user_id" db:"user_id"`
	ExpertID      string       `json:"-" bson:"expert_id" db:"expert_id"`
	User          *Participant `json:"user,omitempty" bson:"-" db:"-"`
	Expert        *Participant `json:"expert,omitempty" bson:"-" db:"-"`
	MessageCount  int64        `json:"messageCount" bson:"message_count" db:"message_count"`
	LastMessageAt *time.Time   `json:"lastMessage,omitempty" bson:"last_message_at,omitempty" db:"last_message_at"`
	CreatedAt     time.Time    `json:"createdAt" bson:"created_at" db:"created_at"`
}

// RoleOf 返回账号在会话中的角色，非参与者返回空字符串
func (c *Conversation) RoleOf(accountID string) ConversationRole {
	switch accountID {
	case "":
		return ""
	case c.ExpertID:
		return ConversationRoleExpert
	case c.UserID:
		return ConversationRoleUser
	}
	return ""
}

// IsParticipant 账号是否为会话参与者
func (c *Conversation) IsParticipant(accountID string) bool {
	return c.RoleOf(accountID) != ""
}

// PrivateMessage 专家会话中的一条消息（不可修改）
type PrivateMessage struct {
	ID             string       `json:"_id" bson:"_id" db:"id"`
	ConversationID string       `json:"chatId" bson:"conversation_id" db:"conversation_id"`
	SenderID       string       `json:"-" bson:"sender_id" db:"sender_id"`
	Sender         *Participant `json:"sender,omitempty" bson:"-" db:"-"`
	Content        string       `json:"content" bson:"content" db:"content"`
	Seq            int64        `json:"seq" bson:"seq" db:"seq"`
	Timestamp      time.Time    `json:"timestamp" bson:"timestamp" db:"sent_at"`
}
