package model

import "time"

// ChatbotSender 聊天机器人会话中的发言方
type ChatbotSender string

const (
	ChatbotSenderUser ChatbotSender = "user"
	ChatbotSenderBot  ChatbotSender = "bot"
)

// Valid 是否为合法发言方
func (s ChatbotSender) Valid() bool {
	return s == ChatbotSenderUser || s == ChatbotSenderBot
}

// ChatbotConversation AI 聊天会话（仅所有者可见）
type ChatbotConversation struct {
	ID           string    `json:"_id" bson:"_id" db:"id"`
	OwnerID      string    `json:"-" bson:"owner_id" db:"owner_id"`
	Title        string    `json:"title" bson:"title" db:"title"`
	MessageCount int64     `json:"messageCount" bson:"message_count" db:"message_count"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updated_at" db:"updated_at"`
}

// ChatbotMessage AI 聊天会话中的一轮对话
type ChatbotMessage struct {
	ID             string        `json:"_id" bson:"_id" db:"id"`
	ConversationID string        `json:"conversationId" bson:"conversation_id" db:"conversation_id"`
	Sender         ChatbotSender `json:"sender" bson:"sender" db:"sender"`
	Text           string        `json:"text" bson:"text" db:"text"`
	Seq            int64         `json:"seq" bson:"seq" db:"seq"`
	Timestamp      time.Time     `json:"timestamp" bson:"timestamp" db:"sent_at"`
}

// DashboardStats 管理后台统计
type DashboardStats struct {
	UserCount    int64 `json:"userCount"`
	ExpertCount  int64 `json:"expertCount"`
	BlogCount    int64 `json:"blogCount"`
	RoomCount    int64 `json:"roomCount"`
	MessageCount int64 `json:"messageCount"`
}
