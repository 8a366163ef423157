package model

import "time"

// RoomType 讨论室主题分类
type RoomType string

const (
	RoomTypeChildAbuse     RoomType = "CHILD_ABUSE"
	RoomTypeDomesticAbuse  RoomType = "DOMESTIC_ABUSE"
	RoomTypeWorkplaceAbuse RoomType = "WORKPLACE_ABUSE"
)

// Room 固定主题讨论室
//
// MessageCount 同时是最近一条消息的 Seq，新消息 Seq = MessageCount + 1
type Room struct {
	ID           string    `json:"_id" bson:"_id" db:"id"`
	Name         string    `json:"name" bson:"name" db:"name"`
	Description  string    `json:"description" bson:"description" db:"description"`
	Type         RoomType  `json:"type" bson:"type" db:"type"`
	MessageCount int64     `json:"messageCount" bson:"message_count" db:"message_count"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at" db:"created_at"`
}

// Message 讨论室消息（不可修改）
type Message struct {
	ID        string       `json:"_id" bson:"_id" db:"id"`
	RoomID    string       `json:"roomId" bson:"room_id" db:"room_id"`
	AuthorID  string       `json:"-" bson:"author_id" db:"author_id"`
	Author    *Participant `json:"userId,omitempty" bson:"-" db:"-"` // 展开后的作者
	Content   string       `json:"content" bson:"content" db:"content"`
	Seq       int64        `json:"seq" bson:"seq" db:"seq"`
	Timestamp time.Time    `json:"timestamp" bson:"timestamp" db:"sent_at"`
}

// DefaultRooms 启动时播种的讨论室
func DefaultRooms() []*Room {
	return []*Room{
		{
			Name:        "Child Abuse Support",
			Description: "A safe space to talk about childhood abuse, its effects and the road to healing.",
			Type:        RoomTypeChildAbuse,
		},
		{
			Name:        "Domestic Abuse Support",
			Description: "Share experiences and find support around abuse at home and in relationships.",
			Type:        RoomTypeDomesticAbuse,
		},
		{
			Name:        "Workplace Abuse Support",
			Description: "Discuss harassment, bullying and mistreatment at work with people who understand.",
			Type:        RoomTypeWorkplaceAbuse,
		},
	}
}
