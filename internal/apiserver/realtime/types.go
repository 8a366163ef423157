// Package realtime WebSocket 实时推送
//
// Hub 维护连接与频道订阅（room:<id> / expert-chat:<id>），
// Broadcaster 负责把业务事件投递到频道：单进程直接写入 Hub，
// 配置了事件总线时经由 Redis Pub/Sub 扇出到所有进程的 Hub。
package realtime

import "encoding/json"

// 服务端推送的事件类型
const (
	EventNewMessage        = "newMessage"
	EventExpertChatMessage = "expertChatMessage"
	EventJoinedRoom        = "joinedRoom"
	EventLeftRoom          = "leftRoom"
	EventJoinedExpertChat  = "joinedExpertChat"
	EventLeftExpertChat    = "leftExpertChat"
	EventError             = "error"
	EventPong              = "pong"
)

// 客户端命令
const (
	CmdJoinRoom        = "joinRoom"
	CmdLeaveRoom       = "leaveRoom"
	CmdJoinExpertChat  = "joinExpertChat"
	CmdLeaveExpertChat = "leaveExpertChat"
	CmdPing            = "ping"
)

const (
	roomPrefix       = "room:"
	expertChatPrefix = "expert-chat:"
)

// RoomChannel 讨论室频道名
func RoomChannel(roomID string) string {
	return roomPrefix + roomID
}

// ExpertChatChannel 专家会话频道名
func ExpertChatChannel(conversationID string) string {
	return expertChatPrefix + conversationID
}

// Frame 服务端推送帧
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// command 客户端上行帧
type command struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId,omitempty"`
	ChatID string `json:"chatId,omitempty"`
}

func encodeFrame(eventType string, data any) ([]byte, error) {
	return json.Marshal(Frame{Type: eventType, Data: data})
}

// Metrics WebSocket 指标钩子
type Metrics interface {
	WSConnectionOpened()
	WSConnectionClosed()
	RecordWSMessage(direction, msgType string)
}

type nopMetrics struct{}

func (nopMetrics) WSConnectionOpened()            {}
func (nopMetrics) WSConnectionClosed()            {}
func (nopMetrics) RecordWSMessage(string, string) {}
