// Package eventbus 事件总线类型定义
package eventbus

import (
	"encoding/json"
	"time"
)

// ChannelEvent 发往某个实时频道（如 room:<id>）的事件
type ChannelEvent struct {
	Channel   string          `json:"channel"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

const (
	// TopicRealtime Pub/Sub 频道名
	TopicRealtime = "mindcare:realtime"

	// SubscribeBuffer 订阅 channel 缓冲大小
	SubscribeBuffer = 256
)
