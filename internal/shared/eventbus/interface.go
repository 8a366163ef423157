// Package eventbus 事件总线抽象接口
//
// 用于多进程部署时的实时消息扇出：每个进程把本地产生的广播发布到总线，
// 同时订阅总线并投递给本进程内的 WebSocket 连接。
package eventbus

import (
	"context"
)

// EventBus 事件总线接口
type EventBus interface {
	// Publish 发布频道事件
	Publish(ctx context.Context, event *ChannelEvent) error
	// Subscribe 订阅所有频道事件，ctx 取消后返回的 channel 被关闭
	Subscribe(ctx context.Context) (<-chan *ChannelEvent, error)
	Close() error
}
