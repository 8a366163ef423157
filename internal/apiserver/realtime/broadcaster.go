package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mindcare/internal/shared/eventbus"
)

// Broadcaster 向实时频道广播事件
//
// 调用方在持有频道锁时调用，返回前事件已进入本地发送队列或总线。
type Broadcaster interface {
	Broadcast(ctx context.Context, channel, eventType string, data any) error
}

// LocalBroadcaster 单进程广播：直接投递到 Hub
type LocalBroadcaster struct {
	hub *Hub
}

// NewLocalBroadcaster 创建本地广播器
func NewLocalBroadcaster(hub *Hub) *LocalBroadcaster {
	return &LocalBroadcaster{hub: hub}
}

// Broadcast 编码后投递给本地订阅者
func (b *LocalBroadcaster) Broadcast(_ context.Context, channel, eventType string, data any) error {
	payload, err := encodeFrame(eventType, data)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", eventType, err)
	}
	b.hub.Deliver(channel, eventType, payload)
	return nil
}

// BusBroadcaster 多进程广播：发布到事件总线，由各进程的 Hub.Run 投递
type BusBroadcaster struct {
	bus eventbus.EventBus
	now func() time.Time
}

// NewBusBroadcaster 创建总线广播器
func NewBusBroadcaster(bus eventbus.EventBus) *BusBroadcaster {
	return &BusBroadcaster{bus: bus, now: time.Now}
}

// Broadcast 发布频道事件
func (b *BusBroadcaster) Broadcast(ctx context.Context, channel, eventType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s data: %w", eventType, err)
	}
	return b.bus.Publish(ctx, &eventbus.ChannelEvent{
		Channel:   channel,
		Type:      eventType,
		Data:      raw,
		Timestamp: b.now(),
	})
}

// NewBroadcaster 有事件总线时走总线，否则本地投递
func NewBroadcaster(hub *Hub, bus eventbus.EventBus) Broadcaster {
	if bus == nil {
		return NewLocalBroadcaster(hub)
	}
	return NewBusBroadcaster(bus)
}

var (
	_ Broadcaster = (*LocalBroadcaster)(nil)
	_ Broadcaster = (*BusBroadcaster)(nil)
)
