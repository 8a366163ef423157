package testutil

import (
	"context"
	"sync"
)

// Broadcast 一次被记录的广播
type Broadcast struct {
	Channel string
	Type    string
	Data    any
}

// RecordingBroadcaster 记录广播调用，供服务层测试断言
type RecordingBroadcaster struct {
	mu     sync.Mutex
	events []Broadcast
	Err    error
}

// Broadcast 记录一次广播
func (b *RecordingBroadcaster) Broadcast(_ context.Context, channel, eventType string, data any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, Broadcast{Channel: channel, Type: eventType, Data: data})
	return b.Err
}

// Events 已记录的广播副本
func (b *RecordingBroadcaster) Events() []Broadcast {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Broadcast(nil), b.events...)
}
