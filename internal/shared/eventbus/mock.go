// Package eventbus 事件总线进程内实现
package eventbus

import (
	"context"
	"sync"
)

// NoOpEventBus 是一个不做任何操作的 EventBus 实现（用于测试）
type NoOpEventBus struct{}

// NewNoOpEventBus 创建 NoOpEventBus 实例
func NewNoOpEventBus() *NoOpEventBus {
	return &NoOpEventBus{}
}

func (e *NoOpEventBus) Publish(ctx context.Context, event *ChannelEvent) error {
	return nil
}

func (e *NoOpEventBus) Subscribe(ctx context.Context) (<-chan *ChannelEvent, error) {
	ch := make(chan *ChannelEvent)
	close(ch)
	return ch, nil
}

// Close 关闭事件总线
func (e *NoOpEventBus) Close() error {
	return nil
}

// LocalEventBus 进程内事件总线，语义与 Redis 实现一致（测试与单进程使用）
type LocalEventBus struct {
	mu     sync.RWMutex
	subs   map[chan *ChannelEvent]struct{}
	closed bool
}

// NewLocalEventBus 创建 LocalEventBus
func NewLocalEventBus() *LocalEventBus {
	return &LocalEventBus{subs: make(map[chan *ChannelEvent]struct{})}
}

// Publish 投递给所有订阅者，订阅者缓冲满时丢弃
func (e *LocalEventBus) Publish(ctx context.Context, event *ChannelEvent) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for ch := range e.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (e *LocalEventBus) Subscribe(ctx context.Context) (<-chan *ChannelEvent, error) {
	ch := make(chan *ChannelEvent, SubscribeBuffer)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		close(ch)
		return ch, nil
	}
	e.subs[ch] = struct{}{}
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		if _, ok := e.subs[ch]; ok {
			delete(e.subs, ch)
			close(ch)
		}
		e.mu.Unlock()
	}()
	return ch, nil
}

// SubscriberCount 当前订阅数
func (e *LocalEventBus) SubscriberCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}

func (e *LocalEventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for ch := range e.subs {
		delete(e.subs, ch)
		close(ch)
	}
	return nil
}

var (
	_ EventBus = (*NoOpEventBus)(nil)
	_ EventBus = (*LocalEventBus)(nil)
)
