// Package redis 基于 Redis Pub/Sub 的事件总线
//
// 所有实时频道共用一个 Pub/Sub topic，消息体为 JSON 编码的 ChannelEvent；
// Pub/Sub 不持久化，离线期间的事件不会补发（客户端通过 after 游标补齐）。
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"mindcare/internal/shared/eventbus"
)

// Store Redis 事件总线
type Store struct {
	client *redis.Client
	topic  string
	logger *slog.Logger
}

// NewStoreFromClient 从现有 Redis 客户端创建事件总线
func NewStoreFromClient(client *redis.Client) *Store {
	return &Store{client: client, topic: eventbus.TopicRealtime, logger: slog.Default()}
}

// WithTopic 使用自定义 topic（测试隔离）
func (s *Store) WithTopic(topic string) *Store {
	s.topic = topic
	return s
}

// Publish 发布频道事件
func (s *Store) Publish(ctx context.Context, event *eventbus.ChannelEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := s.client.Publish(ctx, s.topic, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe 订阅 topic，解码失败的消息被跳过
func (s *Store) Subscribe(ctx context.Context) (<-chan *eventbus.ChannelEvent, error) {
	pubsub := s.client.Subscribe(ctx, s.topic)
	// 等待订阅确认，确保返回后发布的消息不会丢失
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe %s: %w", s.topic, err)
	}

	out := make(chan *eventbus.ChannelEvent, eventbus.SubscribeBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev eventbus.ChannelEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					s.logger.Warn("eventbus: drop malformed event", "error", err)
					continue
				}
				select {
				case out <- &ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close 事件总线不拥有连接，由 infra 统一关闭
func (s *Store) Close() error {
	return nil
}

var _ eventbus.EventBus = (*Store)(nil)
