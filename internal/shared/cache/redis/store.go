// Package redis Redis 缓存实现
//
// OTP 发送冷却等短期状态以带 TTL 的键存储，多进程共享。
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"mindcare/internal/shared/cache"
)

// Store Redis 缓存存储
type Store struct {
	client *redis.Client
}

// NewStoreFromURL 从 URL 创建 Redis 缓存实例
func NewStoreFromURL(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("redis cache connected", "addr", opts.Addr)
	return &Store{client: client}, nil
}

// NewStoreFromClient 从现有 Redis 客户端创建缓存实例
func NewStoreFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close 关闭 Redis 连接
func (s *Store) Close() error {
	return s.client.Close()
}

// Client 返回底层 Redis 客户端
func (s *Store) Client() *redis.Client {
	return s.client
}

// AcquireCooldown 使用 SET NX PX 原子地开启冷却
func (s *Store) AcquireCooldown(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	ok, err := s.client.SetNX(ctx, key, time.Now().UnixMilli(), ttl).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if ok {
		return true, 0, nil
	}

	remaining, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis pttl %s: %w", key, err)
	}
	if remaining < 0 {
		remaining = 0
	}
	return false, remaining, nil
}

// ReleaseCooldown 删除冷却键
func (s *Store) ReleaseCooldown(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

var _ cache.Cache = (*Store)(nil)
