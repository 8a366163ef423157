// Package cache 缓存层 mock 实现
package cache

import (
	"context"
	"time"
)

// NoOpCache 是一个不做任何操作的 Cache 实现（冷却永远可获取，用于测试）
type NoOpCache struct{}

// NewNoOpCache 创建 NoOpCache 实例
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (c *NoOpCache) AcquireCooldown(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	return true, 0, nil
}

func (c *NoOpCache) ReleaseCooldown(ctx context.Context, key string) error {
	return nil
}

// Close 关闭缓存
func (c *NoOpCache) Close() error {
	return nil
}

// 确保 NoOpCache 实现了 Cache 接口
var _ Cache = (*NoOpCache)(nil)
