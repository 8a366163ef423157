package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache 进程内缓存实现（未配置 Redis 时使用）
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> 冷却结束时间
	now     func() time.Time
}

// NewMemoryCache 创建 MemoryCache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]time.Time), now: time.Now}
}

func (c *MemoryCache) AcquireCooldown(_ context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if until, ok := c.entries[key]; ok && now.Before(until) {
		return false, until.Sub(now), nil
	}
	c.entries[key] = now.Add(ttl)
	c.gc(now)
	return true, 0, nil
}

func (c *MemoryCache) ReleaseCooldown(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// gc 清理已过期条目，调用方持有锁
func (c *MemoryCache) gc(now time.Time) {
	for k, until := range c.entries {
		if !now.Before(until) {
			delete(c.entries, k)
		}
	}
}

func (c *MemoryCache) Close() error {
	return nil
}

var _ Cache = (*MemoryCache)(nil)
