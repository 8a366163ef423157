// Package cache 缓存层抽象接口
//
// 提供短期状态（如 OTP 发送冷却）的存取能力，
// 配置了 Redis 时由 Redis 实现，多进程共享；否则使用进程内实现。
package cache

import (
	"context"
	"time"
)

// CooldownCache 冷却窗口缓存
type CooldownCache interface {
	// AcquireCooldown 若 key 当前不在冷却中，则开启 ttl 时长的冷却并返回 true；
	// 已在冷却中返回 false 与剩余时间
	AcquireCooldown(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error)
	// ReleaseCooldown 提前结束冷却（发送失败时回滚）
	ReleaseCooldown(ctx context.Context, key string) error
}

// Cache 缓存组合接口
type Cache interface {
	CooldownCache
	Close() error
}
