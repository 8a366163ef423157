// Package infra 基础设施聚合层
//
// 提供统一的基础设施初始化和依赖注入，包括：
//   - Storage：持久化存储（MongoDB / PostgreSQL / SQLite）
//   - Cache：缓存（Redis，未配置时为进程内实现）
//   - EventBus：实时事件总线（Redis Pub/Sub，未配置时为 nil，由 Hub 进程内广播）
package infra

import (
	"context"

	"mindcare/internal/shared/cache"
	"mindcare/internal/shared/eventbus"
	"mindcare/internal/shared/storage"
)

// Infrastructure 基础设施聚合结构
type Infrastructure struct {
	Storage  storage.PersistentStore
	Cache    cache.Cache
	EventBus eventbus.EventBus

	redis *RedisInfra
}

// Close 关闭所有基础设施连接
func (i *Infrastructure) Close() error {
	var lastErr error

	if i.Storage != nil {
		if err := i.Storage.Close(); err != nil {
			lastErr = err
		}
	}

	if i.EventBus != nil {
		if err := i.EventBus.Close(); err != nil {
			lastErr = err
		}
	}

	// Redis 连接由 cache / eventbus 共享，最后关闭
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			lastErr = err
		}
	} else if i.Cache != nil {
		if err := i.Cache.Close(); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// NewLocalInfrastructure 创建单进程基础设施：进程内缓存，无事件总线
func NewLocalInfrastructure(store storage.PersistentStore) *Infrastructure {
	return &Infrastructure{
		Storage: store,
		Cache:   cache.NewMemoryCache(),
	}
}

// WithRedis 使用 Redis 提供缓存与事件总线
func (i *Infrastructure) WithRedis(r *RedisInfra) *Infrastructure {
	i.redis = r
	i.Cache = r.Cache()
	i.EventBus = r.EventBus()
	return i
}

// HealthChecks 返回需要在健康检查中探测的外部依赖
func (i *Infrastructure) HealthChecks() map[string]func(context.Context) error {
	checks := make(map[string]func(context.Context) error)
	if i.Storage != nil {
		checks["storage"] = i.Storage.Ping
	}
	if i.redis != nil {
		checks["redis"] = i.redis.Ping
	}
	return checks
}
