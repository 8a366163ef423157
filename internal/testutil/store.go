// Package testutil 提供测试共享基础设施
//
// 包含两类工具：
//   - NewStore: 基于 SQLite :memory: 的真实存储（已播种讨论室）
//   - Client: 带 Cookie 的 HTTP 客户端（见 client.go）
package testutil

import (
	"context"
	"testing"
	"time"

	"mindcare/internal/shared/infra"
	"mindcare/internal/shared/model"
	"mindcare/internal/shared/storage"
	"mindcare/internal/shared/storage/dbutil"
)

// NewStore 返回独立的内存存储，测试结束自动关闭
func NewStore(t testing.TB) storage.PersistentStore {
	t.Helper()
	store, err := infra.OpenStorage(dbutil.DriverSQLite, ":memory:", "")
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := infra.SeedRooms(context.Background(), store); err != nil {
		t.Fatalf("seed rooms: %v", err)
	}
	return store
}

// CreateAccount 直接写入一个账号（密码哈希为占位值，不能用于登录）
func CreateAccount(t testing.TB, store storage.AccountStore, name string, role model.Role) *model.Account {
	t.Helper()
	now := time.Now().UTC()
	account := &model.Account{
		ID:           model.NewID(model.PrefixAccount),
		Name:         name,
		Email:        model.NewID(name) + "@example.com",
		PasswordHash: "x",
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("create account %s: %v", name, err)
	}
	return account
}

// FirstRoom 返回播种的第一个讨论室
func FirstRoom(t testing.TB, store storage.RoomStore) *model.Room {
	t.Helper()
	rooms, err := store.ListRooms(context.Background())
	if err != nil || len(rooms) == 0 {
		t.Fatalf("list rooms: %v (%d rooms)", err, len(rooms))
	}
	return rooms[0]
}
