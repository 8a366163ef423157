// Package repository 数据库无关的 SQL 存储实现
//
// 通过 dbutil.Dialect 接口屏蔽不同数据库的 SQL 差异，
// 所有 SQL 以 PostgreSQL 风格编写，运行时由 Dialect.Rebind() 转换。
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"mindcare/internal/shared/storage"
	"mindcare/internal/shared/storage/dbutil"
)

// Store 通用存储实现
// 实现了 storage.PersistentStore 接口
type Store struct {
	db      *sql.DB
	dialect dbutil.Dialect
}

var _ storage.PersistentStore = (*Store)(nil)

// NewStore 创建通用存储
func NewStore(db *sql.DB, dialect dbutil.Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Ping 探测数据库连接
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

// DB 返回底层数据库连接（仅用于测试）
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect 返回当前方言
func (s *Store) Dialect() dbutil.Dialect {
	return s.dialect
}

// rebind 快捷方法：将 PG 风格 SQL 转换为当前方言
func (s *Store) rebind(query string) string {
	return s.dialect.Rebind(query)
}

// wrapError 将驱动错误转换为领域错误
func (s *Store) wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if s.dialect.IsUniqueViolation(err) {
		return storage.ErrDuplicate
	}
	return err
}

// exec 执行写操作，affected 为 0 时返回 ErrNotFound
func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return s.wrapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// withTx 在事务中执行 fn
//
// fn 内只能使用 tx：SQLite 连接池大小为 1，再取连接会死锁
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// count 执行 SELECT COUNT(*) 查询
func (s *Store) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, s.rebind(query), args...).Scan(&n)
	return n, err
}

// nextSeq 原子递增计数列并返回新值，行不存在返回 ErrNotFound
func (s *Store) nextSeq(ctx context.Context, tx *sql.Tx, table, id string) (int64, error) {
	var seq int64
	err := tx.QueryRowContext(ctx, s.rebind(
		`UPDATE `+table+` SET message_count = message_count + 1 WHERE id = $1 RETURNING message_count`), id,
	).Scan(&seq)
	if err != nil {
		return 0, s.wrapError(err)
	}
	return seq, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
