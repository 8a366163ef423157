package infra

import (
	"context"
	"fmt"

	"mindcare/internal/shared/model"
	"mindcare/internal/shared/storage"
	"mindcare/internal/shared/storage/dbutil"
	pgdriver "mindcare/internal/shared/storage/driver/postgres"
	sqlitedriver "mindcare/internal/shared/storage/driver/sqlite"
	"mindcare/internal/shared/storage/mongostore"
	"mindcare/internal/shared/storage/repository"
)

// OpenStorage 根据驱动类型创建持久化存储
//
// 支持的驱动类型：mongodb（dbName 为库名）、postgres、sqlite
func OpenStorage(driver dbutil.DriverType, dsn, dbName string) (storage.PersistentStore, error) {
	switch driver {
	case dbutil.DriverMongoDB:
		s, err := mongostore.NewStore(dsn, dbName)
		if err != nil {
			return nil, err
		}
		return s, nil
	case dbutil.DriverPostgres:
		db, err := pgdriver.Open(dsn)
		if err != nil {
			return nil, err
		}
		dialect := pgdriver.NewDialect()
		if err := dialect.AutoMigrate(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("postgres schema init failed: %w", err)
		}
		return repository.NewStore(db, dialect), nil
	case dbutil.DriverSQLite:
		db, err := sqlitedriver.Open(dsn)
		if err != nil {
			return nil, err
		}
		dialect := sqlitedriver.NewDialect()
		if err := dialect.AutoMigrate(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite auto-migrate failed: %w", err)
		}
		return repository.NewStore(db, dialect), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// SeedRooms 为默认讨论室分配 ID 并幂等写入
func SeedRooms(ctx context.Context, store storage.RoomStore) error {
	rooms := model.DefaultRooms()
	for _, r := range rooms {
		r.ID = model.NewID(model.PrefixRoom)
	}
	return store.SeedRooms(ctx, rooms)
}
