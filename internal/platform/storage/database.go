package storage

import (
	"os"
	"path/filepath"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"beatrice-server-go/internal/platform/errors"
	"beatrice-server-go/internal/platform/storage/migrations"
)

// Open opens (creating if needed) the SQLite database at path and runs migrations.
func Open(path string) (*gorm.DB, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return OpenDSN(path)
}

// OpenDSN opens a SQLite DSN as-is (e.g. "file:x?mode=memory&cache=shared") and runs migrations.
func OpenDSN(dsn string) (*gorm.DB, error) {
	db, err := openSQLite(dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		_ = Close(db)
		return nil, err
	}
	return db, nil
}

// OpenData opens a SQLite file for user data. No service tables are created in it.
func OpenData(path string) (*gorm.DB, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return openSQLite(path)
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(errors.KindStorage, "storage.open", "failed to create data directory", err)
		}
	}
	return nil
}

func openSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "storage.open", "failed to open database", err)
	}
	return db, nil
}

// Migrate applies every registered schema migration.
func Migrate(db *gorm.DB) error {
	manager := NewMigrationManager(db, &migrations.Migration001Initial{})
	if err := manager.RunMigrations(); err != nil {
		return errors.Wrap(errors.KindStorage, "storage.migrate", "failed to run migrations", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SettingsRecord 持久化的运行时配置（提供者参数、偏好列表）
type SettingsRecord struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Key       string         `gorm:"uniqueIndex;not null" json:"key"`
	Value     datatypes.JSON `gorm:"not null" json:"value"`
	Version   int            `gorm:"default:1" json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (SettingsRecord) TableName() string {
	return "settings_records"
}

// MemoryRecord sqlite-memory 提供者的键值记录
type MemoryRecord struct {
	Scope     string     `gorm:"primaryKey;size:32"`
	Key       string     `gorm:"primaryKey;size:255"`
	Value     string     `gorm:"type:text;not null"`
	ExpiresAt *time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (MemoryRecord) TableName() string {
	return "memory_records"
}

// DomainEvent 领域事件存储模型
type DomainEvent struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	EventType string         `gorm:"index;not null" json:"event_type"`
	Provider  string         `gorm:"index" json:"provider,omitempty"`
	Operation string         `json:"operation,omitempty"`
	Data      datatypes.JSON `gorm:"not null" json:"data"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (DomainEvent) TableName() string {
	return "domain_events"
}
