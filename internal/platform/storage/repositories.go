package storage

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/bytedance/sonic"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"beatrice-server-go/internal/platform/errors"
)

// SettingsRepository stores JSON documents under string keys.
type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Load decodes the value stored under key into out. Returns false when absent.
func (r *SettingsRepository) Load(ctx context.Context, key string, out any) (bool, error) {
	var record SettingsRecord
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&record).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(errors.KindStorage, "settings.load", "failed to load "+key, err)
	}
	if err := sonic.Unmarshal(record.Value, out); err != nil {
		return false, errors.Wrap(errors.KindStorage, "settings.decode", "failed to decode "+key, err)
	}
	return true, nil
}

// Save upserts value under key and bumps its version.
func (r *SettingsRepository) Save(ctx context.Context, key string, value any) error {
	payload, err := sonic.Marshal(value)
	if err != nil {
		return errors.Wrap(errors.KindStorage, "settings.encode", "failed to encode "+key, err)
	}

	now := time.Now()
	record := SettingsRecord{
		Key:       key,
		Value:     datatypes.JSON(payload),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      record.Value,
			"updated_at": now,
			"version":    gorm.Expr("settings_records.version + 1"),
		}),
	}).Create(&record).Error
	if err != nil {
		return errors.Wrap(errors.KindStorage, "settings.save", "failed to save "+key, err)
	}
	return nil
}

// Version returns the stored version for key, 0 when absent.
func (r *SettingsRepository) Version(ctx context.Context, key string) (int, error) {
	var record SettingsRecord
	err := r.db.WithContext(ctx).Select("version").Where("key = ?", key).First(&record).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(errors.KindStorage, "settings.version", "failed to read version of "+key, err)
	}
	return record.Version, nil
}

// EventRepository appends and queries persisted domain events.
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append stores one event; data is JSON-encoded.
func (r *EventRepository) Append(ctx context.Context, eventType, provider, operation string, data any) error {
	payload, err := sonic.Marshal(data)
	if err != nil {
		return errors.Wrap(errors.KindStorage, "events.encode", "failed to encode event", err)
	}
	event := DomainEvent{
		EventType: eventType,
		Provider:  provider,
		Operation: operation,
		Data:      datatypes.JSON(payload),
		CreatedAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "events.append", "failed to append event", err)
	}
	return nil
}

// Recent returns the newest events, optionally filtered by type.
func (r *EventRepository) Recent(ctx context.Context, eventType string, limit int) ([]DomainEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Order("id DESC").Limit(limit)
	if eventType != "" {
		q = q.Where("event_type = ?", eventType)
	}
	var events []DomainEvent
	if err := q.Find(&events).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "events.recent", "failed to query events", err)
	}
	return events, nil
}

// MemoryRepository is the key-value table behind the sqlite-memory provider.
type MemoryRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewMemoryRepository(db *gorm.DB) *MemoryRepository {
	return &MemoryRepository{db: db, now: time.Now}
}

// Put upserts value under (scope, key). ttl <= 0 keeps it forever.
func (r *MemoryRepository) Put(ctx context.Context, scope, key, value string, ttl time.Duration) error {
	now := r.now()
	record := MemoryRecord{Scope: scope, Key: key, Value: value, UpdatedAt: now}
	if ttl > 0 {
		expires := now.Add(ttl)
		record.ExpiresAt = &expires
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return errors.Wrap(errors.KindStorage, "memory.put", "failed to store "+scope+":"+key, err)
	}
	return nil
}

// Get returns the live value under (scope, key); expired rows read as absent.
func (r *MemoryRepository) Get(ctx context.Context, scope, key string) (string, bool, error) {
	var record MemoryRecord
	err := r.db.WithContext(ctx).
		Where("scope = ? AND key = ?", scope, key).
		Where("expires_at IS NULL OR expires_at > ?", r.now()).
		First(&record).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(errors.KindStorage, "memory.get", "failed to read "+scope+":"+key, err)
	}
	return record.Value, true, nil
}

// PurgeExpired deletes expired rows and reports how many were removed.
func (r *MemoryRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at IS NOT NULL AND expires_at <= ?", r.now()).Delete(&MemoryRecord{})
	if res.Error != nil {
		return 0, errors.Wrap(errors.KindStorage, "memory.purge", "failed to purge expired memory", res.Error)
	}
	return res.RowsAffected, nil
}
