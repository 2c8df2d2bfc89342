package storage

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var dbCounter atomic.Int64

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:storage-test-%d?mode=memory&cache=shared", dbCounter.Add(1))
	db, err := OpenDSN(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, Migrate(db))

	history, err := NewMigrationManager(db).GetMigrationHistory()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "001_initial", history[0].Version)

	for _, table := range []string{"settings_records", "memory_records", "domain_events"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestMigrationManager_Rollback(t *testing.T) {
	db := openTestDB(t)
	manager := NewMigrationManager(db)

	err := manager.RollbackMigration("001_initial")
	require.Error(t, err, "migration not registered on this manager")

	pending, err := manager.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := t.TempDir() + "/nested/beatrice.db"
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, Close(db))
}

func TestSettingsRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepository(openTestDB(t))

	var missing map[string]string
	found, err := repo.Load(ctx, "providers", &missing)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.Save(ctx, "providers", map[string]string{"cartesia": "key-1"}))
	require.NoError(t, repo.Save(ctx, "providers", map[string]string{"cartesia": "key-2"}))

	var got map[string]string
	found, err = repo.Load(ctx, "providers", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "key-2", got["cartesia"])

	version, err := repo.Version(ctx, "providers")
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestEventRepository_AppendAndRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepository(openTestDB(t))

	require.NoError(t, repo.Append(ctx, "orchestrator:attempt_failed", "cartesia", "voice.speak", map[string]string{"reason": "HTTP 500"}))
	require.NoError(t, repo.Append(ctx, "orchestrator:exhausted", "", "voice.speak", map[string]int{"attempts": 2}))

	all, err := repo.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "orchestrator:exhausted", all[0].EventType)

	failed, err := repo.Recent(ctx, "orchestrator:attempt_failed", 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "cartesia", failed[0].Provider)
	assert.JSONEq(t, `{"reason":"HTTP 500"}`, string(failed[0].Data))
}

func TestMemoryRepository_TTL(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(openTestDB(t))
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }

	require.NoError(t, repo.Put(ctx, "user", "drink", `"oat latte"`, 0))
	require.NoError(t, repo.Put(ctx, "session", "mood", `"calm"`, time.Minute))
	require.NoError(t, repo.Put(ctx, "user", "drink", `"flat white"`, 0))

	value, found, err := repo.Get(ctx, "user", "drink")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `"flat white"`, value)

	_, found, err = repo.Get(ctx, "global", "drink")
	require.NoError(t, err)
	assert.False(t, found)

	clock = clock.Add(2 * time.Minute)
	_, found, err = repo.Get(ctx, "session", "mood")
	require.NoError(t, err)
	assert.False(t, found)

	purged, err := repo.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)
}
