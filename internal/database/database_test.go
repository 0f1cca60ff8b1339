package database

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempo-bot/internal/logger"
	"tempo-bot/internal/models"
)

func sampleUsers() map[string]models.TrackedUser {
	start := time.Date(2024, 9, 11, 17, 0, 0, 0, time.UTC)
	active := models.TrackedUser{ID: "1", DisplayName: "Ana"}
	active.Begin("", start)

	done := models.TrackedUser{ID: "2", DisplayName: "Luis"}
	done.Begin("", start)
	done.Stop(start.Add(time.Hour))
	done.MarkMilestones(3600)
	done.Initiator = &models.Initiator{AdminID: "9", AdminName: "Admin", Timestamp: start}

	return map[string]models.TrackedUser{"1": active, "2": done}
}

func assertRoundTrip(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	users := sampleUsers()
	docs, err := Encode(users)
	require.NoError(t, err)
	require.NoError(t, store.Replace(ctx, CollectionTrackedUsers, docs))

	loaded, err := store.Load(ctx, CollectionTrackedUsers)
	require.NoError(t, err)

	decoded, failed := Decode[models.TrackedUser](loaded)
	assert.Empty(t, failed)
	require.Len(t, decoded, 2)
	assert.Equal(t, models.StateActive, decoded["1"].State)
	assert.Equal(t, 3600.0, decoded["2"].TotalTime)
	assert.Equal(t, []int64{3600}, decoded["2"].NotifiedMilestones)
	require.NotNil(t, decoded["2"].Initiator)
	assert.Equal(t, "9", decoded["2"].Initiator.AdminID)
	require.Len(t, decoded["2"].Sessions, 1)
	assert.Equal(t, 3600.0, decoded["2"].Sessions[0].Duration)

	// Replace удаляет записи, которых больше нет
	delete(docs, "1")
	require.NoError(t, store.Replace(ctx, CollectionTrackedUsers, docs))
	loaded, err = store.Load(ctx, CollectionTrackedUsers)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)

	empty, err := store.Load(ctx, CollectionPreregistrations)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	assertRoundTrip(t, store)
}

func TestFileStoreLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Replace(context.Background(), CollectionAttendance, map[string]json.RawMessage{"1": json.RawMessage(`{"id":"1"}`)}))

	_, err = os.Stat(filepath.Join(dir, "attendance_data.json.tmp"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "attendance_data.json"))
	assert.NoError(t, err)
}

func TestFileStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user_times.json"), []byte("{broken"), 0o600))

	store, err := NewFileStore(dir)
	require.NoError(t, err)

	_, err = store.Load(context.Background(), CollectionTrackedUsers)
	assert.Error(t, err)
}

func TestSQLiteRoundTrip(t *testing.T) {
	db, err := New("sqlite", filepath.Join(t.TempDir(), "tempo.db"), logger.Discard())
	require.NoError(t, err)
	defer db.Close()

	assertRoundTrip(t, db)

	stats, err := db.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats[CollectionTrackedUsers])
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tempo.db")
	db, err := New("sqlite", path, logger.Discard())
	require.NoError(t, err)

	require.NoError(t, db.RunMigrations())
	applied, err := db.GetAppliedMigrations()
	require.NoError(t, err)
	assert.Len(t, applied, len(Migrations))

	version, err := db.RollbackMigration()
	require.NoError(t, err)
	assert.Equal(t, Migrations[len(Migrations)-1].Version, version)

	applied, err = db.GetAppliedMigrations()
	require.NoError(t, err)
	assert.Len(t, applied, len(Migrations)-1)
	require.NoError(t, db.Close())

	// Повторное открытие применяет откаченную миграцию заново
	db, err = New("sqlite", path, logger.Discard())
	require.NoError(t, err)
	defer db.Close()
	applied, err = db.GetAppliedMigrations()
	require.NoError(t, err)
	assert.Len(t, applied, len(Migrations))
}

func TestRebind(t *testing.T) {
	pg := &Database{dialect: "postgres"}
	assert.Equal(t, "INSERT INTO t VALUES ($1, $2)", pg.rebind("INSERT INTO t VALUES (?, ?)"))

	lite := &Database{dialect: "sqlite"}
	assert.Equal(t, "INSERT INTO t VALUES (?, ?)", lite.rebind("INSERT INTO t VALUES (?, ?)"))
}

func TestDecodeSkipsMalformed(t *testing.T) {
	docs := map[string]json.RawMessage{
		"1": json.RawMessage(`{"id":"1","name":"Ana"}`),
		"2": json.RawMessage(`{"id":`),
	}
	items, failed := Decode[models.TrackedUser](docs)
	assert.Len(t, items, 1)
	assert.Contains(t, failed, "2")
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Options{Driver: "mongo"}, logger.Discard())
	assert.Error(t, err)
}
