package prereg

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempo-bot/internal/database"
	"tempo-bot/internal/logger"
	"tempo-bot/internal/models"
	"tempo-bot/internal/tracker"
)

func setup(t *testing.T) (*Queue, *tracker.Tracker, database.Store) {
	t.Helper()
	store, err := database.NewFileStore(t.TempDir())
	require.NoError(t, err)
	now := func() time.Time { return time.Date(2024, 9, 11, 16, 30, 0, 0, time.UTC) }
	ctx := context.Background()
	tr := tracker.New(ctx, store, logger.Discard(), tracker.WithClock(now))
	return New(ctx, tr, store, logger.Discard(), WithClock(now)), tr, store
}

func TestPreregisterAndActivate(t *testing.T) {
	q, tr, _ := setup(t)

	require.True(t, q.Preregister("1", "Ana", "9", "Admin"))
	assert.False(t, q.Preregister("1", "Ana", "9", "Admin"), "duplicate must be refused")

	entry, ok := q.Activate("1")
	require.True(t, ok)
	assert.Equal(t, "9", entry.RegisteredByID)
	assert.Equal(t, 0, q.Len())

	u, ok := tr.User("1")
	require.True(t, ok)
	assert.Equal(t, models.StateActive, u.State)
	require.NotNil(t, u.Initiator)
	assert.Equal(t, "9", u.Initiator.AdminID)
	assert.Equal(t, "Admin", u.Initiator.AdminName)
}

func TestPreregisterRefusedForRunningUser(t *testing.T) {
	q, tr, _ := setup(t)

	tr.Start("1", "Ana")
	assert.False(t, q.Preregister("1", "Ana", "9", "Admin"))

	tr.Pause("1")
	assert.False(t, q.Preregister("1", "Ana", "9", "Admin"))
}

func TestFailedActivationKeepsEntry(t *testing.T) {
	q, tr, _ := setup(t)

	require.True(t, q.Preregister("1", "Ana", "9", "Admin"))
	// Пользователь запущен вручную после регистрации
	tr.Start("1", "Ana")

	_, ok := q.Activate("1")
	assert.False(t, ok)
	assert.True(t, q.IsPreregistered("1"))

	_, ok = q.Activate("missing")
	assert.False(t, ok)
}

func TestActivateAll(t *testing.T) {
	q, tr, _ := setup(t)

	q.Preregister("1", "Ana", "9", "Admin")
	q.Preregister("2", "Luis", "8", "Other")
	q.Preregister("3", "Eva", "9", "Admin")
	tr.Start("3", "Eva")

	activated := q.ActivateAll()
	require.Len(t, activated, 2)
	assert.Equal(t, "1", activated[0].ID)
	assert.Equal(t, "2", activated[1].ID)
	assert.Equal(t, []string{"3"}, ids(q.Entries()))
}

func TestCleanExpiredAndRemove(t *testing.T) {
	q, _, _ := setup(t)

	q.Preregister("1", "Ana", "9", "Admin")
	q.Preregister("2", "Luis", "9", "Admin")

	assert.True(t, q.Remove("1"))
	assert.False(t, q.Remove("1"))
	assert.Equal(t, 1, q.CleanExpired())
	assert.Equal(t, 0, q.CleanExpired())
}

func TestQueuePersistence(t *testing.T) {
	q, tr, store := setup(t)
	q.Preregister("1", "Ana", "9", "Admin")

	reloaded := New(context.Background(), tr, store, logger.Discard())
	require.Equal(t, 1, reloaded.Len())
	assert.Equal(t, "Admin", reloaded.Entries()[0].RegisteredByName)
}

func TestMalformedPreregistrationIsKept(t *testing.T) {
	_, tr, store := setup(t)
	ctx := context.Background()
	broken := json.RawMessage(`{"id":"2","registered_at":"yesterday"}`)
	require.NoError(t, store.Replace(ctx, database.CollectionPreregistrations, map[string]json.RawMessage{
		"2": broken,
	}))

	q := New(ctx, tr, store, logger.Discard())
	assert.Equal(t, 0, q.Len())

	require.True(t, q.Preregister("1", "Ana", "9", "Admin"))
	docs, err := store.Load(ctx, database.CollectionPreregistrations)
	require.NoError(t, err)
	require.Contains(t, docs, "2")
	assert.JSONEq(t, string(broken), string(docs["2"]))

	assert.Equal(t, 1, q.CleanExpired())
	docs, err = store.Load(ctx, database.CollectionPreregistrations)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func ids(entries []models.PreregistrationEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}
