// Package prereg хранит предварительные записи на автоматический старт времени.
package prereg

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"tempo-bot/internal/database"
	"tempo-bot/internal/logger"
	"tempo-bot/internal/metrics"
	"tempo-bot/internal/models"
)

const persistTimeout = 10 * time.Second

// Sessions - то, что очереди нужно от трекера
type Sessions interface {
	State(id string) (models.State, bool)
	StartWithInitiator(id, name string, initiator models.Initiator) bool
}

type Option func(*Queue)

func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

type Queue struct {
	sessions Sessions
	store    database.Store
	logger   logger.Logger
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*models.PreregistrationEntry
	// raw - испорченные заявки, которые переписываются без изменений
	raw map[string]json.RawMessage
}

func New(ctx context.Context, sessions Sessions, store database.Store, log logger.Logger, opts ...Option) *Queue {
	q := &Queue{
		sessions: sessions,
		store:    store,
		logger:   log,
		now:      time.Now,
		entries:  make(map[string]*models.PreregistrationEntry),
		raw:      make(map[string]json.RawMessage),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.load(ctx)
	return q
}

func (q *Queue) load(ctx context.Context) {
	docs, err := q.store.Load(ctx, database.CollectionPreregistrations)
	if err != nil {
		q.logger.Errorf("Failed to load preregistrations, starting empty: %v", err)
		return
	}
	entries, failed := database.Decode[models.PreregistrationEntry](docs)
	for id, err := range failed {
		q.logger.WithField("user_id", id).Warnf("Skipping malformed preregistration: %v", err)
		q.raw[id] = docs[id]
	}
	for id, e := range entries {
		e := e
		if e.ID == "" {
			e.ID = id
		}
		q.entries[id] = &e
	}
}

func (q *Queue) persistLocked() {
	docs, err := database.Encode(q.entries)
	if err != nil {
		q.logger.Errorf("Failed to encode preregistrations: %v", err)
		return
	}
	for id, raw := range q.raw {
		docs[id] = raw
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := q.store.Replace(ctx, database.CollectionPreregistrations, docs); err != nil {
		q.logger.Errorf("Failed to save preregistrations: %v", err)
		metrics.RecordPersistFailure(string(database.CollectionPreregistrations))
	}
}

// Preregister добавляет заявку. Отказ, если заявка уже есть или время пользователя уже идет.
func (q *Queue) Preregister(id, name, adminID, adminName string) bool {
	if state, ok := q.sessions.State(id); ok && (state == models.StateActive || state == models.StatePaused) {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.entries[id]; exists {
		return false
	}
	q.entries[id] = &models.PreregistrationEntry{
		ID:               id,
		DisplayName:      name,
		RegisteredByID:   adminID,
		RegisteredByName: adminName,
		RegisteredAt:     q.now(),
	}
	delete(q.raw, id)
	q.persistLocked()
	q.logger.WithFields(map[string]interface{}{"user_id": id, "admin_id": adminID}).Info("User preregistered")
	return true
}

// Activate запускает время по заявке. Заявка удаляется только при успешном старте.
func (q *Queue) Activate(id string) (models.PreregistrationEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.activateLocked(id)
}

func (q *Queue) activateLocked(id string) (models.PreregistrationEntry, bool) {
	entry, ok := q.entries[id]
	if !ok {
		return models.PreregistrationEntry{}, false
	}
	initiator := models.Initiator{
		AdminID:   entry.RegisteredByID,
		AdminName: entry.RegisteredByName,
		Timestamp: q.now(),
	}
	if !q.sessions.StartWithInitiator(id, entry.DisplayName, initiator) {
		q.logger.WithField("user_id", id).Warn("Failed to activate preregistration, keeping entry")
		return models.PreregistrationEntry{}, false
	}
	delete(q.entries, id)
	q.persistLocked()
	return *entry, true
}

// ActivateAll активирует все заявки и возвращает успешно активированные
func (q *Queue) ActivateAll() []models.PreregistrationEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := make([]string, 0, len(q.entries))
	for id := range q.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var activated []models.PreregistrationEntry
	for _, id := range ids {
		if entry, ok := q.activateLocked(id); ok {
			activated = append(activated, entry)
		}
	}
	metrics.RecordActivations(len(activated))
	return activated
}

// CleanExpired удаляет все оставшиеся заявки, включая испорченные (после времени активации они уже не нужны)
func (q *Queue) CleanExpired() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.entries)
	if n == 0 && len(q.raw) == 0 {
		return 0
	}
	q.entries = make(map[string]*models.PreregistrationEntry)
	q.raw = make(map[string]json.RawMessage)
	q.persistLocked()
	return n
}

func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.entries[id]; !ok {
		return false
	}
	delete(q.entries, id)
	q.persistLocked()
	return true
}

func (q *Queue) IsPreregistered(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.entries[id]
	return ok
}

// Entries возвращает копии заявок по времени регистрации
func (q *Queue) Entries() []models.PreregistrationEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.PreregistrationEntry, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RegisteredAt.Before(out[j].RegisteredAt)
	})
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
