// Package tracker ведет учет рабочего времени участников: старт, паузы, остановка и корректировки.
package tracker

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"tempo-bot/internal/database"
	"tempo-bot/internal/logger"
	"tempo-bot/internal/metrics"
	"tempo-bot/internal/models"
)

const (
	persistTimeout   = 10 * time.Second
	defaultMaxPauses = 3
)

type Option func(*Tracker)

// WithClock подменяет источник текущего времени
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithMaxPauses задает число пауз, после которого сессия отменяется
func WithMaxPauses(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.maxPauses = n
		}
	}
}

// Tracker хранит записи пользователей в памяти и сохраняет их после каждого изменения.
// Изменения одного пользователя сериализуются, разные пользователи обрабатываются параллельно.
type Tracker struct {
	store     database.Store
	logger    logger.Logger
	now       func() time.Time
	maxPauses int

	locks keyedMutex

	mu      sync.RWMutex
	users   map[string]*models.TrackedUser
	encoded map[string]json.RawMessage
	active  map[string]bool

	persistMu sync.Mutex
}

// PauseResult описывает итог паузы
type PauseResult struct {
	DisplayName   string
	PauseCount    int
	TotalTime     float64
	AutoCancelled bool
}

// New создает трекер и загружает сохраненные записи.
// Ошибка загрузки не фатальна: трекер стартует с пустым состоянием.
func New(ctx context.Context, store database.Store, log logger.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:     store,
		logger:    log,
		now:       time.Now,
		maxPauses: defaultMaxPauses,
		users:     make(map[string]*models.TrackedUser),
		encoded:   make(map[string]json.RawMessage),
		active:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.load(ctx)
	return t
}

func (t *Tracker) load(ctx context.Context) {
	docs, err := t.store.Load(ctx, database.CollectionTrackedUsers)
	if err != nil {
		t.logger.Errorf("Failed to load tracked users, starting empty: %v", err)
		return
	}

	users, failed := database.Decode[models.TrackedUser](docs)
	for id, err := range failed {
		// Испорченную запись сохраняем как есть, чтобы не потерять ее при следующей записи
		t.logger.WithField("user_id", id).Warnf("Skipping malformed tracked user: %v", err)
		t.encoded[id] = docs[id]
	}
	for id, u := range users {
		u := u
		if u.ID == "" {
			u.ID = id
		}
		t.users[id] = &u
		t.encoded[id] = docs[id]
		t.active[id] = u.IsActive()
	}
	t.logger.Infof("Loaded %d tracked users", len(users))
	metrics.SetActiveSessions(t.countActive())
}

// apply выполняет fn под блокировкой пользователя. fn получает nil, если записи нет,
// и возвращает новую запись (nil - удалить) и признак изменения.
func (t *Tracker) apply(id string, fn func(u *models.TrackedUser, now time.Time) (*models.TrackedUser, bool)) bool {
	unlock := t.locks.Lock(id)
	defer unlock()

	t.mu.RLock()
	current := t.users[id]
	t.mu.RUnlock()

	next, changed := fn(current, t.now())
	if !changed {
		return false
	}
	t.commit(id, next)
	return true
}

// commit вызывается под блокировкой пользователя
func (t *Tracker) commit(id string, u *models.TrackedUser) {
	var raw json.RawMessage
	if u != nil {
		data, err := json.Marshal(u)
		if err != nil {
			t.logger.WithField("user_id", id).Errorf("Failed to encode tracked user: %v", err)
		} else {
			raw = data
		}
	}

	t.mu.Lock()
	if u == nil {
		delete(t.users, id)
		delete(t.encoded, id)
		delete(t.active, id)
	} else {
		t.users[id] = u
		if raw != nil {
			t.encoded[id] = raw
		}
		t.active[id] = u.IsActive()
	}
	active := t.countActiveLocked()
	t.mu.Unlock()

	metrics.SetActiveSessions(active)
	t.persist()
}

// persist записывает снимок коллекции. Ошибка записи не откатывает изменение в памяти.
func (t *Tracker) persist() {
	t.persistMu.Lock()
	defer t.persistMu.Unlock()

	t.mu.RLock()
	docs := make(map[string]json.RawMessage, len(t.encoded))
	for id, raw := range t.encoded {
		docs[id] = raw
	}
	t.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := t.store.Replace(ctx, database.CollectionTrackedUsers, docs); err != nil {
		t.logger.Errorf("Failed to save tracked users: %v", err)
		metrics.RecordPersistFailure(string(database.CollectionTrackedUsers))
	}
}

func (t *Tracker) countActive() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.countActiveLocked()
}

func (t *Tracker) countActiveLocked() int {
	n := 0
	for _, a := range t.active {
		if a {
			n++
		}
	}
	return n
}

// Start запускает время пользователя, создавая запись при необходимости
func (t *Tracker) Start(id, name string) bool {
	return t.start(id, name, nil)
}

// StartWithInitiator запускает время и запоминает, кто его запустил
func (t *Tracker) StartWithInitiator(id, name string, initiator models.Initiator) bool {
	return t.start(id, name, &initiator)
}

func (t *Tracker) start(id, name string, initiator *models.Initiator) bool {
	ok := t.apply(id, func(u *models.TrackedUser, now time.Time) (*models.TrackedUser, bool) {
		if u == nil {
			u = &models.TrackedUser{ID: id, DisplayName: name}
		}
		if !u.Begin(name, now) {
			return nil, false
		}
		if initiator != nil {
			u.Initiator = initiator
		}
		return u, true
	})
	if ok {
		t.logger.WithField("user_id", id).Infof("Started time for %s", name)
	}
	return ok
}

// Pause ставит время на паузу. При достижении лимита пауз запись удаляется
// в той же операции, и результат помечается AutoCancelled.
func (t *Tracker) Pause(id string) (PauseResult, bool) {
	var res PauseResult
	ok := t.apply(id, func(u *models.TrackedUser, now time.Time) (*models.TrackedUser, bool) {
		if u == nil || !u.Pause(now) {
			return nil, false
		}
		res = PauseResult{DisplayName: u.DisplayName, PauseCount: u.PauseCount, TotalTime: u.TotalTime}
		if u.PauseCount >= t.maxPauses {
			res.AutoCancelled = true
			return nil, true
		}
		return u, true
	})
	if ok && res.AutoCancelled {
		t.logger.WithField("user_id", id).Warnf("Time cancelled after %d pauses", res.PauseCount)
	}
	return res, ok
}

func (t *Tracker) Resume(id string) bool {
	return t.apply(id, func(u *models.TrackedUser, now time.Time) (*models.TrackedUser, bool) {
		if u == nil || !u.Resume(now) {
			return nil, false
		}
		return u, true
	})
}

// Stop завершает активную сессию
func (t *Tracker) Stop(id string) (models.SessionRecord, bool) {
	var record models.SessionRecord
	ok := t.apply(id, func(u *models.TrackedUser, now time.Time) (*models.TrackedUser, bool) {
		if u == nil {
			return nil, false
		}
		r, stopped := u.Stop(now)
		if !stopped {
			return nil, false
		}
		record = r
		return u, true
	})
	return record, ok
}

// Cancel полностью удаляет запись пользователя
func (t *Tracker) Cancel(id string) bool {
	return t.apply(id, func(u *models.TrackedUser, _ time.Time) (*models.TrackedUser, bool) {
		return nil, u != nil
	})
}

// AddMinutes добавляет время существующей записи
func (t *Tracker) AddMinutes(id string, minutes int) bool {
	if minutes <= 0 {
		return false
	}
	return t.apply(id, func(u *models.TrackedUser, _ time.Time) (*models.TrackedUser, bool) {
		if u == nil {
			return nil, false
		}
		u.AddTime(float64(minutes) * 60)
		return u, true
	})
}

// SubtractMinutes вычитает время, не опуская его ниже нуля
func (t *Tracker) SubtractMinutes(id string, minutes int) bool {
	if minutes <= 0 {
		return false
	}
	return t.apply(id, func(u *models.TrackedUser, _ time.Time) (*models.TrackedUser, bool) {
		if u == nil {
			return nil, false
		}
		u.AddTime(-float64(minutes) * 60)
		return u, true
	})
}

// Reset обнуляет время пользователя, оставляя запись
func (t *Tracker) Reset(id string) bool {
	return t.apply(id, func(u *models.TrackedUser, _ time.Time) (*models.TrackedUser, bool) {
		if u == nil {
			return nil, false
		}
		u.Reset()
		return u, true
	})
}

// ResetAll обнуляет время всех пользователей
func (t *Tracker) ResetAll() int {
	n := 0
	for _, id := range t.IDs() {
		if t.Reset(id) {
			n++
		}
	}
	return n
}

// ClearAll удаляет все записи, включая испорченные.
// Каждый пользователь блокируется, поэтому незавершенная операция не вернет удаленную запись.
func (t *Tracker) ClearAll() int {
	t.mu.RLock()
	seen := make(map[string]bool, len(t.encoded))
	for id := range t.users {
		seen[id] = true
	}
	for id := range t.encoded {
		seen[id] = true
	}
	t.mu.RUnlock()
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	unlocks := make([]func(), 0, len(ids))
	for _, id := range ids {
		unlocks = append(unlocks, t.locks.Lock(id))
	}
	defer func() {
		for _, unlock := range unlocks {
			unlock()
		}
	}()

	t.mu.Lock()
	n := 0
	for _, id := range ids {
		if _, ok := t.users[id]; ok {
			n++
		}
		delete(t.users, id)
		delete(t.encoded, id)
		delete(t.active, id)
	}
	active := t.countActiveLocked()
	t.mu.Unlock()

	metrics.SetActiveSessions(active)
	t.persist()
	return n
}

// Mutate выполняет fn над существующей записью под блокировкой пользователя.
// fn возвращает true, если запись изменена и ее нужно сохранить.
func (t *Tracker) Mutate(id string, fn func(u *models.TrackedUser, now time.Time) bool) bool {
	return t.apply(id, func(u *models.TrackedUser, now time.Time) (*models.TrackedUser, bool) {
		if u == nil || !fn(u, now) {
			return nil, false
		}
		return u, true
	})
}

// view выполняет fn над записью под блокировкой пользователя без изменений
func (t *Tracker) view(id string, fn func(u *models.TrackedUser, now time.Time)) bool {
	unlock := t.locks.Lock(id)
	defer unlock()

	t.mu.RLock()
	u := t.users[id]
	t.mu.RUnlock()
	if u == nil {
		return false
	}
	fn(u, t.now())
	return true
}

// User возвращает копию записи
func (t *Tracker) User(id string) (models.TrackedUser, bool) {
	var out models.TrackedUser
	ok := t.view(id, func(u *models.TrackedUser, _ time.Time) { out = u.Clone() })
	return out, ok
}

// TotalTime возвращает накопленное время с учетом текущего отрезка
func (t *Tracker) TotalTime(id string) float64 {
	var total float64
	t.view(id, func(u *models.TrackedUser, now time.Time) { total = u.Total(now) })
	return total
}

func (t *Tracker) State(id string) (models.State, bool) {
	var state models.State
	ok := t.view(id, func(u *models.TrackedUser, _ time.Time) { state = u.State })
	return state, ok
}

func (t *Tracker) PauseCount(id string) int {
	var n int
	t.view(id, func(u *models.TrackedUser, _ time.Time) { n = u.PauseCount })
	return n
}

// PausedFor возвращает длительность текущей паузы в секундах
func (t *Tracker) PausedFor(id string) float64 {
	var d float64
	t.view(id, func(u *models.TrackedUser, now time.Time) { d = u.PausedFor(now) })
	return d
}

func (t *Tracker) IDs() []string {
	t.mu.RLock()
	ids := make([]string, 0, len(t.users))
	for id := range t.users {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// ActiveIDs возвращает пользователей с идущим временем
func (t *Tracker) ActiveIDs() []string {
	t.mu.RLock()
	ids := make([]string, 0, len(t.active))
	for id, a := range t.active {
		if a {
			ids = append(ids, id)
		}
	}
	t.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Users возвращает копии всех записей, отсортированные по имени
func (t *Tracker) Users() []models.TrackedUser {
	var out []models.TrackedUser
	for _, id := range t.IDs() {
		if u, ok := t.User(id); ok {
			out = append(out, u)
		}
	}
	sortByName(out)
	return out
}

// InitiatedBy возвращает пользователей, чье время запустил админ
func (t *Tracker) InitiatedBy(adminID string) []models.TrackedUser {
	var out []models.TrackedUser
	for _, u := range t.Users() {
		if u.Initiator != nil && u.Initiator.AdminID == adminID {
			out = append(out, u)
		}
	}
	return out
}

func sortByName(users []models.TrackedUser) {
	sort.SliceStable(users, func(i, j int) bool {
		return strings.ToLower(users[i].DisplayName) < strings.ToLower(users[j].DisplayName)
	})
}
