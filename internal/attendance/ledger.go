// Package attendance ведет учет посещений с дневным и недельным лимитами.
package attendance

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
	"tempo-bot/internal/utils"
)

const persistTimeout = 10 * time.Second

// MaxManualWeekly - максимум посещений, добавляемых вручную за раз
const MaxManualWeekly = 15

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithCaps задает дневной и недельный лимиты
func WithCaps(daily, weekly int) Option {
	return func(l *Ledger) {
		if daily > 0 {
			l.dailyCap = daily
		}
		if weekly > 0 {
			l.weeklyCap = weekly
		}
	}
}

// Ledger хранит записи посещений. Все операции сериализуются одним мьютексом.
type Ledger struct {
	store     database.Store
	logger    logger.Logger
	loc       *time.Location
	now       func() time.Time
	dailyCap  int
	weeklyCap int

	mu      sync.Mutex
	records map[string]*models.AttendanceRecord
	// raw - испорченные записи, которые переписываются без изменений
	raw map[string]json.RawMessage
}

func New(ctx context.Context, store database.Store, log logger.Logger, loc *time.Location, opts ...Option) *Ledger {
	if loc == nil {
		loc = utils.LoadLocation("")
	}
	l := &Ledger{
		store:     store,
		logger:    log,
		loc:       loc,
		now:       time.Now,
		dailyCap:  3,
		weeklyCap: 15,
		records:   make(map[string]*models.AttendanceRecord),
		raw:       make(map[string]json.RawMessage),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.load(ctx)
	return l
}

func (l *Ledger) DailyCap() int  { return l.dailyCap }
func (l *Ledger) WeeklyCap() int { return l.weeklyCap }

func (l *Ledger) load(ctx context.Context) {
	docs, err := l.store.Load(ctx, database.CollectionAttendance)
	if err != nil {
		l.logger.Errorf("Failed to load attendance records, starting empty: %v", err)
		return
	}
	records, failed := database.Decode[models.AttendanceRecord](docs)
	for id, err := range failed {
		l.logger.WithField("user_id", id).Warnf("Skipping malformed attendance record: %v", err)
		l.raw[id] = docs[id]
	}
	for id, r := range records {
		r := r
		if r.ID == "" {
			r.ID = id
		}
		if r.DailyCounts == nil {
			r.DailyCounts = make(map[string]int)
		}
		l.records[id] = &r
	}
	l.logger.Infof("Loaded %d attendance records", len(records))
}

// persistLocked вызывается под l.mu
func (l *Ledger) persistLocked() {
	docs, err := database.Encode(l.records)
	if err != nil {
		l.logger.Errorf("Failed to encode attendance records: %v", err)
		return
	}
	for id, raw := range l.raw {
		docs[id] = raw
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := l.store.Replace(ctx, database.CollectionAttendance, docs); err != nil {
		l.logger.Errorf("Failed to save attendance records: %v", err)
		metrics.RecordPersistFailure(string(database.CollectionAttendance))
	}
}

func (l *Ledger) recordLocked(id, name string) *models.AttendanceRecord {
	r, ok := l.records[id]
	if !ok {
		r = &models.AttendanceRecord{ID: id, DailyCounts: make(map[string]int)}
		l.records[id] = r
		delete(l.raw, id)
	}
	if name != "" {
		r.DisplayName = name
	}
	return r
}

func (l *Ledger) weeklyLocked(r *models.AttendanceRecord, now time.Time) int {
	if r == nil {
		return 0
	}
	sum := r.ManualWeeklyBonus
	for _, key := range utils.WeekdayKeys(now, l.loc) {
		sum += r.DailyCounts[key]
	}
	return sum
}

// AddAttendance начисляет посещения, урезая количество до дневного и недельного лимитов.
// Возвращает false, если лимит уже исчерпан.
func (l *Ledger) AddAttendance(id, name string, count int) bool {
	if count <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	today := utils.DateKey(now, l.loc)
	existing := l.records[id]

	daily := 0
	if existing != nil {
		daily = existing.DailyCounts[today]
	}
	if daily >= l.dailyCap {
		return false
	}
	weekly := l.weeklyLocked(existing, now)
	if weekly >= l.weeklyCap {
		return false
	}

	grant := count
	if daily+grant > l.dailyCap {
		grant = l.dailyCap - daily
	}
	if weekly+grant > l.weeklyCap {
		grant = l.weeklyCap - weekly
	}
	if grant <= 0 {
		return false
	}

	r := l.recordLocked(id, name)
	r.DailyCounts[today] += grant
	r.TotalAttendance += grant
	l.persistLocked()

	l.logger.WithField("user_id", id).Infof("Granted %d attendance (daily %d, weekly %d)", grant, daily+grant, weekly+grant)
	return true
}

// AddManualAttendance добавляет недельный бонус (1..15), не трогая дневной счетчик
func (l *Ledger) AddManualAttendance(id, name string, quantity int) bool {
	if quantity < 1 || quantity > MaxManualWeekly {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	r := l.recordLocked(id, name)
	r.ManualWeeklyBonus += quantity
	r.TotalAttendance += quantity
	l.persistLocked()
	return true
}

// AddDailyManualAttendance добавляет посещения за сегодня в пределах дневного лимита
func (l *Ledger) AddDailyManualAttendance(id, name string, quantity int) bool {
	if quantity < 1 || quantity > l.dailyCap {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	today := utils.DateKey(l.now(), l.loc)
	if r := l.records[id]; r != nil && r.DailyCounts[today]+quantity > l.dailyCap {
		return false
	}

	r := l.recordLocked(id, name)
	r.DailyCounts[today] += quantity
	r.TotalAttendance += quantity
	l.persistLocked()
	return true
}

func (l *Ledger) Daily(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.records[id]
	if r == nil {
		return 0
	}
	return r.DailyCounts[utils.DateKey(l.now(), l.loc)]
}

// Weekly возвращает сумму посещений с понедельника по пятницу плюс ручной бонус
func (l *Ledger) Weekly(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.weeklyLocked(l.records[id], l.now())
}

func (l *Ledger) Total(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r := l.records[id]; r != nil {
		return r.TotalAttendance
	}
	return 0
}

// Info возвращает сводку; для неизвестного пользователя все нули
func (l *Ledger) Info(id string) models.AttendanceInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.records[id]
	if r == nil {
		return models.AttendanceInfo{}
	}
	now := l.now()
	return models.AttendanceInfo{
		Daily:  r.DailyCounts[utils.DateKey(now, l.loc)],
		Weekly: l.weeklyLocked(r, now),
		Total:  r.TotalAttendance,
	}
}

// Records возвращает копии всех записей, отсортированные по имени
func (l *Ledger) Records() []models.AttendanceRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.AttendanceRecord, 0, len(l.records))
	for _, r := range l.records {
		c := *r
		c.DailyCounts = make(map[string]int, len(r.DailyCounts))
		for k, v := range r.DailyCounts {
			c.DailyCounts[k] = v
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out
}

// ResetAll удаляет все записи посещений, включая испорченные
func (l *Ledger) ResetAll() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.records)
	l.records = make(map[string]*models.AttendanceRecord)
	l.raw = make(map[string]json.RawMessage)
	l.persistLocked()
	return n
}

// ResetWeeklyBonus обнуляет ручные недельные бонусы
func (l *Ledger) ResetWeeklyBonus() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, r := range l.records {
		if r.ManualWeeklyBonus != 0 {
			r.ManualWeeklyBonus = 0
			n++
		}
	}
	if n > 0 {
		l.persistLocked()
	}
	return n
}
