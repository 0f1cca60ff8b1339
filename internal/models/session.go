package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

func (u *TrackedUser) IsActive() bool { return u.State == StateActive }

func (u *TrackedUser) IsPaused() bool { return u.State == StatePaused }

// Begin запускает сессию. Повторный старт активного или приостановленного пользователя запрещен
func (u *TrackedUser) Begin(name string, now time.Time) bool {
	if u.State == StateActive || u.State == StatePaused {
		return false
	}
	if name != "" {
		u.DisplayName = name
	}
	start := now
	u.State = StateActive
	u.SessionStartedAt = &start
	u.PauseStartedAt = nil
	u.Segments = nil
	return true
}

// Pause закрывает текущий отрезок и добавляет его к накопленному времени
func (u *TrackedUser) Pause(now time.Time) bool {
	if u.State != StateActive || u.SessionStartedAt == nil {
		return false
	}
	u.closeSegment(now)
	pausedAt := now
	u.State = StatePaused
	u.PauseStartedAt = &pausedAt
	u.PauseCount++
	return true
}

// Resume открывает новый отрезок после паузы
func (u *TrackedUser) Resume(now time.Time) bool {
	if u.State != StatePaused {
		return false
	}
	start := now
	u.State = StateActive
	u.SessionStartedAt = &start
	u.PauseStartedAt = nil
	return true
}

// Stop завершает активную сессию и сохраняет ее в истории
func (u *TrackedUser) Stop(now time.Time) (SessionRecord, bool) {
	if u.State != StateActive || u.SessionStartedAt == nil {
		return SessionRecord{}, false
	}
	u.closeSegment(now)

	record := SessionRecord{
		ID:       uuid.NewString(),
		Start:    u.Segments[0].Start,
		End:      now,
		Segments: u.Segments,
	}
	for _, seg := range u.Segments {
		record.Duration += seg.Seconds()
	}
	u.Sessions = append(u.Sessions, record)

	u.State = StateInactive
	u.SessionStartedAt = nil
	u.PauseStartedAt = nil
	u.Segments = nil
	return record, true
}

// Reset обнуляет время, счетчики и историю сессий, но оставляет запись
func (u *TrackedUser) Reset() {
	u.TotalTime = 0
	u.State = StateInactive
	u.SessionStartedAt = nil
	u.PauseStartedAt = nil
	u.PauseCount = 0
	u.NotifiedMilestones = nil
	u.MilestoneCompleted = false
	u.Segments = nil
	u.Sessions = nil
}

// Elapsed возвращает длительность текущего отрезка в секундах
func (u *TrackedUser) Elapsed(now time.Time) float64 {
	if u.State != StateActive || u.SessionStartedAt == nil {
		return 0
	}
	d := now.Sub(*u.SessionStartedAt).Seconds()
	if d < 0 {
		return 0
	}
	return d
}

// Total возвращает накопленное время плюс текущий отрезок
func (u *TrackedUser) Total(now time.Time) float64 {
	return u.TotalTime + u.Elapsed(now)
}

// PausedFor возвращает сколько секунд длится текущая пауза
func (u *TrackedUser) PausedFor(now time.Time) float64 {
	if u.State != StatePaused || u.PauseStartedAt == nil {
		return 0
	}
	return now.Sub(*u.PauseStartedAt).Seconds()
}

// AddTime корректирует накопленное время, не опуская его ниже нуля
func (u *TrackedUser) AddTime(seconds float64) {
	u.TotalTime += seconds
	if u.TotalTime < 0 {
		u.TotalTime = 0
	}
}

func (u *TrackedUser) HasMilestone(seconds int64) bool {
	i := sort.Search(len(u.NotifiedMilestones), func(i int) bool { return u.NotifiedMilestones[i] >= seconds })
	return i < len(u.NotifiedMilestones) && u.NotifiedMilestones[i] == seconds
}

// MarkMilestones добавляет рубежи, сохраняя список упорядоченным и без повторов
func (u *TrackedUser) MarkMilestones(seconds ...int64) {
	for _, s := range seconds {
		if u.HasMilestone(s) {
			continue
		}
		u.NotifiedMilestones = append(u.NotifiedMilestones, s)
	}
	sort.Slice(u.NotifiedMilestones, func(i, j int) bool { return u.NotifiedMilestones[i] < u.NotifiedMilestones[j] })
}

// Recipient определяет, кому засчитываются посещения: связанному админу, иначе инициатору
func (u *TrackedUser) Recipient() (id, name string, ok bool) {
	if u.LinkedTo != nil && u.LinkedTo.AdminID != "" {
		return u.LinkedTo.AdminID, u.LinkedTo.AdminName, true
	}
	if u.Initiator != nil && u.Initiator.AdminID != "" {
		return u.Initiator.AdminID, u.Initiator.AdminName, true
	}
	return "", "", false
}

// Clone возвращает глубокую копию записи
func (u *TrackedUser) Clone() TrackedUser {
	c := *u
	if u.SessionStartedAt != nil {
		t := *u.SessionStartedAt
		c.SessionStartedAt = &t
	}
	if u.PauseStartedAt != nil {
		t := *u.PauseStartedAt
		c.PauseStartedAt = &t
	}
	if u.Initiator != nil {
		i := *u.Initiator
		c.Initiator = &i
	}
	if u.LinkedTo != nil {
		l := *u.LinkedTo
		c.LinkedTo = &l
	}
	c.NotifiedMilestones = append([]int64(nil), u.NotifiedMilestones...)
	c.Segments = append([]Segment(nil), u.Segments...)
	if u.Sessions != nil {
		c.Sessions = make([]SessionRecord, len(u.Sessions))
		for i, s := range u.Sessions {
			s.Segments = append([]Segment(nil), s.Segments...)
			c.Sessions[i] = s
		}
	}
	return c
}

func (u *TrackedUser) closeSegment(now time.Time) {
	start := *u.SessionStartedAt
	end := now
	if end.Before(start) {
		end = start
	}
	seg := Segment{Start: start, End: end}
	u.Segments = append(u.Segments, seg)
	u.TotalTime += seg.Seconds()
	u.SessionStartedAt = nil
}
