package models

import (
	"fmt"
	"strings"
	"time"
)

// Tier представляет уровень членства в сообществе (по возрастанию привилегий)
type Tier int

const (
	TierNormal Tier = iota
	TierMedios
	TierGold
	TierAltos
	TierImperiales
	TierNobleza
	TierMonarquia
	TierSupremos
)

var tierKeys = [...]string{"normal", "medios", "gold", "altos", "imperiales", "nobleza", "monarquia", "supremos"}

var tierNames = [...]string{"Sin cargo", "Medios", "Gold", "Altos", "Imperiales", "Nobleza", "Monarquía", "Supremos"}

// Tiers возвращает все уровни от младшего к старшему
func Tiers() []Tier {
	return []Tier{TierNormal, TierMedios, TierGold, TierAltos, TierImperiales, TierNobleza, TierMonarquia, TierSupremos}
}

func (t Tier) Valid() bool {
	return t >= TierNormal && t <= TierSupremos
}

func (t Tier) String() string {
	if !t.Valid() {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierKeys[t]
}

// DisplayName возвращает название уровня для сообщений
func (t Tier) DisplayName() string {
	if !t.Valid() {
		return tierNames[TierNormal]
	}
	return tierNames[t]
}

// ParseTier разбирает ключ уровня ("gold", "monarquia", "Monarquía")
func ParseTier(s string) (Tier, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "í", "i")
	if key == "" || key == "none" {
		return TierNormal, nil
	}
	for i, k := range tierKeys {
		if k == key {
			return Tier(i), nil
		}
	}
	return TierNormal, fmt.Errorf("unknown tier %q", s)
}

// Membership - то, что внешний слой сообщает о участнике
type Membership struct {
	Tier         Tier
	ExtendedTime bool // роль с расширенным лимитом времени
}

// State - состояние сессии отслеживаемого пользователя
type State string

const (
	StateInactive State = "inactive"
	StateActive   State = "active"
	StatePaused   State = "paused"
)

// Initiator - кто запустил время пользователя
type Initiator struct {
	AdminID   string    `json:"admin_id"`
	AdminName string    `json:"admin_name"`
	Timestamp time.Time `json:"timestamp"`
}

// Link - кому переадресованы посещения за рубежи пользователя
type Link struct {
	AdminID   string    `json:"admin_id"`
	AdminName string    `json:"admin_name"`
	LinkedAt  time.Time `json:"linked_at"`
}

// Segment - непрерывный отрезок активного времени внутри сессии
type Segment struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Seconds возвращает длительность отрезка в секундах
func (s Segment) Seconds() float64 {
	return s.End.Sub(s.Start).Seconds()
}

// SessionRecord - закрытая сессия из истории пользователя
type SessionRecord struct {
	ID       string    `json:"id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Segments []Segment `json:"segments,omitempty"`
	Duration float64   `json:"duration"`
}

// TrackedUser - запись об отслеживании времени участника
type TrackedUser struct {
	ID                 string          `json:"id"`
	DisplayName        string          `json:"name"`
	TotalTime          float64         `json:"total_time"`
	State              State           `json:"state"`
	SessionStartedAt   *time.Time      `json:"last_start,omitempty"`
	PauseStartedAt     *time.Time      `json:"pause_start,omitempty"`
	PauseCount         int             `json:"pause_count"`
	NotifiedMilestones []int64         `json:"notified_milestones"`
	MilestoneCompleted bool            `json:"milestone_completed"`
	Initiator          *Initiator      `json:"time_initiator,omitempty"`
	LinkedTo           *Link           `json:"linked_to,omitempty"`
	Segments           []Segment       `json:"segments,omitempty"`
	Sessions           []SessionRecord `json:"sessions"`
}

// AttendanceRecord - учет посещений участника
type AttendanceRecord struct {
	ID                string         `json:"id"`
	DisplayName       string         `json:"name"`
	DailyCounts       map[string]int `json:"daily_attendance"`
	ManualWeeklyBonus int            `json:"manual_weekly_attendance"`
	TotalAttendance   int            `json:"total_attendance"`
}

// AttendanceInfo - сводка посещений на текущий момент
type AttendanceInfo struct {
	Daily  int `json:"daily"`
	Weekly int `json:"weekly"`
	Total  int `json:"total"`
}

// PreregistrationEntry - заявка на автоматический старт в запланированное время
type PreregistrationEntry struct {
	ID               string    `json:"id"`
	DisplayName      string    `json:"name"`
	RegisteredByID   string    `json:"registered_by_id"`
	RegisteredByName string    `json:"registered_by_name"`
	RegisteredAt     time.Time `json:"registered_at"`
}
