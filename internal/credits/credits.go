// Package credits содержит таблицы кредитов сообщества и лимиты времени по уровням.
package credits

import "tempo-bot/internal/models"

// TimeRate - кредиты за отработанное время для уровней без учета посещений
type TimeRate struct {
	OneHour  int
	TwoHours int
}

// Policy описывает таблицы кредитов и допустимое время
type Policy struct {
	TimeRates              map[models.Tier]TimeRate
	WeeklyRates            map[models.Tier]int
	AttendanceTiers        map[models.Tier]bool
	FixedAllowanceTiers    map[models.Tier]bool
	WeeklyTarget           int
	AllowanceHours         float64
	ExtendedAllowanceHours float64
}

// DefaultPolicy возвращает таблицы, действующие в сообществе
func DefaultPolicy() Policy {
	return Policy{
		TimeRates: map[models.Tier]TimeRate{
			models.TierNormal: {OneHour: 4, TwoHours: 8},
			models.TierMedios: {OneHour: 5, TwoHours: 10},
			models.TierGold:   {OneHour: 6, TwoHours: 12},
		},
		WeeklyRates: map[models.Tier]int{
			models.TierAltos:      43,
			models.TierImperiales: 48,
			models.TierNobleza:    54,
			models.TierMonarquia:  60,
			models.TierSupremos:   70,
		},
		AttendanceTiers: map[models.Tier]bool{
			models.TierAltos:      true,
			models.TierImperiales: true,
			models.TierNobleza:    true,
			models.TierMonarquia:  true,
			models.TierSupremos:   true,
		},
		FixedAllowanceTiers: map[models.Tier]bool{
			models.TierMedios: true,
			models.TierGold:   true,
		},
		WeeklyTarget:           15,
		AllowanceHours:         2.0,
		ExtendedAllowanceHours: 4.0,
	}
}

// EligibleForAttendance - может ли уровень получать посещения за рубежи
func (p Policy) EligibleForAttendance(t models.Tier) bool {
	return p.AttendanceTiers[t]
}

// ForTime возвращает кредиты за время. Уровни с посещениями получают кредиты иначе.
func (p Policy) ForTime(seconds float64, t models.Tier) int {
	if p.AttendanceTiers[t] {
		return 0
	}
	rate, ok := p.TimeRates[t]
	if !ok {
		rate = p.TimeRates[models.TierNormal]
	}
	hours := seconds / 3600
	switch {
	case hours >= 2:
		return rate.TwoHours
	case hours >= 1:
		return rate.OneHour
	default:
		return 0
	}
}

// WeeklyRate возвращает кредиты за полную неделю посещений
func (p Policy) WeeklyRate(t models.Tier) int {
	return p.WeeklyRates[t]
}

// ForAttendance пересчитывает общее число посещений в кредиты:
// полные недели по ставке плюс пропорциональная часть остатка
func (p Policy) ForAttendance(total int, t models.Tier) int {
	rate := p.WeeklyRate(t)
	if rate == 0 || p.WeeklyTarget <= 0 || total <= 0 {
		return 0
	}
	weeks := total / p.WeeklyTarget
	rem := total % p.WeeklyTarget
	return weeks*rate + rem*rate/p.WeeklyTarget
}

// CurrentWeek возвращает кредиты за текущую неделю
func (p Policy) CurrentWeek(weekly int, t models.Tier) int {
	rate := p.WeeklyRate(t)
	if rate == 0 || p.WeeklyTarget <= 0 || weekly <= 0 {
		return 0
	}
	if weekly >= p.WeeklyTarget {
		return rate
	}
	return weekly * rate / p.WeeklyTarget
}

// PerAttendance возвращает кредиты за одно посещение
func (p Policy) PerAttendance(t models.Tier) int {
	if p.WeeklyTarget <= 0 {
		return 0
	}
	return p.WeeklyRate(t) / p.WeeklyTarget
}

// Allowance возвращает допустимое время в часах для участника
func (p Policy) Allowance(m models.Membership) float64 {
	if p.FixedAllowanceTiers[m.Tier] || !m.ExtendedTime {
		return p.AllowanceHours
	}
	return p.ExtendedAllowanceHours
}

// ExceedsAllowance - превышает ли накопленное время лимит участника
func (p Policy) ExceedsAllowance(seconds float64, m models.Membership) bool {
	return seconds/3600 >= p.Allowance(m)
}
