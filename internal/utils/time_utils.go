package utils

import (
	"time"
)

// DefaultTimezone - часовой пояс сообщества
const DefaultTimezone = "America/Bogota"

const dateLayout = "2006-01-02"

// LoadLocation загружает часовой пояс, при ошибке возвращает фиксированный UTC-5
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		// Fallback на UTC-5 если не удалось загрузить локацию
		return time.FixedZone("COT", -5*60*60)
	}
	return loc
}

// DateKey возвращает дату в формате YYYY-MM-DD в указанном часовом поясе
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateLayout)
}

// WeekdayKeys возвращает даты с понедельника по пятницу недели, содержащей t
func WeekdayKeys(t time.Time, loc *time.Location) []string {
	local := t.In(loc)
	offset := (int(local.Weekday()) + 6) % 7
	keys := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		day := time.Date(local.Year(), local.Month(), local.Day()-offset+i, 12, 0, 0, 0, loc)
		keys = append(keys, day.Format(dateLayout))
	}
	return keys
}

// TimeOfDay возвращает момент HH:MM того же дня в указанном часовом поясе
func TimeOfDay(t time.Time, loc *time.Location, hour, minute int) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
}

// FormatTimestamp форматирует время в RFC3339 в указанном часовом поясе
func FormatTimestamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.RFC3339)
}

// ParseTimestamp парсит строку RFC3339 и переводит в указанный часовой пояс
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}
