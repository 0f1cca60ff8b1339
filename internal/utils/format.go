package utils

import (
	"fmt"
	"strings"
)

// FormatDuration выводит длительность в виде "1 Hora, 5 Minutos, 3 Segundos".
// Секунды показываются, только если нет часов и минут или они ненулевые.
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		return "0 Segundos"
	}
	total := int64(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, plural(hours, "Hora", "Horas"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "Minuto", "Minutos"))
	}
	if secs > 0 || len(parts) == 0 {
		parts = append(parts, plural(secs, "Segundo", "Segundos"))
	}
	return strings.Join(parts, ", ")
}

// FormatHours выводит часы с одним знаком после запятой
func FormatHours(hours float64) string {
	return fmt.Sprintf("%.1f", hours)
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
