package notify

import (
	"fmt"
	"strings"

	"tempo-bot/internal/utils"
)

// Text возвращает текст уведомления
func (n Notification) Text() string {
	if n.Emergency {
		return n.emergencyText()
	}

	var b strings.Builder
	switch n.Kind {
	case KindMilestone:
		fmt.Fprintf(&b, "⏰ ¡%s completó %s!\n", n.UserName, hoursLabel(n.Hours))
		fmt.Fprintf(&b, "Tiempo total: %s", utils.FormatDuration(n.TotalSeconds))
		if n.RecipientName != "" {
			fmt.Fprintf(&b, "\nAsistencia para: %s", n.RecipientName)
		}
	case KindPause:
		fmt.Fprintf(&b, "⏸️ Tiempo pausado para %s\n", n.UserName)
		writeActor(&b, "Pausado por", n.ActorName)
		fmt.Fprintf(&b, "Tiempo acumulado: %s\n", utils.FormatDuration(n.TotalSeconds))
		fmt.Fprintf(&b, "Pausas: %d/%d", n.PauseCount, n.MaxPauses)
	case KindUnpause:
		fmt.Fprintf(&b, "▶️ Tiempo reanudado para %s\n", n.UserName)
		writeActor(&b, "Reanudado por", n.ActorName)
		fmt.Fprintf(&b, "Duración de la pausa: %s\n", utils.FormatDuration(n.PausedSeconds))
		fmt.Fprintf(&b, "Tiempo acumulado: %s", utils.FormatDuration(n.TotalSeconds))
	case KindCancellation:
		fmt.Fprintf(&b, "🚫 Tiempo cancelado para %s\n", n.UserName)
		writeActor(&b, "Cancelado por", n.ActorName)
		fmt.Fprintf(&b, "Tiempo perdido: %s", utils.FormatDuration(n.TotalSeconds))
	case KindAutoCancellation:
		fmt.Fprintf(&b, "🚫 Tiempo cancelado automáticamente para %s\n", n.UserName)
		fmt.Fprintf(&b, "Motivo: alcanzó el máximo de %d pausas\n", n.MaxPauses)
		fmt.Fprintf(&b, "Tiempo perdido: %s", utils.FormatDuration(n.TotalSeconds))
	case KindAttendance:
		fmt.Fprintf(&b, "✅ Asistencia registrada para %s\n", n.RecipientName)
		fmt.Fprintf(&b, "Por el tiempo de: %s\n", n.UserName)
		fmt.Fprintf(&b, "Hoy: %d/%d · Semana: %d/%d · Total: %d", n.Attendance.Daily, n.DailyCap, n.Attendance.Weekly, n.WeeklyCap, n.Attendance.Total)
		if n.Credits > 0 {
			fmt.Fprintf(&b, "\nCréditos por asistencia (%s): %d", n.Tier.DisplayName(), n.Credits)
		}
	case KindAutoLink:
		fmt.Fprintf(&b, "🔗 Tiempo de %s vinculado automáticamente a %s", n.UserName, n.ActorName)
	case KindActivation:
		fmt.Fprintf(&b, "🚀 Prerregistros activados: %d", n.Count)
	default:
		fmt.Fprintf(&b, "Aviso para %s", n.UserName)
	}
	return b.String()
}

func (n Notification) emergencyText() string {
	switch n.Kind {
	case KindMilestone:
		return fmt.Sprintf("⚠️ %s: %s completada(s)", n.UserName, hoursLabel(n.Hours))
	case KindAttendance:
		return fmt.Sprintf("⚠️ Asistencia para %s (tiempo de %s)", n.RecipientName, n.UserName)
	default:
		return fmt.Sprintf("⚠️ Aviso (%s) para %s", n.Kind, n.UserName)
	}
}

func hoursLabel(h int) string {
	if h == 1 {
		return "1 hora"
	}
	return fmt.Sprintf("%d horas", h)
}

func writeActor(b *strings.Builder, label, name string) {
	if name != "" {
		fmt.Fprintf(b, "%s: %s\n", label, name)
	}
}
