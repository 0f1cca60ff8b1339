package bot

import (
	"context"
	"fmt"
	"strings"

	"tempo-bot/internal/models"
	"tempo-bot/internal/utils"
)

var stateLabels = map[models.State]string{
	models.StateActive:   "▶️ Corriendo",
	models.StatePaused:   "⏸️ Pausado",
	models.StateInactive: "⏹️ Detenido",
}

func (b *Bot) timeReport(ctx context.Context, target Member) string {
	u, ok := b.core.Tracker.User(target.ID)
	if !ok {
		if b.core.Queue.IsPreregistered(target.ID) {
			return fmt.Sprintf("📝 %s está prerregistrado y su tiempo iniciará a las %02d:%02d.",
				target.Name, b.config.Scheduler.ActivationHour, b.config.Scheduler.ActivationMinute)
		}
		return fmt.Sprintf("❌ %s no tiene tiempo registrado.", target.Name)
	}

	membership, _ := b.core.Members.Resolve(ctx, target.ID)
	total := b.core.Tracker.TotalTime(target.ID)

	var sb strings.Builder
	fmt.Fprintf(&sb, "⏱️ Tiempo de %s\n", u.DisplayName)
	fmt.Fprintf(&sb, "Total: %s\n", utils.FormatDuration(total))
	fmt.Fprintf(&sb, "Estado: %s\n", stateLabels[u.State])
	fmt.Fprintf(&sb, "Pausas: %d/%d\n", u.PauseCount, b.config.Limits.MaxPauses)
	fmt.Fprintf(&sb, "Límite: %s horas", utils.FormatHours(b.core.Policy.Allowance(membership)))
	if c := b.core.Policy.ForTime(total, membership.Tier); c > 0 {
		fmt.Fprintf(&sb, "\nCréditos (%s): %d", membership.Tier.DisplayName(), c)
	}
	if u.Initiator != nil {
		fmt.Fprintf(&sb, "\nIniciado por: %s", u.Initiator.AdminName)
	}
	if u.LinkedTo != nil {
		fmt.Fprintf(&sb, "\nVinculado a: %s", u.LinkedTo.AdminName)
	}
	if u.MilestoneCompleted {
		sb.WriteString("\n🏁 Tiempo completado")
	}
	return sb.String()
}

func (b *Bot) attendanceReport(ctx context.Context, target Member) string {
	membership, err := b.core.Members.Resolve(ctx, target.ID)
	if err != nil {
		b.logger.WithField("user_id", target.ID).Warnf("Failed to resolve membership: %v", err)
	}
	if !b.core.Policy.EligibleForAttendance(membership.Tier) {
		return fmt.Sprintf("ℹ️ %s no tiene un cargo con asistencias.", target.Name)
	}

	info := b.core.Ledger.Info(target.ID)
	p := b.core.Policy

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Asistencias de %s (%s)\n", target.Name, membership.Tier.DisplayName())
	fmt.Fprintf(&sb, "Hoy: %d/%d\n", info.Daily, b.core.Ledger.DailyCap())
	fmt.Fprintf(&sb, "Semana: %d/%d\n", info.Weekly, b.core.Ledger.WeeklyCap())
	fmt.Fprintf(&sb, "Total: %d\n", info.Total)
	fmt.Fprintf(&sb, "Créditos por asistencia: %d\n", p.PerAttendance(membership.Tier))
	fmt.Fprintf(&sb, "Créditos de la semana: %d/%d\n", p.CurrentWeek(info.Weekly, membership.Tier), p.WeeklyRate(membership.Tier))
	fmt.Fprintf(&sb, "Créditos totales: %d", p.ForAttendance(info.Total, membership.Tier))
	return sb.String()
}

func (b *Bot) allTimesReport() string {
	users := b.core.Tracker.Users()
	if len(users) == 0 {
		return "📭 No hay tiempos registrados."
	}
	var sb strings.Builder
	sb.WriteString("⏱️ Tiempos registrados\n")
	for _, u := range users {
		fmt.Fprintf(&sb, "\n%s %s: %s", stateLabels[u.State], u.DisplayName, utils.FormatDuration(b.core.Tracker.TotalTime(u.ID)))
	}
	return sb.String()
}

func (b *Bot) initiatedReport(actor Member) string {
	users := b.core.Tracker.InitiatedBy(actor.ID)
	if len(users) == 0 {
		return "📭 No has iniciado el tiempo de ningún usuario."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "👮 Tiempos iniciados por %s\n", actor.Name)
	for _, u := range users {
		fmt.Fprintf(&sb, "\n%s %s: %s", stateLabels[u.State], u.DisplayName, utils.FormatDuration(b.core.Tracker.TotalTime(u.ID)))
		if u.MilestoneCompleted {
			sb.WriteString(" 🏁")
		}
	}
	return sb.String()
}

func (b *Bot) preregistrationsReport() string {
	entries := b.core.Queue.Entries()
	if len(entries) == 0 {
		return "📭 No hay prerregistros pendientes."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📝 Prerregistros (inician a las %02d:%02d)\n", b.config.Scheduler.ActivationHour, b.config.Scheduler.ActivationMinute)
	for _, e := range entries {
		fmt.Fprintf(&sb, "\n• %s (por %s)", e.DisplayName, e.RegisteredByName)
	}
	return sb.String()
}
