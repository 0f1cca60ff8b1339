package bot

import (
	"context"
	"fmt"

	"tempo-bot/internal/models"
	"tempo-bot/internal/notify"
	"tempo-bot/internal/utils"
)

// startTime запускает время или, до часа активации, ставит пользователя в очередь
func (b *Bot) startTime(ctx context.Context, target, actor Member) string {
	switch state, _ := b.core.Tracker.State(target.ID); state {
	case models.StatePaused:
		return fmt.Sprintf("❌ El tiempo de %s está pausado. Usa /despausar_tiempo.", target.Name)
	case models.StateActive:
		return fmt.Sprintf("⚠️ El tiempo de %s ya está corriendo.", target.Name)
	}

	membership, err := b.core.Members.Resolve(ctx, target.ID)
	if err != nil {
		b.logger.WithField("user_id", target.ID).Warnf("Failed to resolve membership: %v", err)
	}
	if total := b.core.Tracker.TotalTime(target.ID); b.core.Policy.ExceedsAllowance(total, membership) {
		return fmt.Sprintf("❌ %s ya alcanzó su límite de %s horas (%s).",
			target.Name, utils.FormatHours(b.core.Policy.Allowance(membership)), utils.FormatDuration(total))
	}

	now := b.now().In(b.loc)
	activation := utils.TimeOfDay(now, b.loc, b.config.Scheduler.ActivationHour, b.config.Scheduler.ActivationMinute)
	if now.Before(activation) {
		if !b.core.Queue.Preregister(target.ID, target.Name, actor.ID, actor.Name) {
			return fmt.Sprintf("⚠️ %s ya está prerregistrado.", target.Name)
		}
		return fmt.Sprintf("📝 %s quedó prerregistrado. El tiempo iniciará a las %s.", target.Name, activation.Format("15:04"))
	}

	initiator := models.Initiator{AdminID: actor.ID, AdminName: actor.Name, Timestamp: now}
	if !b.core.Tracker.StartWithInitiator(target.ID, target.Name, initiator) {
		return fmt.Sprintf("❌ No se pudo iniciar el tiempo de %s.", target.Name)
	}
	b.core.Queue.Remove(target.ID)
	reply := fmt.Sprintf("⏱️ Tiempo iniciado para %s por %s.", target.Name, actor.Name)

	// Админ с ролью посещений автоматически получает связь
	actorMembership, err := b.core.Members.Resolve(ctx, actor.ID)
	if err == nil && b.core.Policy.EligibleForAttendance(actorMembership.Tier) {
		if b.core.Tracker.Link(target.ID, actor.ID, actor.Name) {
			b.core.Notifier.Notify(notify.Notification{
				Kind:      notify.KindAutoLink,
				UserID:    target.ID,
				UserName:  target.Name,
				ActorName: actor.Name,
			})
			reply += fmt.Sprintf("\n🔗 Vinculado automáticamente a %s.", actor.Name)
		}
	}
	return reply
}

func (b *Bot) pauseTime(target, actor Member) string {
	res, ok := b.core.Tracker.Pause(target.ID)
	if !ok {
		return b.stateError(target)
	}

	maxPauses := b.config.Limits.MaxPauses
	if res.AutoCancelled {
		b.core.Notifier.Notify(notify.Notification{
			Kind:         notify.KindAutoCancellation,
			UserID:       target.ID,
			UserName:     res.DisplayName,
			TotalSeconds: res.TotalTime,
			PauseCount:   res.PauseCount,
			MaxPauses:    maxPauses,
		})
		return fmt.Sprintf("🚫 %s alcanzó %d pausas. Su tiempo fue cancelado.", target.Name, res.PauseCount)
	}

	b.core.Notifier.Notify(notify.Notification{
		Kind:         notify.KindPause,
		UserID:       target.ID,
		UserName:     res.DisplayName,
		ActorName:    actor.Name,
		TotalSeconds: res.TotalTime,
		PauseCount:   res.PauseCount,
		MaxPauses:    maxPauses,
	})
	return fmt.Sprintf("⏸️ Tiempo pausado para %s (pausa %d/%d).", target.Name, res.PauseCount, maxPauses)
}

func (b *Bot) unpauseTime(target, actor Member) string {
	paused := b.core.Tracker.PausedFor(target.ID)
	if !b.core.Tracker.Resume(target.ID) {
		return b.stateError(target)
	}
	total := b.core.Tracker.TotalTime(target.ID)

	b.core.Notifier.Notify(notify.Notification{
		Kind:          notify.KindUnpause,
		UserID:        target.ID,
		UserName:      target.Name,
		ActorName:     actor.Name,
		PausedSeconds: paused,
		TotalSeconds:  total,
	})
	return fmt.Sprintf("▶️ Tiempo reanudado para %s. Estuvo pausado %s.", target.Name, utils.FormatDuration(paused))
}

func (b *Bot) stopTime(target Member) string {
	record, ok := b.core.Tracker.Stop(target.ID)
	if !ok {
		return b.stateError(target)
	}
	return fmt.Sprintf("⏹️ Tiempo detenido para %s. Sesión: %s. Total: %s.",
		target.Name, utils.FormatDuration(record.Duration), utils.FormatDuration(b.core.Tracker.TotalTime(target.ID)))
}

func (b *Bot) cancelTime(target, actor Member) string {
	total := b.core.Tracker.TotalTime(target.ID)
	removed := b.core.Queue.Remove(target.ID)
	if !b.core.Tracker.Cancel(target.ID) {
		if removed {
			return fmt.Sprintf("🗑️ Prerregistro de %s cancelado.", target.Name)
		}
		return fmt.Sprintf("❌ %s no tiene tiempo registrado.", target.Name)
	}

	b.core.Notifier.Notify(notify.Notification{
		Kind:         notify.KindCancellation,
		UserID:       target.ID,
		UserName:     target.Name,
		ActorName:    actor.Name,
		TotalSeconds: total,
	})
	return fmt.Sprintf("🚫 Tiempo cancelado para %s (%s).", target.Name, utils.FormatDuration(total))
}

func (b *Bot) addMinutes(target Member, minutes int) string {
	if minutes <= 0 {
		return "❌ La cantidad de minutos debe ser positiva."
	}
	if !b.core.Tracker.AddMinutes(target.ID, minutes) {
		return fmt.Sprintf("❌ %s no tiene tiempo registrado.", target.Name)
	}
	return fmt.Sprintf("➕ Se sumaron %d minutos a %s. Total: %s.",
		minutes, target.Name, utils.FormatDuration(b.core.Tracker.TotalTime(target.ID)))
}

func (b *Bot) subtractMinutes(target Member, minutes int) string {
	if minutes <= 0 {
		return "❌ La cantidad de minutos debe ser positiva."
	}
	if !b.core.Tracker.SubtractMinutes(target.ID, minutes) {
		return fmt.Sprintf("❌ %s no tiene tiempo registrado.", target.Name)
	}
	return fmt.Sprintf("➖ Se restaron %d minutos a %s. Total: %s.",
		minutes, target.Name, utils.FormatDuration(b.core.Tracker.TotalTime(target.ID)))
}

func (b *Bot) resetTime(target Member) string {
	if !b.core.Tracker.Reset(target.ID) {
		return fmt.Sprintf("❌ %s no tiene tiempo registrado.", target.Name)
	}
	return fmt.Sprintf("🔄 Tiempo de %s reiniciado.", target.Name)
}

func (b *Bot) resetAll() string {
	n := b.core.Tracker.ResetAll()
	return fmt.Sprintf("🔄 Se reiniciaron los tiempos de %d usuarios.", n)
}

func (b *Bot) linkTime(target, actor Member) string {
	if b.core.Tracker.Link(target.ID, actor.ID, actor.Name) {
		return fmt.Sprintf("🔗 Las asistencias de %s ahora son para %s.", target.Name, actor.Name)
	}
	if link, ok := b.core.Tracker.LinkedTo(target.ID); ok {
		return fmt.Sprintf("⚠️ %s ya está vinculado a %s. Usa /desligar_tiempo primero.", target.Name, link.AdminName)
	}
	return fmt.Sprintf("❌ El tiempo de %s no está corriendo.", target.Name)
}

func (b *Bot) unlinkTime(target Member) string {
	if !b.core.Tracker.Unlink(target.ID) {
		return fmt.Sprintf("⚠️ %s no está vinculado.", target.Name)
	}
	return fmt.Sprintf("✂️ Vinculación de %s eliminada.", target.Name)
}

func (b *Bot) addWeeklyAttendance(target Member, qty int) string {
	if !b.core.Ledger.AddManualAttendance(target.ID, target.Name, qty) {
		return "❌ La cantidad debe estar entre 1 y 15."
	}
	info := b.core.Ledger.Info(target.ID)
	return fmt.Sprintf("✅ Se sumaron %d asistencias semanales a %s. Semana: %d, Total: %d.", qty, target.Name, info.Weekly, info.Total)
}

func (b *Bot) addDailyAttendance(target Member, qty int) string {
	if !b.core.Ledger.AddDailyManualAttendance(target.ID, target.Name, qty) {
		return fmt.Sprintf("❌ No se pueden sumar %d asistencias hoy a %s (máximo %d por día).", qty, target.Name, b.core.Ledger.DailyCap())
	}
	info := b.core.Ledger.Info(target.ID)
	return fmt.Sprintf("✅ Se sumaron %d asistencias de hoy a %s. Hoy: %d/%d.", qty, target.Name, info.Daily, b.core.Ledger.DailyCap())
}

func (b *Bot) removePreregistration(target Member) string {
	if !b.core.Queue.Remove(target.ID) {
		return fmt.Sprintf("⚠️ %s no está prerregistrado.", target.Name)
	}
	return fmt.Sprintf("🗑️ Prerregistro de %s eliminado.", target.Name)
}

func (b *Bot) stateError(target Member) string {
	state, ok := b.core.Tracker.State(target.ID)
	switch {
	case !ok:
		return fmt.Sprintf("❌ %s no tiene tiempo registrado.", target.Name)
	case state == models.StatePaused:
		return fmt.Sprintf("⚠️ El tiempo de %s está pausado.", target.Name)
	case state == models.StateActive:
		return fmt.Sprintf("⚠️ El tiempo de %s ya está corriendo.", target.Name)
	default:
		return fmt.Sprintf("⚠️ El tiempo de %s no está corriendo.", target.Name)
	}
}
