// Package notify доставляет уведомления в каналы сообщества с повторами и аварийным сообщением.
package notify

import (
	"context"

	"github.com/cenkalti/backoff/v4"

	"tempo-bot/internal/models"
)

// Kind - тип уведомления, определяет канал и текст
type Kind string

const (
	KindMilestone        Kind = "milestone"
	KindPause            Kind = "pause"
	KindUnpause          Kind = "unpause"
	KindCancellation     Kind = "cancellation"
	KindAutoCancellation Kind = "auto_cancellation"
	KindAttendance       Kind = "attendance"
	KindAutoLink         Kind = "auto_link"
	KindActivation       Kind = "activation"
)

// Notification - данные для одного сообщения
type Notification struct {
	Kind          Kind
	UserID        string
	UserName      string
	ActorName     string
	Hours         int
	TotalSeconds  float64
	PausedSeconds float64
	PauseCount    int
	MaxPauses     int
	RecipientID   string
	RecipientName string
	Attendance    models.AttendanceInfo
	DailyCap      int
	WeeklyCap     int
	Tier          models.Tier
	Credits       int
	Count         int
	Emergency     bool
}

// Sender отправляет одно уведомление. Ошибки, обернутые Permanent, не повторяются.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Permanent помечает ошибку как неисправимую повтором
func Permanent(err error) error {
	return backoff.Permanent(err)
}
