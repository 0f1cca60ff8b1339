package tracker

import (
	"time"

	"tempo-bot/internal/models"
)

// Link связывает активную сессию пользователя с админом, которому пойдут посещения.
// Повторная привязка без Unlink запрещена.
func (t *Tracker) Link(id, adminID, adminName string) bool {
	ok := t.Mutate(id, func(u *models.TrackedUser, now time.Time) bool {
		if !u.IsActive() || u.LinkedTo != nil {
			return false
		}
		u.LinkedTo = &models.Link{AdminID: adminID, AdminName: adminName, LinkedAt: now}
		return true
	})
	if ok {
		t.logger.WithFields(map[string]interface{}{"user_id": id, "admin_id": adminID}).Info("Time linked")
	}
	return ok
}

func (t *Tracker) Unlink(id string) bool {
	return t.Mutate(id, func(u *models.TrackedUser, _ time.Time) bool {
		if u.LinkedTo == nil {
			return false
		}
		u.LinkedTo = nil
		return true
	})
}

func (t *Tracker) IsLinked(id string) bool {
	_, ok := t.LinkedTo(id)
	return ok
}

// LinkedTo возвращает текущую привязку пользователя
func (t *Tracker) LinkedTo(id string) (models.Link, bool) {
	var link models.Link
	var ok bool
	t.view(id, func(u *models.TrackedUser, _ time.Time) {
		if u.LinkedTo != nil {
			link, ok = *u.LinkedTo, true
		}
	})
	return link, ok
}

// Recipient возвращает, кому засчитываются посещения пользователя
func (t *Tracker) Recipient(id string) (adminID, adminName string, ok bool) {
	t.view(id, func(u *models.TrackedUser, _ time.Time) {
		adminID, adminName, ok = u.Recipient()
	})
	return adminID, adminName, ok
}
