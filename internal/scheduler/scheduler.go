// Package scheduler периодически ищет пройденные часовые рубежи и активирует предрегистрации.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"tempo-bot/internal/attendance"
	"tempo-bot/internal/config"
	"tempo-bot/internal/credits"
	"tempo-bot/internal/logger"
	"tempo-bot/internal/metrics"
	"tempo-bot/internal/models"
	"tempo-bot/internal/notify"
	"tempo-bot/internal/prereg"
	"tempo-bot/internal/tracker"
	"tempo-bot/internal/utils"
)

const (
	checkCatchUp = "catch_up"
	checkLive    = "live"
)

// MembershipResolver сообщает уровень участника
type MembershipResolver interface {
	Resolve(ctx context.Context, userID string) (models.Membership, error)
}

// Notifier ставит уведомление в очередь отправки
type Notifier interface {
	Notify(n notify.Notification) bool
}

type Deps struct {
	Tracker  *tracker.Tracker
	Ledger   *attendance.Ledger
	Queue    *prereg.Queue
	Members  MembershipResolver
	Notifier Notifier
	Policy   credits.Policy
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

type Scheduler struct {
	tracker  *tracker.Tracker
	ledger   *attendance.Ledger
	queue    *prereg.Queue
	members  MembershipResolver
	notifier Notifier
	policy   credits.Policy
	cfg      config.Scheduler
	loc      *time.Location
	logger   logger.Logger
	now      func() time.Time

	ticks atomic.Int64

	activationMu  sync.Mutex
	cooldownUntil time.Time
}

type claim struct {
	userID        string
	userName      string
	hours         int
	total         float64
	recipientID   string
	recipientName string
	hasRecipient  bool
}

func New(deps Deps, cfg config.Scheduler, loc *time.Location, log logger.Logger, opts ...Option) *Scheduler {
	if cfg.MilestoneCheckInterval <= 0 {
		cfg.MilestoneCheckInterval = 5 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.UserTimeout <= 0 {
		cfg.UserTimeout = 15 * time.Second
	}
	if cfg.ActivationPollInterval <= 0 {
		cfg.ActivationPollInterval = 30 * time.Second
	}
	if cfg.ActivationCooldown <= 0 {
		cfg.ActivationCooldown = 2 * time.Minute
	}
	if loc == nil {
		loc = utils.LoadLocation("")
	}

	s := &Scheduler{
		tracker:  deps.Tracker,
		ledger:   deps.Ledger,
		queue:    deps.Queue,
		members:  deps.Members,
		notifier: deps.Notifier,
		policy:   deps.Policy,
		cfg:      cfg,
		loc:      loc,
		logger:   log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run запускает цикл рубежей и цикл активации до отмены ctx
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Infof("Scheduler started: milestone interval %s, activation at %02d:%02d",
		s.cfg.MilestoneCheckInterval, s.cfg.ActivationHour, s.cfg.ActivationMinute)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.loop(ctx, s.cfg.MilestoneCheckInterval, s.Tick) })
	g.Go(func() error {
		return s.loop(ctx, s.cfg.ActivationPollInterval, func(ctx context.Context) { s.CheckActivation(ctx) })
	})
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// Tick - один цикл: догоняющая проверка всех пользователей на каждом тике,
// живая проверка активных - на каждом LiveCheckEvery-м
func (s *Scheduler) Tick(ctx context.Context) {
	n := s.ticks.Add(1)
	s.scan(ctx, checkCatchUp, s.tracker.IDs())

	every := int64(s.cfg.LiveCheckEvery)
	if every <= 1 || n%every == 0 {
		s.scan(ctx, checkLive, s.tracker.ActiveIDs())
	}
}

func (s *Scheduler) scan(ctx context.Context, check string, ids []string) {
	if len(ids) == 0 {
		return
	}
	if limit := s.cfg.MaxUsersPerCycle; limit > 0 && len(ids) > limit {
		s.logger.Warnf("Too many users for %s check (%d), processing first %d", check, len(ids), limit)
		ids = ids[:limit]
	}

	started := time.Now()
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			s.CheckUser(ctx, id, check == checkLive)
			return nil
		})
	}
	g.Wait()
	metrics.ObserveCycle(check, time.Since(started))
}

// CheckUser проверяет одного пользователя. Пройденный рубеж отмечается и сессия
// останавливается атомарно, поэтому каждый рубеж засчитывается ровно один раз.
func (s *Scheduler) CheckUser(ctx context.Context, id string, live bool) (claimed bool) {
	log := s.logger.WithField("user_id", id)
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Panic while checking milestones: %v", r)
			claimed = false
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.UserTimeout)
	defer cancel()

	membership, err := s.members.Resolve(ctx, id)
	if err != nil {
		log.Debugf("Failed to resolve membership: %v", err)
		membership = models.Membership{}
	}

	var c claim
	claimed = s.tracker.Mutate(id, func(u *models.TrackedUser, now time.Time) bool {
		segment := u.Elapsed(now)
		if live && (!u.IsActive() || segment < HourSeconds) {
			return false
		}
		total := u.Total(now)
		det, ok := Detect(total, u.HasMilestone, segment, live)
		if !ok {
			return false
		}

		u.MarkMilestones(det.Milestones...)
		u.Stop(now)
		if membership.ExtendedTime {
			u.MilestoneCompleted = true
		}

		c = claim{userID: id, userName: u.DisplayName, hours: det.Hours, total: total}
		c.recipientID, c.recipientName, c.hasRecipient = u.Recipient()
		return true
	})
	if !claimed {
		return false
	}

	check := checkCatchUp
	if live {
		check = checkLive
	}
	metrics.RecordMilestone(check)
	log.WithField("hours", c.hours).Infof("Milestone reached by %s, time stopped", c.userName)

	s.notifier.Notify(notify.Notification{
		Kind:          notify.KindMilestone,
		UserID:        c.userID,
		UserName:      c.userName,
		Hours:         c.hours,
		TotalSeconds:  c.total,
		RecipientName: c.recipientName,
	})
	s.creditAttendance(ctx, c)
	return true
}

func (s *Scheduler) creditAttendance(ctx context.Context, c claim) {
	log := s.logger.WithField("user_id", c.userID)
	if !c.hasRecipient {
		metrics.RecordAttendance("no_recipient")
		log.Debug("No linked admin or initiator, attendance not credited")
		return
	}
	log = log.WithField("admin_id", c.recipientID)

	membership, err := s.members.Resolve(ctx, c.recipientID)
	if err != nil {
		metrics.RecordAttendance("error")
		log.Warnf("Failed to resolve admin membership: %v", err)
		return
	}
	if !s.policy.EligibleForAttendance(membership.Tier) {
		metrics.RecordAttendance("ineligible")
		log.Debugf("Admin tier %s does not earn attendance", membership.Tier)
		return
	}
	if !s.ledger.AddAttendance(c.recipientID, c.recipientName, 1) {
		metrics.RecordAttendance("capped")
		log.Info("Attendance limit reached, nothing credited")
		return
	}
	metrics.RecordAttendance("granted")

	s.notifier.Notify(notify.Notification{
		Kind:          notify.KindAttendance,
		UserID:        c.userID,
		UserName:      c.userName,
		RecipientID:   c.recipientID,
		RecipientName: c.recipientName,
		Attendance:    s.ledger.Info(c.recipientID),
		DailyCap:      s.ledger.DailyCap(),
		WeeklyCap:     s.ledger.WeeklyCap(),
		Tier:          membership.Tier,
		Credits:       s.policy.PerAttendance(membership.Tier),
	})
}

// CheckActivation в момент HH:MM активирует все предрегистрации и делает паузу,
// чтобы не сработать дважды в ту же минуту. После HH:MM остатки очереди удаляются.
func (s *Scheduler) CheckActivation(ctx context.Context) int {
	s.activationMu.Lock()
	defer s.activationMu.Unlock()

	now := s.now().In(s.loc)
	if now.Before(s.cooldownUntil) {
		return 0
	}

	at := utils.TimeOfDay(now, s.loc, s.cfg.ActivationHour, s.cfg.ActivationMinute)
	switch {
	case now.Hour() == s.cfg.ActivationHour && now.Minute() == s.cfg.ActivationMinute:
		activated := s.queue.ActivateAll()
		s.cooldownUntil = now.Add(s.cfg.ActivationCooldown)
		s.logger.Infof("Activated %d preregistrations at %s", len(activated), now.Format("15:04"))
		if len(activated) > 0 {
			s.notifier.Notify(notify.Notification{Kind: notify.KindActivation, Count: len(activated), UserName: names(activated)})
		}
		return len(activated)
	case now.After(at):
		if n := s.queue.CleanExpired(); n > 0 {
			s.logger.Infof("Removed %d expired preregistrations", n)
		}
	}
	return 0
}

func names(entries []models.PreregistrationEntry) string {
	if len(entries) == 1 {
		return entries[0].DisplayName
	}
	return fmt.Sprintf("%d usuarios", len(entries))
}
