package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"tempo-bot/internal/attendance"
	"tempo-bot/internal/config"
	"tempo-bot/internal/credits"
	"tempo-bot/internal/database"
	"tempo-bot/internal/logger"
	"tempo-bot/internal/models"
	"tempo-bot/internal/notify"
	"tempo-bot/internal/prereg"
	"tempo-bot/internal/tracker"
	"tempo-bot/internal/utils"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	adminID  = "100"
	ownerID  = 1
	memberID = "200"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeMembers struct {
	tiers  map[string]models.Membership
	admins map[string]bool
}

func (m fakeMembers) Resolve(_ context.Context, id string) (models.Membership, error) {
	return m.tiers[id], nil
}

func (m fakeMembers) IsAdmin(id string) bool { return m.admins[id] }

type recorder struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recorder) Notify(n notify.Notification) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return true
}

func (r *recorder) last() (notify.Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return notify.Notification{}, false
	}
	return r.sent[len(r.sent)-1], true
}

type testBot struct {
	*Bot
	clock *clock
	notes *recorder
}

// newTestBot собирает бота без Telegram API: команды вызываются напрямую
func newTestBot(t *testing.T, at time.Time, tiers map[string]models.Membership) *testBot {
	t.Helper()
	store, err := database.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	loc := utils.LoadLocation(utils.DefaultTimezone)
	c := &clock{t: at}
	ctx := context.Background()
	log := logger.Discard()

	tr := tracker.New(ctx, store, log, tracker.WithClock(c.Now), tracker.WithMaxPauses(3))
	ledger := attendance.New(ctx, store, log, loc, attendance.WithClock(c.Now))
	queue := prereg.New(ctx, tr, store, log, prereg.WithClock(c.Now))
	notes := &recorder{}

	cfg := &config.Config{OwnerID: ownerID}
	cfg.Scheduler.ActivationHour = 17
	cfg.Limits.MaxPauses = 3

	if tiers == nil {
		tiers = map[string]models.Membership{}
	}
	b := &Bot{
		logger: log,
		config: cfg,
		core: Core{
			Tracker:  tr,
			Ledger:   ledger,
			Queue:    queue,
			Members:  fakeMembers{tiers: tiers, admins: map[string]bool{adminID: true}},
			Notifier: notes,
			Policy:   credits.DefaultPolicy(),
		},
		loc: loc,
		now: c.Now,
	}
	return &testBot{Bot: b, clock: c, notes: notes}
}

// seedTime создает остановленную запись с накопленным временем
func seedTime(t *testing.T, b *testBot, m Member, minutes int) {
	t.Helper()
	if !b.core.Tracker.Start(m.ID, m.Name) {
		t.Fatalf("Failed to start %s", m.ID)
	}
	if _, ok := b.core.Tracker.Stop(m.ID); !ok {
		t.Fatalf("Failed to stop %s", m.ID)
	}
	if minutes > 0 && !b.core.Tracker.AddMinutes(m.ID, minutes) {
		t.Fatalf("Failed to add minutes to %s", m.ID)
	}
}

func evening() time.Time {
	return time.Date(2026, 10, 14, 18, 0, 0, 0, utils.LoadLocation(utils.DefaultTimezone))
}

func morning() time.Time {
	return time.Date(2026, 10, 14, 10, 0, 0, 0, utils.LoadLocation(utils.DefaultTimezone))
}

var (
	admin  = Member{ID: adminID, Name: "@admin"}
	member = Member{ID: memberID, Name: "@member"}
)

func command(from int64, text string) *tgbotapi.Message {
	name := strings.Fields(text)[0]
	return &tgbotapi.Message{
		From:     &tgbotapi.User{ID: from, UserName: "user"},
		Chat:     &tgbotapi.Chat{ID: -1},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}
}

func TestStartTimeBeforeActivationPreregisters(t *testing.T) {
	b := newTestBot(t, morning(), nil)

	reply := b.startTime(context.Background(), member, admin)
	if !strings.Contains(reply, "prerregistrado") || !strings.Contains(reply, "17:00") {
		t.Errorf("Unexpected reply: %s", reply)
	}
	if !b.core.Queue.IsPreregistered(memberID) {
		t.Error("Expected user to be preregistered")
	}
	if _, ok := b.core.Tracker.State(memberID); ok {
		t.Error("Expected no running time before activation")
	}

	reply = b.startTime(context.Background(), member, admin)
	if !strings.Contains(reply, "ya está prerregistrado") {
		t.Errorf("Expected duplicate preregistration to be refused, got: %s", reply)
	}
}

func TestStartTimeAfterActivationStarts(t *testing.T) {
	b := newTestBot(t, evening(), nil)
	b.core.Queue.Preregister(memberID, member.Name, adminID, admin.Name)

	reply := b.startTime(context.Background(), member, admin)
	if !strings.Contains(reply, "Tiempo iniciado") {
		t.Fatalf("Unexpected reply: %s", reply)
	}
	if state, _ := b.core.Tracker.State(memberID); state != models.StateActive {
		t.Errorf("Expected active state, got %s", state)
	}
	if b.core.Queue.IsPreregistered(memberID) {
		t.Error("Expected preregistration to be removed after start")
	}
	u, _ := b.core.Tracker.User(memberID)
	if u.Initiator == nil || u.Initiator.AdminID != adminID {
		t.Errorf("Expected initiator %s, got %+v", adminID, u.Initiator)
	}
	// Обычный админ не получает автоматическую связь
	if b.core.Tracker.IsLinked(memberID) {
		t.Error("Expected no auto link for admin without attendance tier")
	}

	reply = b.startTime(context.Background(), member, admin)
	if !strings.Contains(reply, "ya está corriendo") {
		t.Errorf("Expected running time to be refused, got: %s", reply)
	}
}

func TestStartTimeAutoLinksAttendanceAdmin(t *testing.T) {
	b := newTestBot(t, evening(), map[string]models.Membership{
		adminID: {Tier: models.TierImperiales},
	})

	reply := b.startTime(context.Background(), member, admin)
	if !strings.Contains(reply, "Vinculado automáticamente") {
		t.Errorf("Unexpected reply: %s", reply)
	}
	link, ok := b.core.Tracker.LinkedTo(memberID)
	if !ok || link.AdminID != adminID {
		t.Errorf("Expected link to %s, got %+v", adminID, link)
	}
	n, ok := b.notes.last()
	if !ok || n.Kind != notify.KindAutoLink {
		t.Errorf("Expected auto link notification, got %+v", n)
	}
}

func TestStartTimeRefusesOverAllowance(t *testing.T) {
	b := newTestBot(t, evening(), nil)
	seedTime(t, b, member, 120)

	reply := b.startTime(context.Background(), member, admin)
	if !strings.Contains(reply, "límite") {
		t.Errorf("Expected allowance refusal, got: %s", reply)
	}
	if state, _ := b.core.Tracker.State(memberID); state == models.StateActive {
		t.Error("Expected time not to start")
	}
}

func TestStartTimeExtendedAllowance(t *testing.T) {
	b := newTestBot(t, evening(), map[string]models.Membership{
		memberID: {Tier: models.TierAltos, ExtendedTime: true},
	})
	seedTime(t, b, member, 150)

	reply := b.startTime(context.Background(), member, admin)
	if !strings.Contains(reply, "Tiempo iniciado") {
		t.Errorf("Expected extended member to start, got: %s", reply)
	}
}

func TestPauseLimitCancelsTime(t *testing.T) {
	b := newTestBot(t, evening(), nil)
	b.startTime(context.Background(), member, admin)

	for i := 1; i <= 2; i++ {
		b.clock.Advance(5 * time.Minute)
		reply := b.pauseTime(member, admin)
		if !strings.Contains(reply, "Tiempo pausado") {
			t.Fatalf("Pause %d: unexpected reply: %s", i, reply)
		}
		n, _ := b.notes.last()
		if n.Kind != notify.KindPause || n.PauseCount != i || n.MaxPauses != 3 {
			t.Errorf("Pause %d: unexpected notification %+v", i, n)
		}
		b.clock.Advance(time.Minute)
		b.unpauseTime(member, admin)
	}

	b.clock.Advance(5 * time.Minute)
	reply := b.pauseTime(member, admin)
	if !strings.Contains(reply, "cancelado") {
		t.Errorf("Expected cancellation on third pause, got: %s", reply)
	}
	n, _ := b.notes.last()
	if n.Kind != notify.KindAutoCancellation || n.PauseCount != 3 {
		t.Errorf("Unexpected notification %+v", n)
	}
	if n.TotalSeconds != 900 {
		t.Errorf("Expected 900 seconds tracked, got %v", n.TotalSeconds)
	}
	if _, ok := b.core.Tracker.User(memberID); ok {
		t.Error("Expected record to be removed")
	}
}

func TestUnpauseReportsPausedTime(t *testing.T) {
	b := newTestBot(t, evening(), nil)
	b.startTime(context.Background(), member, admin)
	b.clock.Advance(20 * time.Minute)
	b.pauseTime(member, admin)
	b.clock.Advance(10 * time.Minute)

	reply := b.unpauseTime(member, admin)
	if !strings.Contains(reply, "10 Minutos") {
		t.Errorf("Unexpected reply: %s", reply)
	}
	n, _ := b.notes.last()
	if n.Kind != notify.KindUnpause || n.PausedSeconds != 600 || n.TotalSeconds != 1200 {
		t.Errorf("Unexpected notification %+v", n)
	}

	reply = b.unpauseTime(member, admin)
	if !strings.Contains(reply, "ya está corriendo") {
		t.Errorf("Expected second unpause to fail, got: %s", reply)
	}
}

func TestStopAndCancel(t *testing.T) {
	b := newTestBot(t, evening(), nil)
	b.startTime(context.Background(), member, admin)
	b.clock.Advance(30 * time.Minute)

	reply := b.stopTime(member)
	if !strings.Contains(reply, "30 Minutos") {
		t.Errorf("Unexpected stop reply: %s", reply)
	}
	if reply = b.stopTime(member); !strings.Contains(reply, "no está corriendo") {
		t.Errorf("Expected stop of stopped time to fail, got: %s", reply)
	}

	reply = b.cancelTime(member, admin)
	if !strings.Contains(reply, "Tiempo cancelado") {
		t.Errorf("Unexpected cancel reply: %s", reply)
	}
	n, _ := b.notes.last()
	if n.Kind != notify.KindCancellation || n.TotalSeconds != 1800 {
		t.Errorf("Unexpected notification %+v", n)
	}
	if reply = b.cancelTime(member, admin); !strings.Contains(reply, "no tiene tiempo") {
		t.Errorf("Expected cancel of missing record to fail, got: %s", reply)
	}
}

func TestCancelTimeDropsPreregistration(t *testing.T) {
	b := newTestBot(t, morning(), nil)
	b.startTime(context.Background(), member, admin)

	reply := b.cancelTime(member, admin)
	if !strings.Contains(reply, "Prerregistro") {
		t.Errorf("Unexpected reply: %s", reply)
	}
	if b.core.Queue.IsPreregistered(memberID) {
		t.Error("Expected preregistration to be removed")
	}
}

func TestAdjustMinutes(t *testing.T) {
	b := newTestBot(t, evening(), nil)

	if reply := b.addMinutes(member, 0); !strings.Contains(reply, "positiva") {
		t.Errorf("Expected zero minutes to be refused, got: %s", reply)
	}
	if reply := b.subtractMinutes(member, 5); !strings.Contains(reply, "no tiene tiempo") {
		t.Errorf("Expected subtract on missing record to fail, got: %s", reply)
	}
	if reply := b.addMinutes(member, 5); !strings.Contains(reply, "no tiene tiempo registrado") {
		t.Errorf("Expected add on missing record to fail, got: %s", reply)
	}
	if _, ok := b.core.Tracker.User(memberID); ok {
		t.Fatal("Adding minutes must not create a record")
	}

	seedTime(t, b, member, 0)
	b.addMinutes(member, 45)
	reply := b.subtractMinutes(member, 15)
	if !strings.Contains(reply, "30 Minutos") {
		t.Errorf("Unexpected reply: %s", reply)
	}
	b.subtractMinutes(member, 60)
	if total := b.core.Tracker.TotalTime(memberID); total != 0 {
		t.Errorf("Expected total clamped to 0, got %v", total)
	}

	b.addMinutes(member, 10)
	if reply := b.resetTime(member); !strings.Contains(reply, "reiniciado") {
		t.Errorf("Unexpected reply: %s", reply)
	}
	if _, ok := b.core.Tracker.User(memberID); !ok {
		t.Error("Expected reset to keep the record")
	}
}

func TestLinkAndUnlink(t *testing.T) {
	b := newTestBot(t, evening(), nil)

	if reply := b.linkTime(member, admin); !strings.Contains(reply, "no está corriendo") {
		t.Errorf("Expected link without running time to fail, got: %s", reply)
	}

	b.startTime(context.Background(), member, admin)
	if reply := b.linkTime(member, admin); !strings.Contains(reply, "ahora son para") {
		t.Errorf("Unexpected reply: %s", reply)
	}
	other := Member{ID: "300", Name: "@other"}
	if reply := b.linkTime(member, other); !strings.Contains(reply, "ya está vinculado a @admin") {
		t.Errorf("Expected second link to be refused, got: %s", reply)
	}

	if reply := b.unlinkTime(member); !strings.Contains(reply, "eliminada") {
		t.Errorf("Unexpected reply: %s", reply)
	}
	if reply := b.unlinkTime(member); !strings.Contains(reply, "no está vinculado") {
		t.Errorf("Expected second unlink to fail, got: %s", reply)
	}
}

func TestManualAttendance(t *testing.T) {
	b := newTestBot(t, evening(), map[string]models.Membership{
		adminID: {Tier: models.TierMonarquia},
	})

	if reply := b.addWeeklyAttendance(admin, 16); !strings.Contains(reply, "entre 1 y 15") {
		t.Errorf("Expected out of range quantity to be refused, got: %s", reply)
	}
	if reply := b.addWeeklyAttendance(admin, 5); !strings.Contains(reply, "Semana: 5") {
		t.Errorf("Unexpected reply: %s", reply)
	}
	if reply := b.addDailyAttendance(admin, 4); !strings.Contains(reply, "máximo 3") {
		t.Errorf("Expected daily cap refusal, got: %s", reply)
	}
	if reply := b.addDailyAttendance(admin, 2); !strings.Contains(reply, "Hoy: 2/3") {
		t.Errorf("Unexpected reply: %s", reply)
	}

	report := b.attendanceReport(context.Background(), admin)
	for _, want := range []string{"Monarquía", "Hoy: 2/3", "Semana: 7/15", "Créditos por asistencia: 4"} {
		if !strings.Contains(report, want) {
			t.Errorf("Expected report to contain %q, got:\n%s", want, report)
		}
	}
}

func TestAttendanceReportIneligible(t *testing.T) {
	b := newTestBot(t, evening(), nil)
	if reply := b.attendanceReport(context.Background(), member); !strings.Contains(reply, "no tiene un cargo") {
		t.Errorf("Unexpected reply: %s", reply)
	}
}

func TestReports(t *testing.T) {
	b := newTestBot(t, evening(), map[string]models.Membership{
		memberID: {Tier: models.TierGold},
	})

	if reply := b.allTimesReport(); !strings.Contains(reply, "No hay tiempos") {
		t.Errorf("Unexpected empty report: %s", reply)
	}
	if reply := b.preregistrationsReport(); !strings.Contains(reply, "No hay prerregistros") {
		t.Errorf("Unexpected empty report: %s", reply)
	}

	b.startTime(context.Background(), member, admin)
	b.clock.Advance(90 * time.Minute)

	report := b.timeReport(context.Background(), member)
	for _, want := range []string{"1 Hora, 30 Minutos", "Corriendo", "Pausas: 0/3", "Créditos (Gold): 6", "Iniciado por: @admin"} {
		if !strings.Contains(report, want) {
			t.Errorf("Expected report to contain %q, got:\n%s", want, report)
		}
	}
	if reply := b.initiatedReport(admin); !strings.Contains(reply, "@member") {
		t.Errorf("Unexpected initiated report: %s", reply)
	}
	if reply := b.allTimesReport(); !strings.Contains(reply, "@member: 1 Hora, 30 Minutos") {
		t.Errorf("Unexpected report: %s", reply)
	}
}

func TestHandleCommandPermissions(t *testing.T) {
	b := newTestBot(t, evening(), nil)
	ctx := context.Background()

	if reply := b.handleCommand(ctx, command(100, "/reiniciar_todo")); !strings.Contains(reply, "Solo el dueño") {
		t.Errorf("Expected reset all to be owner only, got: %s", reply)
	}
	if reply := b.handleCommand(ctx, command(ownerID, "/reiniciar_todo")); !strings.Contains(reply, "0 usuarios") {
		t.Errorf("Unexpected reply: %s", reply)
	}
}

func TestHandleCommandTargets(t *testing.T) {
	b := newTestBot(t, evening(), nil)
	ctx := context.Background()

	reply := b.handleCommand(ctx, command(100, "/iniciar_tiempo"))
	if !strings.Contains(reply, "responde a un mensaje") {
		t.Errorf("Expected missing target error, got: %s", reply)
	}
	reply = b.handleCommand(ctx, command(100, "/iniciar_tiempo abc"))
	if !strings.Contains(reply, "ID de usuario inválido") {
		t.Errorf("Expected invalid ID error, got: %s", reply)
	}

	reply = b.handleCommand(ctx, command(100, "/iniciar_tiempo 200"))
	if !strings.Contains(reply, "Usuario 200") {
		t.Errorf("Unexpected reply: %s", reply)
	}

	msg := command(100, "/sumar_minutos 15")
	msg.ReplyToMessage = &tgbotapi.Message{From: &tgbotapi.User{ID: 300, FirstName: "Ana", LastName: "Gómez"}}
	if reply = b.handleCommand(ctx, msg); !strings.Contains(reply, "Ana Gómez no tiene tiempo registrado") {
		t.Errorf("Unexpected reply: %s", reply)
	}
	seedTime(t, b, Member{ID: "300", Name: "Ana Gómez"}, 0)
	if reply = b.handleCommand(ctx, msg); !strings.Contains(reply, "15 minutos a Ana Gómez") {
		t.Errorf("Unexpected reply: %s", reply)
	}

	if reply = b.handleCommand(ctx, command(100, "/sumar_minutos 300 abc")); !strings.Contains(reply, "Uso:") {
		t.Errorf("Expected usage hint, got: %s", reply)
	}
	if reply = b.handleCommand(ctx, command(100, "/desconocido")); reply != "" {
		t.Errorf("Expected no reply for unknown command, got: %s", reply)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		user tgbotapi.User
		want string
	}{
		{tgbotapi.User{ID: 1, UserName: "nick", FirstName: "Ana"}, "@nick"},
		{tgbotapi.User{ID: 2, FirstName: "Ana"}, "Ana"},
		{tgbotapi.User{ID: 3, FirstName: "Ana", LastName: "Gómez"}, "Ana Gómez"},
		{tgbotapi.User{ID: 4}, "User4"},
	}
	for _, tt := range tests {
		if got := displayName(&tt.user); got != tt.want {
			t.Errorf("displayName(%+v) = %q, want %q", tt.user, got, tt.want)
		}
	}
}
