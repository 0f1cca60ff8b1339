package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tempo-bot/internal/attendance"
	"tempo-bot/internal/config"
	"tempo-bot/internal/credits"
	"tempo-bot/internal/logger"
	"tempo-bot/internal/models"
	"tempo-bot/internal/notify"
	"tempo-bot/internal/prereg"
	"tempo-bot/internal/tracker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const handleTimeout = 30 * time.Second

// Members - источник ролей участников
type Members interface {
	Resolve(ctx context.Context, userID string) (models.Membership, error)
	IsAdmin(userID string) bool
}

type Notifier interface {
	Notify(n notify.Notification) bool
}

// Core - компоненты, которыми управляют команды бота
type Core struct {
	Tracker  *tracker.Tracker
	Ledger   *attendance.Ledger
	Queue    *prereg.Queue
	Members  Members
	Notifier Notifier
	Policy   credits.Policy
}

// Member - участник, над которым выполняется команда, или автор команды
type Member struct {
	ID   string
	Name string
}

type Bot struct {
	api    *tgbotapi.BotAPI
	logger logger.Logger
	config *config.Config
	core   Core
	loc    *time.Location
	now    func() time.Time
}

func New(api *tgbotapi.BotAPI, cfg *config.Config, core Core, loc *time.Location, log logger.Logger) *Bot {
	return &Bot{
		api:    api,
		logger: log,
		config: cfg,
		core:   core,
		loc:    loc,
		now:    time.Now,
	}
}

func (b *Bot) Start(ctx context.Context) error {
	b.logger.Infof("Starting bot as @%s...", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case update := <-updates:
			go b.handleUpdate(ctx, update)
		case <-ctx.Done():
			b.logger.Info("Bot stopped")
			return nil
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil || !update.Message.IsCommand() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorf("Panic while handling update %d: %v", update.UpdateID, r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	msg := update.Message
	b.logger.WithField("user_id", msg.From.ID).Infof("Received command: %s", msg.Text)

	reply := b.handleCommand(ctx, msg)
	if reply != "" {
		b.sendMessage(msg.Chat.ID, reply)
	}
}

// adminCommands требуют прав администратора
var adminCommands = map[string]bool{
	"iniciar_tiempo":        true,
	"pausar_tiempo":         true,
	"despausar_tiempo":      true,
	"detener_tiempo":        true,
	"cancelar_tiempo":       true,
	"sumar_minutos":         true,
	"restar_minutos":        true,
	"reiniciar_tiempo":      true,
	"reiniciar_todo":        true,
	"ligar_tiempo":          true,
	"desligar_tiempo":       true,
	"sumar_asistencias":     true,
	"asistencias_diarias":   true,
	"cancelar_prerregistro": true,
	"mis_tiempos":           true,
}

// publicTargetCommands доступны всем и требуют указать участника
var publicTargetCommands = map[string]bool{
	"saber_tiempo": true,
	"asistencias":  true,
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) string {
	command := msg.Command()
	actor := memberFromUser(msg.From)

	if adminCommands[command] && !b.isAdmin(msg.Chat.ID, msg.From.ID) {
		return "❌ Solo los administradores pueden usar este comando."
	}

	switch command {
	case "start", "help", "ayuda":
		return helpText
	case "mi_tiempo":
		return b.timeReport(ctx, actor)
	case "mis_asistencias":
		return b.attendanceReport(ctx, actor)
	case "ver_tiempos":
		return b.allTimesReport()
	case "prerregistros":
		return b.preregistrationsReport()
	case "mis_tiempos":
		return b.initiatedReport(actor)
	case "reiniciar_todo":
		if msg.From.ID != b.config.OwnerID {
			return "❌ Solo el dueño del bot puede reiniciar todos los tiempos."
		}
		return b.resetAll()
	}

	if !adminCommands[command] && !publicTargetCommands[command] {
		b.logger.Warnf("Unknown command: %s", command)
		return ""
	}

	target, args, err := b.parseTarget(msg)
	if err != nil {
		return "❌ " + err.Error()
	}

	switch command {
	case "iniciar_tiempo":
		return b.startTime(ctx, target, actor)
	case "pausar_tiempo":
		return b.pauseTime(target, actor)
	case "despausar_tiempo":
		return b.unpauseTime(target, actor)
	case "detener_tiempo":
		return b.stopTime(target)
	case "cancelar_tiempo":
		return b.cancelTime(target, actor)
	case "sumar_minutos":
		minutes, err := intArg(args)
		if err != nil {
			return "❌ Uso: /sumar_minutos <usuario> <minutos>"
		}
		return b.addMinutes(target, minutes)
	case "restar_minutos":
		minutes, err := intArg(args)
		if err != nil {
			return "❌ Uso: /restar_minutos <usuario> <minutos>"
		}
		return b.subtractMinutes(target, minutes)
	case "reiniciar_tiempo":
		return b.resetTime(target)
	case "ligar_tiempo":
		return b.linkTime(target, actor)
	case "desligar_tiempo":
		return b.unlinkTime(target)
	case "saber_tiempo":
		return b.timeReport(ctx, target)
	case "asistencias":
		return b.attendanceReport(ctx, target)
	case "sumar_asistencias":
		qty, err := intArg(args)
		if err != nil {
			return "❌ Uso: /sumar_asistencias <usuario> <cantidad>"
		}
		return b.addWeeklyAttendance(target, qty)
	case "asistencias_diarias":
		qty, err := intArg(args)
		if err != nil {
			return "❌ Uso: /asistencias_diarias <usuario> <cantidad>"
		}
		return b.addDailyAttendance(target, qty)
	case "cancelar_prerregistro":
		return b.removePreregistration(target)
	}
	return ""
}

// parseTarget определяет участника: ответ на сообщение или числовой ID первым аргументом
func (b *Bot) parseTarget(msg *tgbotapi.Message) (Member, []string, error) {
	args := strings.Fields(msg.CommandArguments())

	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		return memberFromUser(msg.ReplyToMessage.From), args, nil
	}
	if len(args) == 0 {
		return Member{}, nil, fmt.Errorf("responde a un mensaje del usuario o indica su ID")
	}
	if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
		return Member{}, nil, fmt.Errorf("ID de usuario inválido: %s", args[0])
	}
	return Member{ID: args[0], Name: b.knownName(args[0])}, args[1:], nil
}

func (b *Bot) knownName(id string) string {
	if u, ok := b.core.Tracker.User(id); ok && u.DisplayName != "" {
		return u.DisplayName
	}
	for _, r := range b.core.Ledger.Records() {
		if r.ID == id && r.DisplayName != "" {
			return r.DisplayName
		}
	}
	return "Usuario " + id
}

func intArg(args []string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("missing argument")
	}
	return strconv.Atoi(args[0])
}

func memberFromUser(u *tgbotapi.User) Member {
	return Member{ID: strconv.FormatInt(u.ID, 10), Name: displayName(u)}
}

// displayName возвращает ник пользователя
func displayName(u *tgbotapi.User) string {
	switch {
	case u.UserName != "":
		return "@" + u.UserName
	case u.FirstName != "":
		name := u.FirstName
		if u.LastName != "" {
			name += " " + u.LastName
		}
		return name
	default:
		return fmt.Sprintf("User%d", u.ID)
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	reply := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(reply); err != nil {
		b.logger.Errorf("Failed to send message to chat %d: %v", chatID, err)
	}
}

func (b *Bot) isAdmin(chatID, userID int64) bool {
	// Проверяем, является ли пользователь владельцем
	if userID == b.config.OwnerID {
		return true
	}

	if b.core.Members.IsAdmin(strconv.FormatInt(userID, 10)) {
		return true
	}

	// Проверяем права администратора
	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: chatID,
			UserID: userID,
		},
	})
	if err != nil {
		b.logger.Errorf("Failed to get chat member: %v", err)
		return false
	}

	return member.Status == "administrator" || member.Status == "creator"
}

const helpText = `⏱️ Bot de tiempos - Comandos

👮 Administradores (responde a un mensaje o indica el ID):
• /iniciar_tiempo — Iniciar el tiempo (antes de la hora de activación queda prerregistrado)
• /pausar_tiempo — Pausar el tiempo (3 pausas cancelan el tiempo)
• /despausar_tiempo — Reanudar el tiempo
• /detener_tiempo — Detener el tiempo
• /cancelar_tiempo — Cancelar y borrar el tiempo
• /sumar_minutos <min> — Sumar minutos
• /restar_minutos <min> — Restar minutos
• /reiniciar_tiempo — Reiniciar el tiempo a cero
• /ligar_tiempo — Vincular las asistencias del usuario a ti
• /desligar_tiempo — Quitar la vinculación
• /sumar_asistencias <n> — Sumar asistencias semanales (1-15)
• /asistencias_diarias <n> — Sumar asistencias de hoy (1-3)
• /cancelar_prerregistro — Quitar un prerregistro
• /mis_tiempos — Usuarios cuyo tiempo iniciaste

👥 Todos:
• /mi_tiempo — Tu tiempo
• /saber_tiempo — Tiempo de otro usuario
• /mis_asistencias — Tus asistencias y créditos
• /asistencias — Asistencias de otro usuario
• /ver_tiempos — Todos los tiempos
• /prerregistros — Prerregistros pendientes`
