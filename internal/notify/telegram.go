package notify

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotAPI - часть клиента Telegram, нужная для отправки
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender отправляет уведомления в чаты по типу
type TelegramSender struct {
	api      BotAPI
	chats    map[Kind]int64
	fallback int64
}

func NewTelegramSender(api BotAPI, chats map[Kind]int64, fallback int64) *TelegramSender {
	return &TelegramSender{api: api, chats: chats, fallback: fallback}
}

func (s *TelegramSender) chatFor(kind Kind) int64 {
	if id := s.chats[kind]; id != 0 {
		return id
	}
	return s.fallback
}

func (s *TelegramSender) Send(ctx context.Context, n Notification) error {
	chatID := s.chatFor(n.Kind)
	if chatID == 0 {
		return Permanent(fmt.Errorf("no chat configured for %s notifications", n.Kind))
	}
	msg := tgbotapi.NewMessage(chatID, n.Text())

	done := make(chan error, 1)
	go func() {
		_, err := s.api.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		return classify(err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// classify помечает ошибки прав доступа и неверного запроса как постоянные
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == 400 || apiErr.Code == 403) {
		return Permanent(err)
	}
	return err
}
