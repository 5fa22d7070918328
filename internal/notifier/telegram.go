package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"
)

// TelegramConfig configures the optional Telegram delivery surface, used when
// the user wants launch prompts while away from the machine.
type TelegramConfig struct {
	Token  string
	ChatID int64
}

type TelegramSender struct {
	bot  *tele.Bot
	chat *tele.Chat
}

func NewTelegramSender(cfg TelegramConfig) (*TelegramSender, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
	}
	bot, err := tele.NewBot(tele.Settings{
		Token: cfg.Token,
		// No poller: this bot only sends.
		Client: nil,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramSender{bot: bot, chat: &tele.Chat{ID: cfg.ChatID}}, nil
}

func (t *TelegramSender) Name() string { return "telegram" }

func (t *TelegramSender) Send(ctx context.Context, n Notification) error {
	// telebot has no context-aware send; bound the call ourselves.
	done := make(chan error, 1)
	go func() {
		text := fmt.Sprintf("%s\n%s", n.Title, n.Body)
		_, err := t.bot.Send(t.chat, text, &tele.SendOptions{DisableWebPagePreview: true})
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(15 * time.Second):
		return errors.New("telegram send timed out")
	}
}

// MultiSender fans a notification out to every configured surface; delivery
// succeeds when at least one surface accepts it.
type MultiSender struct {
	senders []Sender
}

func NewMultiSender(senders ...Sender) *MultiSender {
	return &MultiSender{senders: senders}
}

func (m *MultiSender) Name() string { return "multi" }

func (m *MultiSender) Send(ctx context.Context, n Notification) error {
	if len(m.senders) == 0 {
		return errors.New("no notification surfaces configured")
	}
	var firstErr error
	delivered := false
	for _, s := range m.senders {
		if err := s.Send(ctx, n); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", s.Name(), err)
			}
			continue
		}
		delivered = true
	}
	if delivered {
		return nil
	}
	return firstErr
}
