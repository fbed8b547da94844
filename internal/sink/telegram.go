package sink

import (
	"context"
	"errors"
	"fmt"

	"kolwatch/internal/transport"
)

// Telegram posts notifications to one chat or channel.
type Telegram struct {
	send transport.Sender
	to   transport.ChatTarget
}

func NewTelegram(send transport.Sender, to transport.ChatTarget) (*Telegram, error) {
	if send == nil {
		return nil, errors.New("sink: telegram sender is nil")
	}
	if to.IsZero() {
		return nil, errors.New("sink: telegram channel is empty")
	}
	return &Telegram{send: send, to: to}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Deliver(ctx context.Context, n Notification) error {
	_, err := t.send.SendText(ctx, t.to, FormatHTML(n), &transport.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
	})
	if err != nil {
		return fmt.Errorf("telegram %s: %w", t.to, err)
	}
	return nil
}
