package sink

import (
	"context"
	"fmt"
	"strings"

	"kolwatch/internal/transport"
	logx "kolwatch/pkg/logx"
)

const (
	DriverTelegram = "telegram"
	DriverAudio    = "audio"
	DriverLog      = "log"
)

type Config struct {
	Driver string

	// TelegramChat is the destination for the telegram driver.
	TelegramChat transport.ChatTarget
	Audio        AudioConfig
}

// Open builds the sink for cfg.Driver. send is only used by the telegram
// driver and may be nil otherwise.
func Open(cfg Config, send transport.Sender, log logx.Logger) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverTelegram:
		return NewTelegram(send, cfg.TelegramChat)
	case DriverAudio:
		return NewAudio(cfg.Audio, log.With(logx.String("sink", DriverAudio))), nil
	case DriverLog:
		return Log{log: log.With(logx.String("sink", DriverLog))}, nil
	default:
		return nil, fmt.Errorf("sink: unknown driver %q", cfg.Driver)
	}
}

// Log writes notifications to the logger only.
type Log struct{ log logx.Logger }

func (Log) Name() string { return DriverLog }

func (l Log) Deliver(_ context.Context, n Notification) error {
	l.log.Info(FormatPlain(n), logx.String("kind", string(n.Kind)), logx.String("post", n.PostID))
	return nil
}
