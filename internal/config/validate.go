package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"

	"kolwatch/internal/transport"
	logx "kolwatch/pkg/logx"
)

// MaxHandles is the account lookup limit of a single API call.
const MaxHandles = 100

var handleRe = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// placeholderHandles ship in the example config and must be replaced.
var placeholderHandles = map[string]struct{}{"handle1": {}, "handle2": {}, "handle3": {}}

// Validate checks cfg (after ApplyDefaults) together with secrets and
// reports every problem found.
func Validate(cfg *Config, sec Secrets) error {
	var errs *multierror.Error
	add := func(format string, args ...any) {
		errs = multierror.Append(errs, fmt.Errorf(format, args...))
	}

	validateHandles(cfg.Twitter.Handles, add)
	if sec.BearerToken == "" {
		add("TWITTER_BEARER_TOKEN is not set")
	}

	for _, f := range []struct{ path, raw string }{
		{"monitor.check_interval", cfg.Monitor.CheckInterval},
		{"monitor.lookback", cfg.Monitor.Lookback},
		{"monitor.quota_window", cfg.Monitor.QuotaWindow},
		{"monitor.delivery_timeout", cfg.Monitor.DeliveryTimeout},
		{"twitter.request_timeout", cfg.Twitter.RequestTimeout},
	} {
		d, err := ParseDurationField(f.path, f.raw)
		switch {
		case err != nil:
			errs = multierror.Append(errs, err)
		case d <= 0:
			add("%s: must be > 0", f.path)
		}
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		errs = multierror.Append(errs, err)
	}

	m := cfg.Monitor
	if m.MaxResults < 10 || m.MaxResults > 100 {
		add("monitor.max_results: must be between 10 and 100, got %d", m.MaxResults)
	}
	if m.QuotaLimit < 1 {
		add("monitor.quota_limit: must be >= 1")
	}
	if m.SeenCapacity < 1 {
		add("monitor.seen_capacity: must be >= 1")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Sink.Driver)) {
	case "telegram":
		if sec.TelegramToken == "" {
			add("TELEGRAM_BOT_TOKEN is not set (required by sink.driver=telegram)")
		}
		if _, err := transport.ParseChatTarget(cfg.TelegramChannel(sec)); err != nil {
			add("TELEGRAM_CHANNEL_ID / sink.telegram.channel: %v", err)
		}
	case "audio", "log":
	default:
		add("sink.driver: unknown driver %q (want telegram, audio or log)", cfg.Sink.Driver)
	}

	if !logx.ValidLevel(cfg.Logging.Level) {
		add("logging.level: invalid level %q", cfg.Logging.Level)
	}
	if lt := cfg.Logging.Telegram; lt.Enabled {
		if sec.TelegramToken == "" {
			add("logging.telegram: TELEGRAM_BOT_TOKEN is not set")
		}
		if _, err := transport.ParseChatTarget(cfg.LogChat(sec)); err != nil {
			add("logging.telegram.chat: %v", err)
		}
		if lt.MinLevel != "" && !logx.ValidLevel(lt.MinLevel) {
			add("logging.telegram.min_level: invalid level %q", lt.MinLevel)
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "none":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			add("storage.path: required for driver %q", cfg.Storage.Driver)
		}
	default:
		add("storage.driver: unknown driver %q", cfg.Storage.Driver)
	}

	return errs.ErrorOrNil()
}

func validateHandles(handles []string, add func(string, ...any)) {
	if len(handles) == 0 {
		add("twitter.handles: at least one handle is required")
		return
	}
	if len(handles) > MaxHandles {
		add("twitter.handles: at most %d handles, got %d", MaxHandles, len(handles))
	}
	for _, raw := range handles {
		h := strings.TrimPrefix(strings.TrimSpace(raw), "@")
		if _, ok := placeholderHandles[strings.ToLower(h)]; ok {
			add("twitter.handles: replace placeholder %q with real handles", raw)
			continue
		}
		if !handleRe.MatchString(h) {
			add("twitter.handles: invalid handle %q", raw)
		}
	}
}
