package config

import (
	"strings"
	"time"

	logx "kolwatch/pkg/logx"
)

const (
	DefaultCheckInterval   = "3m"
	DefaultMaxResults      = 10
	DefaultQuotaLimit      = 15
	DefaultQuotaWindow     = "15m"
	DefaultSeenCapacity    = 1000
	DefaultDeliveryTimeout = "15s"
	DefaultRequestTimeout  = "15s"
	DefaultSinkDriver      = "telegram"
	DefaultLogPath         = "kolwatch.log"
)

// ApplyDefaults fills omitted fields in place.
func (c *Config) ApplyDefaults() {
	m := &c.Monitor
	if strings.TrimSpace(m.CheckInterval) == "" {
		m.CheckInterval = DefaultCheckInterval
	}
	if strings.TrimSpace(m.Lookback) == "" {
		m.Lookback = m.CheckInterval
	}
	if m.MaxResults == 0 {
		m.MaxResults = DefaultMaxResults
	}
	if m.QuotaLimit == 0 {
		m.QuotaLimit = DefaultQuotaLimit
	}
	if strings.TrimSpace(m.QuotaWindow) == "" {
		m.QuotaWindow = DefaultQuotaWindow
	}
	if m.SeenCapacity == 0 {
		m.SeenCapacity = DefaultSeenCapacity
	}
	if strings.TrimSpace(m.DeliveryTimeout) == "" {
		m.DeliveryTimeout = DefaultDeliveryTimeout
	}
	if strings.TrimSpace(c.Twitter.RequestTimeout) == "" {
		c.Twitter.RequestTimeout = DefaultRequestTimeout
	}
	if strings.TrimSpace(c.Sink.Driver) == "" {
		c.Sink.Driver = DefaultSinkDriver
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.File.Enabled && strings.TrimSpace(c.Logging.File.Path) == "" {
		c.Logging.File.Path = DefaultLogPath
	}
	if strings.TrimSpace(c.Storage.Driver) == "" {
		c.Storage.Driver = "none"
	}
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func (m MonitorConfig) AnnounceStartEnabled() bool { return boolOr(m.AnnounceStart, true) }
func (m MonitorConfig) AnnounceStopEnabled() bool  { return boolOr(m.AnnounceStop, true) }
func (m MonitorConfig) ForwardErrorsEnabled() bool { return boolOr(m.ForwardErrors, true) }

// Durations holds the parsed monitor and twitter durations.
type Durations struct {
	CheckInterval   time.Duration
	Lookback        time.Duration
	QuotaWindow     time.Duration
	DeliveryTimeout time.Duration
	RequestTimeout  time.Duration
	BusyTimeout     time.Duration
}

// ParseDurations parses every duration field, returning the first error.
// Validate reports all of them at once.
func (c *Config) ParseDurations() (Durations, error) {
	var d Durations
	var err error
	fields := []struct {
		path string
		raw  string
		out  *time.Duration
	}{
		{"monitor.check_interval", c.Monitor.CheckInterval, &d.CheckInterval},
		{"monitor.lookback", c.Monitor.Lookback, &d.Lookback},
		{"monitor.quota_window", c.Monitor.QuotaWindow, &d.QuotaWindow},
		{"monitor.delivery_timeout", c.Monitor.DeliveryTimeout, &d.DeliveryTimeout},
		{"twitter.request_timeout", c.Twitter.RequestTimeout, &d.RequestTimeout},
		{"storage.busy_timeout", c.Storage.BusyTimeout, &d.BusyTimeout},
	}
	for _, f := range fields {
		if *f.out, err = ParseDurationField(f.path, f.raw); err != nil {
			return Durations{}, err
		}
	}
	return d, nil
}

// LogxConfig maps the logging section onto the logger service config.
func (l LoggingConfig) LogxConfig() logx.Config {
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File: logx.FileConfig{
			Enabled:    l.File.Enabled,
			Path:       l.File.Path,
			MaxSizeMB:  l.File.MaxSizeMB,
			MaxBackups: l.File.MaxBackups,
			MaxAgeDays: l.File.MaxAgeDays,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    l.Telegram.Enabled,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}
