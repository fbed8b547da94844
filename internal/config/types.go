package config

// Config is the file-backed configuration. Secrets (API tokens, the
// Telegram channel) come from the environment, see Secrets.
//
// All durations are Go duration strings (e.g. "90s", "3m").
type Config struct {
	Twitter TwitterConfig `json:"twitter"`
	Monitor MonitorConfig `json:"monitor"`
	Sink    SinkConfig    `json:"sink"`
	Logging LoggingConfig `json:"logging"`
	Storage StorageConfig `json:"storage"`
	Display DisplayConfig `json:"display"`
	Systemd SystemdConfig `json:"systemd"`
}

type TwitterConfig struct {
	// Handles are the accounts to monitor, with or without "@".
	Handles        []string `json:"handles"`
	BaseURL        string   `json:"base_url,omitempty"`
	RequestTimeout string   `json:"request_timeout,omitempty"`
}

// MonitorConfig controls the polling loop.
//
// Defaults (when fields are omitted/zero):
//   - check_interval: "3m"
//   - lookback: check_interval
//   - max_results: 10
//   - quota_limit: 15 requests per quota_window ("15m")
//   - seen_capacity: 1000
//   - delivery_timeout: "15s"
type MonitorConfig struct {
	CheckInterval   string `json:"check_interval,omitempty"`
	Lookback        string `json:"lookback,omitempty"`
	MaxResults      int    `json:"max_results,omitempty"`
	QuotaLimit      int    `json:"quota_limit,omitempty"`
	QuotaWindow     string `json:"quota_window,omitempty"`
	SeenCapacity    int    `json:"seen_capacity,omitempty"`
	DeliveryTimeout string `json:"delivery_timeout,omitempty"`
	PermalinkBase   string `json:"permalink_base,omitempty"`

	// Start/stop/error notices to the sink. Pointers so omitted means true.
	AnnounceStart *bool `json:"announce_start,omitempty"`
	AnnounceStop  *bool `json:"announce_stop,omitempty"`
	ForwardErrors *bool `json:"forward_errors,omitempty"`
}

// SinkConfig selects where notifications go: "telegram" (default),
// "audio" or "log".
type SinkConfig struct {
	Driver   string       `json:"driver"`
	Telegram SinkTelegram `json:"telegram"`
	Audio    SinkAudio    `json:"audio"`
}

type SinkTelegram struct {
	// Channel overrides TELEGRAM_CHANNEL_ID when set.
	Channel  string  `json:"channel,omitempty"`
	ThreadID int     `json:"thread_id,omitempty"`
	SendRate float64 `json:"send_rate,omitempty"`
	Burst    int     `json:"burst,omitempty"`
}

type SinkAudio struct {
	Player        string   `json:"player,omitempty"`
	Args          []string `json:"args,omitempty"`
	SoundFile     string   `json:"sound_file,omitempty"`
	FallbackSound string   `json:"fallback_sound,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
}

// LoggingTelegram mirrors log records at or above MinLevel to a chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	Chat       string `json:"chat,omitempty"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig controls the optional delivery journal.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./kolwatch.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	MaxRecords  int    `json:"max_records,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}

type DisplayConfig struct {
	// Countdown shows the wait until the next check on a terminal.
	Countdown bool `json:"countdown"`
}

type SystemdConfig struct {
	// Notify sends READY/STOPPING to systemd when NOTIFY_SOCKET is set.
	Notify bool `json:"notify"`
	// Watchdog pings at half of WATCHDOG_USEC when the unit enables it.
	Watchdog bool `json:"watchdog"`
}
