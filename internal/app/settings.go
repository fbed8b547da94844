package app

import (
	"fmt"
	"strings"

	"kolwatch/internal/config"
	"kolwatch/internal/monitor"
	"kolwatch/internal/sink"
	"kolwatch/internal/storage"
	"kolwatch/internal/transport"
	telegram "kolwatch/internal/transport/telegram/adapter"
	"kolwatch/internal/twitter"
)

// needsTelegram reports whether any component sends to Telegram.
func needsTelegram(cfg *config.Config) bool {
	return strings.EqualFold(strings.TrimSpace(cfg.Sink.Driver), sink.DriverTelegram) || cfg.Logging.Telegram.Enabled
}

func monitorConfig(cfg *config.Config, d config.Durations, debugFirstCheck bool) monitor.Config {
	m := cfg.Monitor
	return monitor.Config{
		CheckInterval:   d.CheckInterval,
		Lookback:        d.Lookback,
		MaxResults:      m.MaxResults,
		QuotaLimit:      m.QuotaLimit,
		QuotaWindow:     d.QuotaWindow,
		SeenCapacity:    m.SeenCapacity,
		DeliveryTimeout: d.DeliveryTimeout,
		PermalinkBase:   m.PermalinkBase,
		DebugFirstCheck: debugFirstCheck,
		AnnounceStart:   m.AnnounceStartEnabled(),
		ForwardErrors:   m.ForwardErrorsEnabled(),
	}
}

func twitterConfig(cfg *config.Config, sec config.Secrets, d config.Durations) twitter.Config {
	return twitter.Config{
		BaseURL:     cfg.Twitter.BaseURL,
		BearerToken: sec.BearerToken,
		Timeout:     d.RequestTimeout,
	}
}

func adapterConfig(cfg *config.Config, sec config.Secrets, d config.Durations) telegram.Config {
	return telegram.Config{
		Token:          sec.TelegramToken,
		RequestTimeout: d.RequestTimeout,
		SendRate:       cfg.Sink.Telegram.SendRate,
		Burst:          cfg.Sink.Telegram.Burst,
	}
}

func sinkConfig(cfg *config.Config, sec config.Secrets) (sink.Config, error) {
	sc := sink.Config{
		Driver: cfg.Sink.Driver,
		Audio: sink.AudioConfig{
			Player:        cfg.Sink.Audio.Player,
			Args:          cfg.Sink.Audio.Args,
			SoundFile:     cfg.Sink.Audio.SoundFile,
			FallbackSound: cfg.Sink.Audio.FallbackSound,
		},
	}
	if !strings.EqualFold(strings.TrimSpace(cfg.Sink.Driver), sink.DriverTelegram) {
		return sc, nil
	}
	to, err := transport.ParseChatTarget(cfg.TelegramChannel(sec))
	if err != nil {
		return sink.Config{}, fmt.Errorf("sink.telegram: %w", err)
	}
	to.ThreadID = cfg.Sink.Telegram.ThreadID
	sc.TelegramChat = to
	return sc, nil
}

func storageConfig(cfg *config.Config, d config.Durations) storage.Config {
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		MaxRecords:  cfg.Storage.MaxRecords,
		BusyTimeout: d.BusyTimeout,
	}
}

// logTarget is the chat for the Telegram log sink, zero when disabled or
// unset.
func logTarget(cfg *config.Config, sec config.Secrets) transport.ChatTarget {
	if !cfg.Logging.Telegram.Enabled {
		return transport.ChatTarget{}
	}
	to, err := transport.ParseChatTarget(cfg.LogChat(sec))
	if err != nil {
		return transport.ChatTarget{}
	}
	return to
}
