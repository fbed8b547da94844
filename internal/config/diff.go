package config

import (
	"reflect"
	"strings"

	logx "kolwatch/pkg/logx"
)

// Change summarizes what a reload touched.
type Change struct {
	// Sections lists changed top-level sections in file order.
	Sections []string
	// Attrs are safe to log; they never include secrets.
	Attrs []logx.Field
	// Live sections are applied without a restart (logging, display).
	Live []string
	// Restart sections only take effect after a restart.
	Restart []string
}

func (c Change) Empty() bool { return len(c.Sections) == 0 }

// SummarizeChange compares two configs section by section.
func SummarizeChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change
	mark := func(section string, live bool, attrs ...logx.Field) {
		ch.Sections = append(ch.Sections, section)
		ch.Attrs = append(ch.Attrs, attrs...)
		if live {
			ch.Live = append(ch.Live, section)
		} else {
			ch.Restart = append(ch.Restart, section)
		}
	}

	if !reflect.DeepEqual(oldCfg.Twitter, newCfg.Twitter) {
		mark("twitter", false,
			logx.Int("twitter.handle_count", len(newCfg.Twitter.Handles)),
			logx.String("twitter.base_url", strings.TrimSpace(newCfg.Twitter.BaseURL)),
		)
	}
	if !reflect.DeepEqual(oldCfg.Monitor, newCfg.Monitor) {
		mark("monitor", false,
			logx.String("monitor.check_interval", newCfg.Monitor.CheckInterval),
			logx.Int("monitor.quota_limit", newCfg.Monitor.QuotaLimit),
		)
	}
	if !reflect.DeepEqual(oldCfg.Sink, newCfg.Sink) {
		// the channel may be private; only report whether it is set
		mark("sink", false,
			logx.String("sink.driver", newCfg.Sink.Driver),
			logx.Bool("sink.telegram.channel_set", strings.TrimSpace(newCfg.Sink.Telegram.Channel) != ""),
		)
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		mark("logging", true,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		mark("storage", false, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if oldCfg.Display != newCfg.Display {
		mark("display", true, logx.Bool("display.countdown", newCfg.Display.Countdown))
	}
	if oldCfg.Systemd != newCfg.Systemd {
		mark("systemd", false, logx.Bool("systemd.notify", newCfg.Systemd.Notify))
	}
	return ch
}
