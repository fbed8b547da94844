// Package app wires configuration, the search client, the sink, the
// delivery journal and the polling loop into a runnable process.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"kolwatch/internal/config"
	"kolwatch/internal/eventbus"
	"kolwatch/internal/monitor"
	"kolwatch/internal/runtime/supervisor"
	"kolwatch/internal/sink"
	"kolwatch/internal/storage"
	"kolwatch/internal/transport"
	telegram "kolwatch/internal/transport/telegram/adapter"
	"kolwatch/internal/twitter"
	logx "kolwatch/pkg/logx"
	"kolwatch/pkg/systemd"
)

const (
	stopNoticeTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

type Options struct {
	ConfigPath string
	// EnvFile is loaded before reading secrets; empty means ".env" if present.
	EnvFile string

	DebugFirstCheck bool
	SkipVerify      bool

	// Out receives the verification report; defaults to stdout.
	Out io.Writer
}

type App struct {
	opts Options
	out  io.Writer

	cfgm *config.Manager
	cfg  *config.Config
	dur  config.Durations
	sec  config.Secrets

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	tg    *telegram.Adapter
	api   *twitter.Client
	sink  sink.Sink
	store storage.Store
	sd    *systemd.Notifier

	now func() time.Time

	// shutdownTimeout is the minimum wait for goroutines after cancel.
	shutdownTimeout time.Duration

	// unix nanos of the last loop event, read by the watchdog
	lastBeat atomic.Int64
}

// New loads and validates configuration and builds every component.
// Nothing talks to the search API until Verify or Run.
func New(opts Options) (*App, error) {
	cfgm := config.NewManager(opts.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	sec, err := config.LoadSecrets(opts.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if err := config.Validate(cfg, sec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	dur, err := cfg.ParseDurations()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	// Telegram log output is enabled only after the sender and target exist.
	logCfg := cfg.Logging.LogxConfig()
	bootCfg := logCfg
	bootCfg.Telegram.Enabled = false
	logs, root := logx.New(bootCfg, nil)
	log := root.With(logx.String("comp", "app"))

	a := &App{
		opts: opts,
		out:  opts.Out,
		cfgm: cfgm,
		cfg:  cfg,
		dur:  dur,
		sec:  sec,
		log:  log,
		logs: logs,
		bus:  eventbus.New(),
		sd:   systemd.New(cfg.Systemd.Notify),
		now:  time.Now,

		shutdownTimeout: shutdownTimeout,
	}
	if a.out == nil {
		a.out = os.Stdout
	}
	if err := a.build(root); err != nil {
		a.close()
		return nil, err
	}
	if to := logTarget(cfg, sec); !to.IsZero() && a.tg != nil {
		logs.SetSender(a.tg)
		logs.SetTelegramTarget(to)
		logs.Apply(logCfg)
	}
	return a, nil
}

func (a *App) build(root logx.Logger) error {
	var send transport.Sender
	if needsTelegram(a.cfg) {
		tg, err := telegram.New(adapterConfig(a.cfg, a.sec, a.dur), root.With(logx.String("comp", "telegram")))
		if err != nil {
			return fmt.Errorf("%w: telegram bot: %w", ErrResolution, err)
		}
		a.tg = tg
		send = tg
		a.log.Info("telegram bot connected", logx.String("bot", tg.BotUsername()))
	}

	api, err := twitter.New(twitterConfig(a.cfg, a.sec, a.dur), root.With(logx.String("comp", "twitter")))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	a.api = api

	sc, err := sinkConfig(a.cfg, a.sec)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	s, err := sink.Open(sc, send, root.With(logx.String("comp", "sink")))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	a.sink = s

	st, err := storage.Open(storageConfig(a.cfg, a.dur), root.With(logx.String("comp", "storage")))
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if st != nil {
		a.store = st
		a.log.Info("delivery journal enabled", logx.String("driver", a.cfg.Storage.Driver))
	}
	return nil
}

func (a *App) sinkDriver() string {
	return strings.ToLower(strings.TrimSpace(a.cfg.Sink.Driver))
}

// Close releases what New opened. Run closes on its own.
func (a *App) Close() error {
	a.close()
	return nil
}

func (a *App) close() {
	if a.tg != nil {
		_ = a.tg.Close(context.Background())
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("journal close failed", logx.Err(err))
		}
		a.store = nil
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}

// Run verifies the setup (unless SkipVerify), then polls until ctx is
// cancelled. A cancelled ctx is a clean shutdown and returns nil.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	var accounts map[string]string
	if a.opts.SkipVerify {
		acc, _, err := a.resolve(ctx)
		if err != nil {
			return err
		}
		accounts = acc
	} else {
		rep, err := a.Verify(ctx)
		if err != nil {
			return err
		}
		accounts = rep.Accounts
	}
	if ctx.Err() != nil {
		return nil
	}

	poller, err := monitor.NewPoller(
		monitorConfig(a.cfg, a.dur, a.opts.DebugFirstCheck),
		accounts, a.api, a.sink,
		monitor.WithBus(a.bus),
		monitor.WithLogger(a.logs.Logger().With(logx.String("comp", "monitor"))),
		monitor.WithDisplay(monitor.NewTerminalDisplay(os.Stdout), a.cfg.Display.Countdown),
	)
	if err != nil {
		return err
	}

	sup := supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// The journal outlives the poller so in-flight deliveries are recorded.
	var journalDone chan struct{}
	stopJournal := func() {}
	if a.store != nil {
		j := newJournal(a.bus, a.store, a.log.With(logx.String("comp", "journal")))
		jctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		stopJournal = cancel
		journalDone = make(chan struct{})
		go func() {
			defer close(journalDone)
			j.run(jctx)
		}()
	}

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		return config.Validate(c, a.sec)
	})
	updates := a.cfgm.Subscribe(4)

	a.beat(a.now())
	sup.Go0("events", func(c context.Context) {
		eventbus.Consume(c, a.bus, 64, a.onLoopEvent,
			monitor.EventCycleDone, monitor.EventQuotaExceeded, monitor.EventFetchFailed)
	})
	sup.Go("config.watch", a.cfgm.Watch)
	sup.Go0("config.apply", func(c context.Context) {
		defer a.cfgm.Unsubscribe(updates)
		a.applyUpdates(c, updates, poller)
	})
	if a.cfg.Systemd.Watchdog {
		sup.Go("systemd.watchdog", func(c context.Context) error {
			return a.sd.RunWatchdog(c, a.healthy)
		})
	}
	monitorDone := make(chan struct{})
	sup.Go("monitor", func(c context.Context) error {
		defer close(monitorDone)
		return poller.Run(c)
	})

	if sent, err := a.sd.Ready(); err != nil {
		a.log.Warn("systemd notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("systemd notified ready")
	}
	_, _ = a.sd.Status(fmt.Sprintf("watching %d accounts", len(accounts)))

	<-sup.Context().Done()
	runErr := sup.Err()
	a.log.Info("shutting down")
	_, _ = a.sd.Stopping()

	// The post in flight finishes within DeliveryTimeout; wait for it before
	// the stop notice so the two never race on the sink.
	wait := max(a.shutdownTimeout, a.dur.DeliveryTimeout+time.Second)
	wctx, cancel := context.WithTimeout(context.Background(), wait)
	monitorStopped := true
	select {
	case <-monitorDone:
	case <-wctx.Done():
		monitorStopped = false
		a.log.Warn("monitor did not stop in time", logx.Duration("waited", wait))
	}
	if err := sup.Wait(wctx); errors.Is(err, context.DeadlineExceeded) {
		a.log.Warn("shutdown incomplete", logx.Int64("active", sup.Active()))
	}
	cancel()

	if monitorStopped {
		nctx, cancel := context.WithTimeout(context.Background(), stopNoticeTimeout)
		if runErr != nil {
			_ = poller.Notify(nctx, monitor.ErrorNotification(fmt.Errorf("fatal error: %w", runErr), a.now()))
		}
		if a.cfg.Monitor.AnnounceStopEnabled() {
			_ = poller.Notify(nctx, monitor.StopNotification(a.now()))
		}
		cancel()
	}

	stopJournal()
	if journalDone != nil {
		<-journalDone
	}

	if monitorStopped {
		snap := poller.Snapshot()
		a.log.Info("stopped", logx.Int("checks", snap.Checks), logx.Int("seen", snap.Seen))
	}
	return runErr
}

func (a *App) onLoopEvent(e eventbus.Event) {
	a.beat(e.Time)
	a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
}

func (a *App) beat(t time.Time) { a.lastBeat.Store(t.UnixNano()) }

// healthy reports whether the loop produced an event recently enough. The
// longest legitimate silence is a full quota wait plus one check.
func (a *App) healthy() bool {
	last := time.Unix(0, a.lastBeat.Load())
	limit := a.dur.QuotaWindow + a.dur.CheckInterval + a.dur.RequestTimeout + time.Minute
	return a.now().Sub(last) <= limit
}

// applyUpdates applies hot-reloaded config. Only logging and the countdown
// display change live; everything else needs a restart.
func (a *App) applyUpdates(ctx context.Context, updates <-chan *config.Config, poller *monitor.Poller) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-updates:
			if !ok {
				return
			}
			ch := config.SummarizeChange(last, next)
			if ch.Empty() {
				a.log.Debug("config reload received, but no effective changes detected")
				continue
			}
			last = next

			fields := append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Attrs...)
			for _, s := range ch.Live {
				switch s {
				case "logging":
					a.logs.SetTelegramTarget(logTarget(next, a.sec))
					lc := next.Logging.LogxConfig()
					if a.tg == nil {
						// no bot to send with; needs a restart
						lc.Telegram.Enabled = false
					}
					a.logs.Apply(lc)
				case "display":
					poller.SetDisplayEnabled(next.Display.Countdown)
				}
			}
			if len(ch.Restart) > 0 {
				a.log.Warn("config changed; restart required for these sections", logx.Strings("sections", ch.Restart))
			}
			a.log.Info("config reloaded", fields...)
		}
	}
}
