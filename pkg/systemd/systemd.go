// Package systemd reports service state to systemd over the sd_notify
// socket. Outside a unit (NOTIFY_SOCKET unset) every call is a no-op.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify messages. The zero value is disabled.
type Notifier struct {
	enabled bool

	notify   func(state string) (bool, error)
	watchdog func() (time.Duration, error)
}

func New(enabled bool) *Notifier {
	return &Notifier{
		enabled:  enabled,
		notify:   func(state string) (bool, error) { return daemon.SdNotify(false, state) },
		watchdog: func() (time.Duration, error) { return daemon.SdWatchdogEnabled(false) },
	}
}

func (n *Notifier) send(state string) (bool, error) {
	if n == nil || !n.enabled || n.notify == nil {
		return false, nil
	}
	return n.notify(state)
}

// Ready reports startup completion. sent is false when not under systemd.
func (n *Notifier) Ready() (sent bool, err error) { return n.send(daemon.SdNotifyReady) }

func (n *Notifier) Stopping() (bool, error) { return n.send(daemon.SdNotifyStopping) }

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(msg string) (bool, error) { return n.send("STATUS=" + msg) }

// WatchdogInterval returns the ping interval (half of WatchdogSec), or 0
// when the unit has no watchdog.
func (n *Notifier) WatchdogInterval() time.Duration {
	if n == nil || !n.enabled || n.watchdog == nil {
		return 0
	}
	d, err := n.watchdog()
	if err != nil || d <= 0 {
		return 0
	}
	return d / 2
}

// RunWatchdog pings the watchdog until ctx is done. healthy gates each
// ping so a stuck process stops feeding the watchdog; nil means always.
func (n *Notifier) RunWatchdog(ctx context.Context, healthy func() bool) error {
	every := n.WatchdogInterval()
	if every <= 0 {
		return nil
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if healthy != nil && !healthy() {
				continue
			}
			if _, err := n.send(daemon.SdNotifyWatchdog); err != nil {
				return err
			}
		}
	}
}
