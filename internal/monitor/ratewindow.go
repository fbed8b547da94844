package monitor

import "time"

const (
	DefaultQuotaLimit  = 15
	DefaultQuotaWindow = 15 * time.Minute
)

// RateWindow is a fixed-window request counter. The window restarts
// whenever its full length has elapsed since start.
//
// Not safe for concurrent use; the poller goroutine owns it.
type RateWindow struct {
	limit  int
	length time.Duration
	count  int
	start  time.Time
}

// WindowSnapshot is a read-only view used for display and events.
type WindowSnapshot struct {
	Count     int
	Limit     int
	Remaining time.Duration
}

func NewRateWindow(limit int, length time.Duration, now time.Time) *RateWindow {
	if limit <= 0 {
		limit = DefaultQuotaLimit
	}
	if length <= 0 {
		length = DefaultQuotaWindow
	}
	return &RateWindow{limit: limit, length: length, start: now}
}

// Allow rolls the window if it expired, then reports whether another
// request fits in the quota.
func (w *RateWindow) Allow(now time.Time) bool {
	if now.Sub(w.start) >= w.length {
		w.count = 0
		w.start = now
	}
	return w.count < w.limit
}

// Record counts one issued request.
func (w *RateWindow) Record() { w.count++ }

// Reset starts a fresh window at now.
func (w *RateWindow) Reset(now time.Time) {
	w.count = 0
	w.start = now
}

// Remaining is the time left until the current window expires (>= 0).
func (w *RateWindow) Remaining(now time.Time) time.Duration {
	if d := w.start.Add(w.length).Sub(now); d > 0 {
		return d
	}
	return 0
}

func (w *RateWindow) Count() int       { return w.count }
func (w *RateWindow) Limit() int       { return w.limit }
func (w *RateWindow) Start() time.Time { return w.start }

func (w *RateWindow) Snapshot(now time.Time) WindowSnapshot {
	return WindowSnapshot{Count: w.count, Limit: w.limit, Remaining: w.Remaining(now)}
}

// Exhaust marks the current window as used up, so Allow stays false until
// the window expires. The API can reject before the local count reaches
// the limit.
func (w *RateWindow) Exhaust() {
	if w.count < w.limit {
		w.count = w.limit
	}
}
