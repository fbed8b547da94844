// Package monitor runs the polling loop: it asks the search API for recent
// posts from the monitored accounts on a fixed cadence, stays inside the
// request quota, and hands every post it has not seen before to a sink.
//
// All mutable state belongs to the goroutine calling Run (or Cycle).
package monitor

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"kolwatch/internal/eventbus"
	"kolwatch/internal/sink"
	"kolwatch/internal/twitter"
	logx "kolwatch/pkg/logx"
)

const (
	DefaultCheckInterval   = 3 * time.Minute
	DefaultLookback        = 3 * time.Minute
	DefaultMaxResults      = 10
	DefaultDeliveryTimeout = 15 * time.Second
)

// Fetcher is the part of the search client the loop needs.
type Fetcher interface {
	SearchRecent(ctx context.Context, q twitter.SearchQuery) (twitter.SearchResult, error)
}

type Config struct {
	CheckInterval   time.Duration
	Lookback        time.Duration
	MaxResults      int
	QuotaLimit      int
	QuotaWindow     time.Duration
	SeenCapacity    int
	DeliveryTimeout time.Duration
	PermalinkBase   string

	// DebugFirstCheck traces the first search request and response.
	DebugFirstCheck bool
	AnnounceStart   bool

	// ForwardErrors sends fetch failures to the sink as error notifications.
	ForwardErrors bool
}

func (c Config) withDefaults() Config {
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	if c.Lookback <= 0 {
		c.Lookback = c.CheckInterval
	}
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.QuotaLimit <= 0 {
		c.QuotaLimit = DefaultQuotaLimit
	}
	if c.QuotaWindow <= 0 {
		c.QuotaWindow = DefaultQuotaWindow
	}
	if c.SeenCapacity <= 0 {
		c.SeenCapacity = DefaultSeenCapacity
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = DefaultDeliveryTimeout
	}
	if c.PermalinkBase == "" {
		c.PermalinkBase = DefaultPermalinkBase
	}
	return c
}

// State is the loop's memory for one process lifetime.
type State struct {
	Window *RateWindow
	Seen   *SeenSet
	Checks int

	traced bool
}

// Snapshot is a copy of State for status output and tests.
type Snapshot struct {
	Count       int
	Limit       int
	WindowStart time.Time
	Remaining   time.Duration
	Seen        int
	Checks      int
}

// CycleResult describes one Idle -> Fetching -> Delivering pass.
type CycleResult struct {
	ID      string
	Started time.Time

	// Skipped is set when the quota window had no room and no request was made.
	Skipped       bool
	QuotaExceeded bool
	Fetched       int
	Delivered     int
	Duplicates    int
	DeliveryErrs  int

	// Interrupted is set when cancellation stopped delivery before the last post.
	Interrupted bool
	Err         error

	// Wait is how long the loop should pause before the next cycle.
	Wait time.Duration
}

type Option func(*Poller)

func WithClock(c Clock) Option {
	return func(p *Poller) {
		if c != nil {
			p.clock = c
		}
	}
}

func WithBus(b eventbus.Bus) Option {
	return func(p *Poller) {
		if b != nil {
			p.bus = b
		}
	}
}

func WithLogger(l logx.Logger) Option { return func(p *Poller) { p.log = l } }

func WithDisplay(d Display, enabled bool) Option {
	return func(p *Poller) {
		p.display = d
		p.showDisplay.Store(enabled)
	}
}

type Poller struct {
	cfg Config

	ids     []string
	handles []string
	byID    map[string]string

	fetch Fetcher
	sink  sink.Sink
	clock Clock
	bus   eventbus.Bus
	log   logx.Logger

	display     Display
	showDisplay atomic.Bool

	state State
}

// NewPoller builds a Poller for accounts (lower-case handle -> id).
func NewPoller(cfg Config, accounts map[string]string, fetch Fetcher, s sink.Sink, opts ...Option) (*Poller, error) {
	if len(accounts) == 0 {
		return nil, errors.New("monitor: no accounts to monitor")
	}
	if fetch == nil {
		return nil, errors.New("monitor: fetcher is nil")
	}
	if s == nil {
		return nil, errors.New("monitor: sink is nil")
	}
	p := &Poller{
		cfg:   cfg.withDefaults(),
		byID:  make(map[string]string, len(accounts)),
		fetch: fetch,
		sink:  s,
		clock: SystemClock{},
		bus:   eventbus.Nop{},
		log:   logx.Nop(),
	}
	for _, o := range opts {
		o(p)
	}

	for h := range accounts {
		p.handles = append(p.handles, h)
	}
	sort.Strings(p.handles)
	for _, h := range p.handles {
		id := accounts[h]
		p.ids = append(p.ids, id)
		p.byID[id] = h
	}

	p.state = State{
		Window: NewRateWindow(p.cfg.QuotaLimit, p.cfg.QuotaWindow, p.clock.Now()),
		Seen:   NewSeenSet(p.cfg.SeenCapacity),
	}
	return p, nil
}

// Handles returns the monitored handles in sorted order.
func (p *Poller) Handles() []string { return append([]string(nil), p.handles...) }

// SetDisplayEnabled toggles the countdown; it takes effect at the next wait.
func (p *Poller) SetDisplayEnabled(v bool) { p.showDisplay.Store(v) }

// Snapshot must be called from the polling goroutine or after Run returned.
func (p *Poller) Snapshot() Snapshot {
	now := p.clock.Now()
	w := p.state.Window
	return Snapshot{
		Count:       w.Count(),
		Limit:       w.Limit(),
		WindowStart: w.Start(),
		Remaining:   w.Remaining(now),
		Seen:        p.state.Seen.Len(),
		Checks:      p.state.Checks,
	}
}

// Run loops Cycle and the wait after it until ctx is cancelled, which is
// a normal shutdown and returns nil.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("monitoring started",
		logx.Strings("handles", p.handles),
		logx.Duration("interval", p.cfg.CheckInterval),
		logx.Int("quota_limit", p.cfg.QuotaLimit),
		logx.Duration("quota_window", p.cfg.QuotaWindow),
	)
	if p.cfg.AnnounceStart {
		_ = p.Notify(ctx, StartNotification(p.handles, p.clock.Now()))
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		res := p.Cycle(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err := p.wait(ctx, res.Wait); err != nil {
			return nil
		}
		if res.QuotaExceeded {
			p.state.Window.Reset(p.clock.Now())
			p.log.Info("quota window reset", logx.String("cycle", res.ID))
		}
	}
}

// Cycle runs a single pass and never waits.
func (p *Poller) Cycle(ctx context.Context) CycleResult {
	now := p.clock.Now()
	res := CycleResult{ID: uuid.NewString(), Started: now, Wait: p.cfg.CheckInterval}
	log := p.log.With(logx.String("cycle", res.ID))

	if !p.state.Window.Allow(now) {
		res.Skipped = true
		log.Debug("request quota used up; skipping check",
			logx.Int("count", p.state.Window.Count()),
			logx.Int("limit", p.state.Window.Limit()),
			logx.Duration("resets_in", p.state.Window.Remaining(now)),
		)
		p.publish(EventCycleDone, now, res)
		return res
	}

	trace := p.cfg.DebugFirstCheck && !p.state.traced
	p.state.traced = true

	out, err := p.fetch.SearchRecent(ctx, twitter.SearchQuery{
		AuthorIDs:  p.ids,
		Since:      now.Add(-p.cfg.Lookback),
		MaxResults: p.cfg.MaxResults,
		Trace:      trace,
	})
	if err != nil {
		res.Err = err
		if ctx.Err() != nil {
			res.Wait = 0
			return res
		}
		if twitter.IsQuotaExceeded(err) {
			return p.quotaExceeded(log, res, err)
		}
		log.Error("fetch failed", logx.Err(err))
		p.publish(EventFetchFailed, now, res)
		if p.cfg.ForwardErrors {
			_ = p.Notify(ctx, ErrorNotification(err, now))
		}
		return res
	}

	p.state.Window.Record()
	p.state.Checks++
	res.Fetched = len(out.Posts)
	if res.Fetched == 0 {
		log.Info("no new posts", logx.Time("at", now))
	} else {
		log.Info("found posts", logx.Int("count", res.Fetched), logx.Time("at", now))
	}
	if out.Quota.Known {
		log.Debug("api quota", logx.Int("remaining", out.Quota.Remaining), logx.Time("reset", out.Quota.Reset))
	}

	p.deliverAll(ctx, log, &res, out.Posts)
	p.publish(EventCycleDone, now, res)
	return res
}

func (p *Poller) quotaExceeded(log logx.Logger, res CycleResult, err error) CycleResult {
	now := p.clock.Now()
	p.state.Window.Exhaust()
	res.QuotaExceeded = true
	res.Wait = p.state.Window.Remaining(now)
	log.Warn("search quota exceeded; waiting for window reset",
		logx.Duration("wait", res.Wait),
		logx.Duration("api_reset_in", twitter.RetryAfter(err, now)),
	)
	p.publish(EventQuotaExceeded, now, res)
	return res
}

func (p *Poller) deliverAll(ctx context.Context, log logx.Logger, res *CycleResult, posts []twitter.Post) {
	if p.state.Seen.Trim() {
		log.Info("seen set cleared", logx.Int("capacity", p.state.Seen.Capacity()))
	}
	for _, post := range posts {
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}
		if !p.state.Seen.Add(post.ID) {
			res.Duplicates++
			continue
		}
		p.deliverPost(ctx, log, res, post)
	}
	if p.state.Seen.Trim() {
		log.Info("seen set cleared", logx.Int("capacity", p.state.Seen.Capacity()))
	}
}

// deliverPost sends one post. Once started, the send is detached from ctx
// cancellation and bounded only by the delivery timeout.
func (p *Poller) deliverPost(ctx context.Context, log logx.Logger, res *CycleResult, post twitter.Post) {
	handle := p.handleFor(post.AuthorID)
	link := Permalink(p.cfg.PermalinkBase, post.ID)
	at := p.clock.Now()

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.DeliveryTimeout)
	err := p.sink.Deliver(dctx, postNotification(post, handle, link, at))
	cancel()

	ev := DeliveryEvent{
		ID:        uuid.NewString(),
		CycleID:   res.ID,
		PostID:    post.ID,
		Handle:    handle,
		AuthorID:  post.AuthorID,
		Permalink: link,
		Sink:      p.sink.Name(),
		At:        at,
	}
	if err != nil {
		res.DeliveryErrs++
		ev.Err = err.Error()
		log.Warn("delivery failed", logx.String("post", post.ID), logx.String("handle", handle), logx.Err(err))
		p.bus.Publish(eventbus.Event{Type: EventDeliveryFailed, Time: at, Data: ev})
		return
	}
	res.Delivered++
	log.Info("sent alert", logx.String("post", post.ID), logx.String("handle", handle), logx.String("sink", ev.Sink))
	p.bus.Publish(eventbus.Event{Type: EventPostDelivered, Time: at, Data: ev})
}

func (p *Poller) handleFor(authorID string) string {
	if h, ok := p.byID[authorID]; ok {
		return h
	}
	return authorID
}

// Notify delivers a status or error notification, best-effort.
func (p *Poller) Notify(ctx context.Context, n sink.Notification) error {
	dctx, cancel := context.WithTimeout(ctx, p.cfg.DeliveryTimeout)
	defer cancel()
	if err := p.sink.Deliver(dctx, n); err != nil {
		p.log.Warn("notification failed", logx.String("kind", string(n.Kind)), logx.Err(err))
		return err
	}
	return nil
}

func (p *Poller) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	var tick func(time.Duration)
	if p.display != nil && p.showDisplay.Load() {
		tick = func(left time.Duration) {
			p.display.Countdown(left, p.state.Window.Snapshot(p.clock.Now()))
		}
		defer p.display.Clear()
	}
	return p.clock.Wait(ctx, d, tick)
}

func (p *Poller) publish(typ string, at time.Time, res CycleResult) {
	p.bus.Publish(eventbus.Event{Type: typ, Time: at, Data: res})
}
