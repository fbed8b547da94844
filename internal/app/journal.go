package app

import (
	"context"
	"time"

	"kolwatch/internal/eventbus"
	"kolwatch/internal/monitor"
	"kolwatch/internal/storage"
	logx "kolwatch/pkg/logx"
)

// journal appends delivery events to the store. It subscribes on creation
// so no delivery published after newJournal returns is missed.
type journal struct {
	store  storage.Store
	log    logx.Logger
	events <-chan eventbus.Event
	unsub  func()
}

func newJournal(bus eventbus.Bus, store storage.Store, log logx.Logger) *journal {
	events, unsub := bus.Subscribe(256)
	return &journal{store: store, log: log, events: events, unsub: unsub}
}

// run records events until ctx is done, then flushes what is buffered.
func (j *journal) run(ctx context.Context) {
	defer j.unsub()
	for {
		select {
		case <-ctx.Done():
			j.flush()
			return
		case e, ok := <-j.events:
			if !ok {
				return
			}
			j.record(ctx, e)
		}
	}
}

func (j *journal) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case e, ok := <-j.events:
			if !ok {
				return
			}
			j.record(ctx, e)
		default:
			return
		}
	}
}

func (j *journal) record(ctx context.Context, e eventbus.Event) {
	if e.Type != monitor.EventPostDelivered && e.Type != monitor.EventDeliveryFailed {
		return
	}
	ev, ok := e.Data.(monitor.DeliveryEvent)
	if !ok {
		return
	}
	d := storage.Delivery{
		ID:        ev.ID,
		CycleID:   ev.CycleID,
		PostID:    ev.PostID,
		Handle:    ev.Handle,
		AuthorID:  ev.AuthorID,
		Permalink: ev.Permalink,
		Sink:      ev.Sink,
		At:        ev.At,
		Error:     ev.Err,
	}
	if err := j.store.RecordDelivery(context.WithoutCancel(ctx), d); err != nil {
		j.log.Warn("journal write failed", logx.String("post", d.PostID), logx.Err(err))
	}
}
