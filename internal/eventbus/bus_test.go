package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(1)
	c, unsubC := b.Subscribe(1)
	defer unsubA()
	defer unsubC()

	b.Publish(Event{Type: "x", Data: 1})

	ea := <-a
	ec := <-c
	assert.Equal(t, "x", ea.Type)
	assert.Equal(t, "x", ec.Type)
	assert.False(t, ea.Time.IsZero())
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: "first"})
	b.Publish(Event{Type: "second"})

	e := <-ch
	assert.Equal(t, "first", e.Type)
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %q", e.Type)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()
	_, ok := <-ch
	assert.False(t, ok)
	b.Publish(Event{Type: "after"})
}

func TestConsumeFiltersTypes(t *testing.T) {
	t.Parallel()
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan string, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		Consume(ctx, b, 8, func(e Event) { got <- e.Type }, "keep")
	}()

	// Consume subscribes asynchronously; publish until the subscriber sees one.
	require.Eventually(t, func() bool {
		b.Publish(Event{Type: "drop"})
		b.Publish(Event{Type: "keep"})
		return len(got) > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	for len(got) > 0 {
		assert.Equal(t, "keep", <-got)
	}
}
