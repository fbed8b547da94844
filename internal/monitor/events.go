package monitor

import "time"

// Event types published on the bus by the Poller.
const (
	EventCycleDone      = "monitor.cycle.done"
	EventPostDelivered  = "post.delivered"
	EventDeliveryFailed = "delivery.failed"
	EventQuotaExceeded  = "quota.exceeded"
	EventFetchFailed    = "fetch.failed"
)

// DeliveryEvent is the payload of post.delivered and delivery.failed.
type DeliveryEvent struct {
	ID        string
	CycleID   string
	PostID    string
	Handle    string
	AuthorID  string
	Permalink string
	Sink      string
	At        time.Time
	Err       string
}
