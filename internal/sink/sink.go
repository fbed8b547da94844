// Package sink delivers monitor notifications to an operator: a Telegram
// channel or a local audible alert.
package sink

import (
	"context"
	"time"
)

type Kind string

const (
	KindPost   Kind = "post"
	KindStatus Kind = "status"
	KindError  Kind = "error"
)

// Notification is one message for the operator. Post notifications carry
// the source handle, text and permalink; status and error notifications
// only use Text.
type Notification struct {
	Kind      Kind
	Handle    string
	PostID    string
	Text      string
	Permalink string
	At        time.Time
}

// Sink delivers notifications. Implementations must honor ctx.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n Notification) error
}
