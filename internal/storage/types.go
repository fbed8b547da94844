package storage

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// DefaultMaxRecords bounds the journal; older records are compacted away.
const DefaultMaxRecords = 5000

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file next to Path
//   - "sqlite": SQLite database file (pure Go driver)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	MaxRecords  int
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Delivery is one attempt to hand a post to the sink. Error is empty on
// success.
type Delivery struct {
	ID        string    `json:"id"`
	CycleID   string    `json:"cycle_id,omitempty"`
	PostID    string    `json:"post_id"`
	Handle    string    `json:"handle"`
	AuthorID  string    `json:"author_id,omitempty"`
	Permalink string    `json:"permalink"`
	Sink      string    `json:"sink"`
	At        time.Time `json:"at"`
	Error     string    `json:"error,omitempty"`
}

func (d Delivery) OK() bool { return d.Error == "" }
