package storage

import (
	"context"
	"errors"
	"strings"

	logx "kolwatch/pkg/logx"
)

// Store is the journal API used by the app.
type Store interface {
	RecordDelivery(ctx context.Context, d Delivery) error
	// RecentDeliveries returns up to n records, newest first.
	RecentDeliveries(ctx context.Context, n int) ([]Delivery, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = DefaultMaxRecords
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
