package app

import (
	"context"
	"errors"
)

var (
	// ErrConfig wraps problems with the config file, .env or environment.
	ErrConfig = errors.New("configuration error")
	// ErrResolution wraps startup checks against remote services: API
	// access, handle lookup and the chat test message.
	ErrResolution = errors.New("verification failed")
)

const (
	ExitOK         = 0
	ExitFatal      = 1
	ExitConfig     = 2
	ExitResolution = 3
)

// ExitCode maps a Run or Verify error to the process exit status.
// Cancellation is a graceful stop.
func ExitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return ExitOK
	case errors.Is(err, ErrConfig):
		return ExitConfig
	case errors.Is(err, ErrResolution):
		return ExitResolution
	default:
		return ExitFatal
	}
}
