package twitter

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrQuotaExceeded matches any APIError caused by an HTTP 429 response.
var ErrQuotaExceeded = errors.New("twitter: request quota exceeded")

// APIError is a non-2xx response from the API.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
	Quota      QuotaInfo
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 300 {
		// cut on a rune boundary so the message stays valid UTF-8
		cut := 297
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut] + "..."
	}
	if body == "" {
		return fmt.Sprintf("twitter %s: http %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("twitter %s: http %d: %s", e.Op, e.StatusCode, body)
}

// Is lets errors.Is(err, ErrQuotaExceeded) classify by status code.
func (e *APIError) Is(target error) bool {
	return target == ErrQuotaExceeded && e.StatusCode == http.StatusTooManyRequests
}

// IsQuotaExceeded reports whether err signals quota exhaustion.
func IsQuotaExceeded(err error) bool { return errors.Is(err, ErrQuotaExceeded) }

// RetryAfter returns how long until the API says the quota resets, or 0 when
// unknown.
func RetryAfter(err error, now time.Time) time.Duration {
	var ae *APIError
	if !errors.As(err, &ae) || !ae.Quota.Known || ae.Quota.Reset.IsZero() {
		return 0
	}
	if d := ae.Quota.Reset.Sub(now); d > 0 {
		return d
	}
	return 0
}
