// Package ratelimit throttles requests to the character catalog.
//
// Two mechanisms work together: a Limiter spaces out outgoing requests with
// a token bucket, and a Tracker records the backoff window announced by 429
// responses. The Tracker keeps its state in Redis when a client is given, so
// every process talking to the same catalog honours the same window.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Redis keys for backoff state storage.
const (
	RedisKeyBackoffUntil = "catalog:rate_limit:backoff_until"
	RedisKeyHits         = "catalog:rate_limit:hits"
	RedisKeyLastUpdate   = "catalog:rate_limit:last_update"
)

const (
	// HeaderRetryAfter carries the backoff requested by the server.
	HeaderRetryAfter = "Retry-After"

	// DefaultRetryAfter applies when a 429 carries no usable Retry-After.
	DefaultRetryAfter = 5 * time.Second

	// MaxRetryAfter caps any backoff announced by the server.
	MaxRetryAfter = 5 * time.Minute
)

// BackoffState is the current rate limit backoff window.
type BackoffState struct {
	// Until is the end of the backoff window. Zero means no window was set.
	Until time.Time `json:"until"`

	// Hits counts 429 responses recorded so far.
	Hits int `json:"hits"`

	// LastUpdate is when a 429 was last recorded.
	LastUpdate time.Time `json:"last_update"`
}

// Active reports whether requests must still wait.
func (s *BackoffState) Active() bool {
	return time.Now().Before(s.Until)
}

// Remaining returns the time left in the window, or 0 once it has passed.
func (s *BackoffState) Remaining() time.Duration {
	d := time.Until(s.Until)
	if d < 0 {
		return 0
	}
	return d
}

// IsStale returns true if the state was last updated longer than maxAge ago.
func (s *BackoffState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// ParseRetryAfter reads the Retry-After header, given either as delay seconds
// or as an HTTP date. The result is clamped to [0, MaxRetryAfter].
func ParseRetryAfter(headers http.Header) (time.Duration, bool) {
	v := strings.TrimSpace(headers.Get(HeaderRetryAfter))
	if v == "" {
		return 0, false
	}

	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(v); err == nil {
		d = time.Until(at)
	} else {
		return 0, false
	}

	switch {
	case d < 0:
		d = 0
	case d > MaxRetryAfter:
		d = MaxRetryAfter
	}
	return d, true
}
