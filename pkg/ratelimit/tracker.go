package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	rateLimitHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_rate_limit_hits_total",
		Help: "Total number of 429 responses recorded",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_rate_limit_blocks_total",
		Help: "Total number of requests held back by an active backoff window",
	})

	rateLimitBackoffSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_rate_limit_backoff_seconds",
		Help: "Length of the most recently recorded backoff window",
	})
)

// Tracker records the backoff window set by rate-limited responses and gates
// requests while it is active. With a nil Redis client the window is kept in
// process memory.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger

	mu    sync.Mutex
	local BackoffState
}

// NewTracker creates a new rate limit tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// Shared reports whether the window is shared through Redis.
func (t *Tracker) Shared() bool {
	return t.redis != nil
}

// GetState returns the current backoff state. A missing window is returned as
// the zero state.
func (t *Tracker) GetState(ctx context.Context) (*BackoffState, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		state := t.local
		return &state, nil
	}

	state := &BackoffState{}

	untilMs, err := t.redis.Get(ctx, RedisKeyBackoffUntil).Int64()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, fmt.Errorf("get backoff until: %w", err)
	default:
		state.Until = time.UnixMilli(untilMs)
	}

	hits, err := t.redis.Get(ctx, RedisKeyHits).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get hits: %w", err)
	}
	state.Hits = hits

	lastMs, err := t.redis.Get(ctx, RedisKeyLastUpdate).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", err)
	}
	if lastMs > 0 {
		state.LastUpdate = time.UnixMilli(lastMs)
	}

	return state, nil
}

// RecordRateLimited opens a backoff window of length retryAfter. A window
// that already ends later is kept.
func (t *Tracker) RecordRateLimited(ctx context.Context, retryAfter time.Duration) error {
	if retryAfter <= 0 {
		retryAfter = DefaultRetryAfter
	}
	if retryAfter > MaxRetryAfter {
		retryAfter = MaxRetryAfter
	}

	now := time.Now()
	until := now.Add(retryAfter)

	rateLimitHitsTotal.Inc()
	rateLimitBackoffSeconds.Set(retryAfter.Seconds())

	if t.redis == nil {
		t.mu.Lock()
		if until.After(t.local.Until) {
			t.local.Until = until
		}
		t.local.Hits++
		t.local.LastUpdate = now
		t.mu.Unlock()
	} else {
		current, err := t.GetState(ctx)
		if err != nil {
			return err
		}

		pipe := t.redis.Pipeline()
		if until.After(current.Until) {
			pipe.Set(ctx, RedisKeyBackoffUntil, until.UnixMilli(), retryAfter)
		}
		pipe.Incr(ctx, RedisKeyHits)
		pipe.Set(ctx, RedisKeyLastUpdate, now.UnixMilli(), 0)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("store backoff state in redis: %w", err)
		}
	}

	t.logger.Warn().
		Dur("retry_after", retryAfter).
		Time("until", until).
		Bool("shared", t.Shared()).
		Msg("Catalog rate limit hit - backing off")

	return nil
}

// ShouldAllowRequest reports whether a request may be sent now. When it may
// not, the remaining length of the backoff window is returned.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, time.Duration, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.Active() {
		wait := state.Remaining()
		t.logger.Debug().
			Dur("wait_duration", wait).
			Int("hits", state.Hits).
			Msg("Backoff window active - holding request")
		rateLimitBlocksTotal.Inc()
		return false, wait, nil
	}

	return true, 0, nil
}

// Wait blocks until no backoff window is active or ctx is done.
func (t *Tracker) Wait(ctx context.Context) error {
	for {
		allowed, wait, err := t.ShouldAllowRequest(ctx)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Reset clears the backoff state.
func (t *Tracker) Reset(ctx context.Context) error {
	if t.redis == nil {
		t.mu.Lock()
		t.local = BackoffState{}
		t.mu.Unlock()
		return nil
	}

	if err := t.redis.Del(ctx, RedisKeyBackoffUntil, RedisKeyHits, RedisKeyLastUpdate).Err(); err != nil {
		return fmt.Errorf("clear backoff state: %w", err)
	}
	return nil
}
