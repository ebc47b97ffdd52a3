package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by Await after the store has been closed.
var ErrClosed = errors.New("cache closed")

// FetchFunc loads the payload of one key from the source of truth.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// FetchOption customizes a single Fetch call.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	refresh bool
}

// WithRefresh bypasses a cached success and fetches again, unless a fetch for
// the key is already in flight, in which case the caller attaches to it.
func WithRefresh() FetchOption {
	return func(o *fetchOptions) { o.refresh = true }
}

// Store holds one entry per QueryKey and runs at most one fetch per key at a
// time. Fetches run in their own goroutines; callers observe them through
// snapshots, Await and Subscribe.
type Store[T any] struct {
	name    string
	entries *xsync.MapOf[string, *entry[T]]
	seq     atomic.Uint64
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	lifecycle sync.RWMutex
	closed    bool
	wg        sync.WaitGroup
}

// NewStore creates an empty store. The name labels metrics and log lines.
func NewStore[T any](name string, logger zerolog.Logger) *Store[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Store[T]{
		name:    name,
		entries: xsync.NewMapOf[string, *entry[T]](),
		logger:  logger.With().Str("store", name).Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// entry returns the entry for key, creating it atomically on first use.
func (s *Store[T]) entry(key QueryKey) *entry[T] {
	e, loaded := s.entries.LoadOrCompute(key.String(), func() *entry[T] {
		return newEntry[T](key)
	})
	if !loaded {
		QueryEntries.WithLabelValues(s.name).Inc()
	}
	return e
}

// Fetch returns the current snapshot of key and, when needed, starts a fetch
// in the background. A fetch starts only if none is in flight and the entry
// has no success yet, has been invalidated, or WithRefresh is given.
// Fetch never blocks on the network.
func (s *Store[T]) Fetch(key QueryKey, fn FetchFunc[T], opts ...FetchOption) Snapshot[T] {
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}

	e := s.entry(key)

	s.lifecycle.RLock()
	defer s.lifecycle.RUnlock()

	e.mu.Lock()
	if s.closed {
		snap := e.snapshotLocked()
		e.mu.Unlock()
		return snap
	}

	if e.inflight != nil {
		snap := e.snapshotLocked()
		e.mu.Unlock()
		QueryDedup.WithLabelValues(s.name).Inc()
		s.logger.Debug().Str("key", key.String()).Uint64("seq", e.inflight.seq).Msg("Attached to in-flight fetch")
		return snap
	}

	if !e.needsFetchLocked(o.refresh) {
		snap := e.snapshotLocked()
		e.mu.Unlock()
		QueryHits.WithLabelValues(s.name).Inc()
		return snap
	}

	c := &call{seq: s.seq.Add(1), done: make(chan struct{})}
	e.issued = c.seq
	e.inflight = c
	e.status = StatusPending
	e.version++
	snap := e.snapshotLocked()
	subs := e.subscribersLocked()
	s.wg.Add(1)
	e.mu.Unlock()

	QueryFetches.WithLabelValues(s.name).Inc()
	s.logger.Debug().
		Str("key", key.String()).
		Uint64("seq", c.seq).
		Bool("refresh", o.refresh).
		Bool("has_data", snap.HasData).
		Msg("Fetch issued")

	go s.run(e, c, fn)

	notify(subs, snap)
	return snap
}

func (s *Store[T]) run(e *entry[T], c *call, fn FetchFunc[T]) {
	defer s.wg.Done()

	start := time.Now()
	data, err := fn(s.ctx)
	s.resolve(e, c, data, err, time.Since(start))
}

// resolve applies the outcome of call c. Only the latest issued fetch may
// change the entry; an older outcome is discarded. Waiters on c.done are
// released after subscribers have been notified.
func (s *Store[T]) resolve(e *entry[T], c *call, data T, err error, took time.Duration) {
	defer close(c.done)

	e.mu.Lock()
	if e.inflight == c {
		e.inflight = nil
	}

	if c.seq < e.issued {
		e.mu.Unlock()
		StaleDiscards.WithLabelValues(s.name, "entry").Inc()
		s.logger.Debug().
			Str("key", e.key.String()).
			Uint64("seq", c.seq).
			Uint64("latest", e.issued).
			Msg("Discarded superseded fetch outcome")
		return
	}

	e.applied = c.seq
	e.updatedAt = time.Now()
	e.version++
	if err != nil {
		e.status = StatusError
		e.err = err
	} else {
		e.status = StatusSuccess
		e.data = data
		e.hasData = true
		e.err = nil
		e.succeeded = c.seq
	}
	snap := e.snapshotLocked()
	subs := e.subscribersLocked()
	e.mu.Unlock()

	if err != nil {
		QueryErrors.WithLabelValues(s.name).Inc()
		s.logger.Warn().
			Err(err).
			Str("key", e.key.String()).
			Uint64("seq", c.seq).
			Bool("has_data", snap.HasData).
			Dur("duration", took).
			Msg("Fetch failed")
	} else {
		s.logger.Debug().
			Str("key", e.key.String()).
			Uint64("seq", c.seq).
			Dur("duration", took).
			Msg("Fetch succeeded")
	}

	notify(subs, snap)
}

// Peek returns the current snapshot of key without fetching.
func (s *Store[T]) Peek(key QueryKey) Snapshot[T] {
	e, ok := s.entries.Load(key.String())
	if !ok {
		return Snapshot[T]{Key: key, Status: StatusIdle}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Await blocks until the in-flight fetch of key, if any, resolves and returns
// the resulting snapshot. It returns immediately when nothing is in flight.
func (s *Store[T]) Await(ctx context.Context, key QueryKey) (Snapshot[T], error) {
	e, ok := s.entries.Load(key.String())
	if !ok {
		return Snapshot[T]{Key: key, Status: StatusIdle}, nil
	}

	e.mu.Lock()
	c := e.inflight
	if c == nil {
		snap := e.snapshotLocked()
		e.mu.Unlock()
		return snap, nil
	}
	e.mu.Unlock()

	select {
	case <-c.done:
		return s.Peek(key), nil
	case <-ctx.Done():
		return s.Peek(key), ctx.Err()
	case <-s.ctx.Done():
		// the fetch sees the same cancellation and resolves shortly
		<-c.done
		return s.Peek(key), ErrClosed
	}
}

// Invalidate marks the cached success of key as outdated so the next Fetch
// goes to the source. Other entries are untouched. An in-flight fetch is not
// interrupted.
func (s *Store[T]) Invalidate(key QueryKey) {
	e, ok := s.entries.Load(key.String())
	if !ok {
		return
	}
	e.mu.Lock()
	e.fence = s.seq.Add(1)
	e.mu.Unlock()

	s.logger.Debug().Str("key", key.String()).Msg("Entry invalidated")
}

// Subscribe registers fn to receive every snapshot change of key. Callbacks
// run outside the store's locks, possibly from fetch goroutines; snapshots
// can be ordered by their Version. The returned function unsubscribes.
func (s *Store[T]) Subscribe(key QueryKey, fn func(Snapshot[T])) func() {
	e := s.entry(key)

	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
		})
	}
}

// Len returns the number of keys held by the store.
func (s *Store[T]) Len() int {
	return s.entries.Size()
}

// Close cancels all in-flight fetches and waits for them to resolve. Fetch
// calls after Close return snapshots without starting new fetches.
func (s *Store[T]) Close() {
	s.lifecycle.Lock()
	if s.closed {
		s.lifecycle.Unlock()
		return
	}
	s.closed = true
	s.lifecycle.Unlock()

	s.cancel()
	s.wg.Wait()
	QueryEntries.WithLabelValues(s.name).Sub(float64(s.entries.Size()))
}
