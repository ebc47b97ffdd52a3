package cache

import (
	"sync"
	"time"
)

// Status is the fetch status of a cache entry.
type Status string

const (
	// StatusIdle means the key has never been fetched.
	StatusIdle Status = "idle"

	// StatusPending means a fetch for the key is in flight.
	StatusPending Status = "pending"

	// StatusSuccess means the latest fetch succeeded.
	StatusSuccess Status = "success"

	// StatusError means the latest fetch failed. Any earlier payload is kept.
	StatusError Status = "error"
)

// Snapshot is a point-in-time copy of a cache entry.
type Snapshot[T any] struct {
	Key    QueryKey
	Status Status

	// Data is the last successful payload; valid only when HasData is true.
	Data    T
	HasData bool

	// Err is the error of the latest fetch when Status is StatusError.
	Err error

	// Seq is the sequence number of the fetch whose outcome is reflected.
	Seq uint64

	// Version increases on every change of the entry and orders snapshots
	// delivered to subscribers.
	Version uint64

	// UpdatedAt is when the latest fetch resolved.
	UpdatedAt time.Time
}

// IsLoading reports whether a fetch for the key is in flight.
func (s Snapshot[T]) IsLoading() bool { return s.Status == StatusPending }

// IsError reports whether the latest fetch failed.
func (s Snapshot[T]) IsError() bool { return s.Status == StatusError }

// call is one issued fetch. done is closed when it resolves.
type call struct {
	seq  uint64
	done chan struct{}
}

// entry is the mutable per-key record. All fields are guarded by mu.
type entry[T any] struct {
	mu sync.Mutex

	key     QueryKey
	status  Status
	data    T
	hasData bool
	err     error

	issued    uint64 // seq of the latest issued fetch
	applied   uint64 // seq of the outcome currently reflected
	succeeded uint64 // seq of the latest successful outcome
	fence     uint64 // successes issued before the fence are invalidated

	version   uint64
	updatedAt time.Time

	inflight *call

	subs    map[uint64]func(Snapshot[T])
	nextSub uint64
}

func newEntry[T any](key QueryKey) *entry[T] {
	return &entry[T]{
		key:    key,
		status: StatusIdle,
		subs:   make(map[uint64]func(Snapshot[T])),
	}
}

// needsFetchLocked decides whether a Fetch must go to the network.
func (e *entry[T]) needsFetchLocked(refresh bool) bool {
	if e.inflight != nil {
		return false
	}
	return refresh || !e.hasData || e.succeeded < e.fence
}

func (e *entry[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{
		Key:       e.key,
		Status:    e.status,
		Data:      e.data,
		HasData:   e.hasData,
		Err:       e.err,
		Seq:       e.applied,
		Version:   e.version,
		UpdatedAt: e.updatedAt,
	}
}

func (e *entry[T]) subscribersLocked() []func(Snapshot[T]) {
	if len(e.subs) == 0 {
		return nil
	}
	out := make([]func(Snapshot[T]), 0, len(e.subs))
	for _, fn := range e.subs {
		out = append(out, fn)
	}
	return out
}

func notify[T any](subs []func(Snapshot[T]), snap Snapshot[T]) {
	for _, fn := range subs {
		fn(snap)
	}
}
