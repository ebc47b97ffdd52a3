package cache

import (
	"sync"
	"time"
)

// View is what a display slot shows for its current key.
type View[T any] struct {
	Key QueryKey

	// Data is valid when HasData is true. When Placeholder is true it is the
	// last successful payload of a previously observed key, shown while the
	// current key has nothing to show yet.
	Data        T
	HasData     bool
	Placeholder bool

	// IsFetching reports a fetch for Key in flight. IsLoading is the subset
	// where Key has no payload of its own yet.
	IsFetching bool
	IsLoading  bool

	// IsError reports that the latest fetch for Key failed. Data, if any, is
	// the last successful payload of Key itself.
	IsError bool
	Err     error

	UpdatedAt time.Time
}

// Observer is a single display slot over a Store. It follows one key at a
// time and keeps the slot visually stable while switching keys: until the new
// key has data, the view carries the previous key's payload as a placeholder.
//
// Outcomes for a key the slot has moved away from are discarded.
type Observer[T any] struct {
	store *Store[T]

	mu       sync.Mutex
	active   bool
	closed   bool
	key      QueryKey
	fn       FetchFunc[T]
	slot     uint64 // bumped on every key switch
	snap     Snapshot[T]
	last     T // last successful payload shown by this slot, any key
	hasLast  bool
	unsub    func()
	onChange func(View[T])
}

// NewObserver creates an idle observer over store.
func NewObserver[T any](store *Store[T]) *Observer[T] {
	return &Observer[T]{store: store}
}

// OnChange registers fn to receive every view change. Only one callback is
// kept; passing nil removes it.
func (o *Observer[T]) OnChange(fn func(View[T])) {
	o.mu.Lock()
	o.onChange = fn
	o.mu.Unlock()
}

// Observe points the slot at key, issuing a fetch through the store when
// needed, and returns the resulting view.
func (o *Observer[T]) Observe(key QueryKey, fn FetchFunc[T], opts ...FetchOption) View[T] {
	o.mu.Lock()
	if o.closed {
		v := o.viewLocked()
		o.mu.Unlock()
		return v
	}

	if !o.active || o.key != key {
		if o.unsub != nil {
			o.unsub()
		}
		o.slot++
		o.active = true
		o.key = key
		o.snap = Snapshot[T]{Key: key, Status: StatusIdle}
		slot := o.slot
		o.unsub = o.store.Subscribe(key, func(s Snapshot[T]) {
			o.apply(slot, s)
		})
	}
	o.fn = fn
	slot := o.slot
	o.mu.Unlock()

	o.apply(slot, o.store.Fetch(key, fn, opts...))
	return o.Current()
}

// Refetch fetches the current key again, bypassing its cached success.
func (o *Observer[T]) Refetch() View[T] {
	o.mu.Lock()
	if !o.active || o.closed {
		v := o.viewLocked()
		o.mu.Unlock()
		return v
	}
	key, fn, slot := o.key, o.fn, o.slot
	o.mu.Unlock()

	o.apply(slot, o.store.Fetch(key, fn, WithRefresh()))
	return o.Current()
}

// Current returns the view of the current key.
func (o *Observer[T]) Current() View[T] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.viewLocked()
}

// Key returns the key the slot currently follows.
func (o *Observer[T]) Key() (QueryKey, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.key, o.active
}

// Close detaches the slot from the store.
func (o *Observer[T]) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.unsub != nil {
		o.unsub()
		o.unsub = nil
	}
	o.closed = true
	o.onChange = nil
}

func (o *Observer[T]) apply(slot uint64, s Snapshot[T]) {
	o.mu.Lock()
	if o.closed || slot != o.slot {
		o.mu.Unlock()
		StaleDiscards.WithLabelValues(o.store.name, "observer").Inc()
		return
	}
	if s.Version < o.snap.Version {
		o.mu.Unlock()
		return
	}
	o.snap = s
	if s.HasData {
		o.last = s.Data
		o.hasLast = true
	}
	v := o.viewLocked()
	cb := o.onChange
	o.mu.Unlock()

	if cb != nil {
		cb(v)
	}
}

func (o *Observer[T]) viewLocked() View[T] {
	s := o.snap
	v := View[T]{
		Key:        o.key,
		IsFetching: s.Status == StatusPending,
		IsLoading:  s.Status == StatusPending && !s.HasData,
		IsError:    s.Status == StatusError,
		Err:        s.Err,
		UpdatedAt:  s.UpdatedAt,
	}

	switch {
	case s.HasData:
		v.Data = s.Data
		v.HasData = true
	case !v.IsError && o.hasLast:
		v.Data = o.last
		v.HasData = true
		v.Placeholder = true
	}
	return v
}
