package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/character-catalog/pkg/filter"
)

// gate is a FetchFunc source that blocks until released.
type gate struct {
	release chan struct{}
	val     string
	err     error
	calls   atomic.Int32
}

func newGate(val string, err error) *gate {
	return &gate{release: make(chan struct{}), val: val, err: err}
}

func (g *gate) fetch(ctx context.Context) (string, error) {
	g.calls.Add(1)
	select {
	case <-g.release:
		return g.val, g.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *gate) open() { close(g.release) }

// immediate returns a FetchFunc that resolves at once.
func immediate(val string, err error, calls *atomic.Int32) FetchFunc[string] {
	return func(ctx context.Context) (string, error) {
		if calls != nil {
			calls.Add(1)
		}
		return val, err
	}
}

func newTestStore(t *testing.T) *Store[string] {
	t.Helper()
	s := NewStore[string]("test", zerolog.Nop())
	t.Cleanup(s.Close)
	return s
}

func await(t *testing.T, s *Store[string], key QueryKey) Snapshot[string] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := s.Await(ctx, key)
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	return snap
}

var (
	keyPage1 = KeyFor(filter.State{Page: 1})
	keyPage2 = KeyFor(filter.State{Page: 2})
)

func TestStore_FetchDedup(t *testing.T) {
	s := newTestStore(t)
	g := newGate("page-1", nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap := s.Fetch(keyPage1, g.fetch)
			if snap.Status != StatusPending {
				t.Errorf("Status = %v, want %v", snap.Status, StatusPending)
			}
		}()
	}
	wg.Wait()

	g.open()
	snap := await(t, s, keyPage1)

	if got := g.calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
	if snap.Status != StatusSuccess || snap.Data != "page-1" {
		t.Errorf("snapshot = %+v, want success with page-1", snap)
	}
}

func TestStore_EquivalentFiltersShareFetch(t *testing.T) {
	s := newTestStore(t)
	g := newGate("page-1", nil)

	s.Fetch(KeyFor(filter.Normalize(filter.Raw{Page: "1", Name: ""})), g.fetch)
	s.Fetch(KeyFor(filter.Normalize(filter.Raw{})), g.fetch)

	g.open()
	await(t, s, keyPage1)

	if got := g.calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStore_CachedSuccess(t *testing.T) {
	s := newTestStore(t)
	var calls atomic.Int32

	s.Fetch(keyPage1, immediate("a", nil, &calls))
	await(t, s, keyPage1)

	snap := s.Fetch(keyPage1, immediate("b", nil, &calls))
	if snap.Status != StatusSuccess || snap.Data != "a" {
		t.Errorf("snapshot = %+v, want cached success a", snap)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
}

func TestStore_RefreshRetainsPayload(t *testing.T) {
	s := newTestStore(t)

	s.Fetch(keyPage1, immediate("old", nil, nil))
	await(t, s, keyPage1)

	g := newGate("new", nil)
	snap := s.Fetch(keyPage1, g.fetch, WithRefresh())
	if snap.Status != StatusPending {
		t.Errorf("Status = %v, want pending", snap.Status)
	}
	if !snap.HasData || snap.Data != "old" {
		t.Errorf("payload during refetch = %q (has %v), want old", snap.Data, snap.HasData)
	}

	// a second refresh attaches to the one in flight
	s.Fetch(keyPage1, g.fetch, WithRefresh())

	g.open()
	snap = await(t, s, keyPage1)
	if snap.Data != "new" {
		t.Errorf("Data = %q, want new", snap.Data)
	}
	if got := g.calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
}

func TestStore_ErrorKeepsPayload(t *testing.T) {
	s := newTestStore(t)
	boom := errors.New("boom")

	s.Fetch(keyPage1, immediate("good", nil, nil))
	await(t, s, keyPage1)

	s.Fetch(keyPage1, immediate("", boom, nil), WithRefresh())
	snap := await(t, s, keyPage1)

	if snap.Status != StatusError {
		t.Errorf("Status = %v, want error", snap.Status)
	}
	if !errors.Is(snap.Err, boom) {
		t.Errorf("Err = %v, want %v", snap.Err, boom)
	}
	if !snap.HasData || snap.Data != "good" {
		t.Errorf("payload after error = %q (has %v), want good", snap.Data, snap.HasData)
	}
}

func TestStore_ErrorWithoutSuccessRetries(t *testing.T) {
	s := newTestStore(t)
	var calls atomic.Int32

	s.Fetch(keyPage1, immediate("", errors.New("down"), &calls))
	snap := await(t, s, keyPage1)
	if snap.HasData {
		t.Error("failed first fetch should carry no payload")
	}

	s.Fetch(keyPage1, immediate("up", nil, &calls))
	snap = await(t, s, keyPage1)

	if got := calls.Load(); got != 2 {
		t.Errorf("fetch calls = %d, want 2", got)
	}
	if snap.Status != StatusSuccess || snap.Data != "up" {
		t.Errorf("snapshot = %+v, want success up", snap)
	}
}

func TestStore_Invalidate(t *testing.T) {
	s := newTestStore(t)
	var calls atomic.Int32

	s.Fetch(keyPage1, immediate("p1", nil, &calls))
	s.Fetch(keyPage2, immediate("p2", nil, &calls))
	await(t, s, keyPage1)
	await(t, s, keyPage2)

	s.Invalidate(keyPage1)

	s.Fetch(keyPage1, immediate("p1-fresh", nil, &calls))
	s.Fetch(keyPage2, immediate("p2-fresh", nil, &calls))
	p1 := await(t, s, keyPage1)
	p2 := await(t, s, keyPage2)

	if got := calls.Load(); got != 3 {
		t.Errorf("fetch calls = %d, want 3", got)
	}
	if p1.Data != "p1-fresh" {
		t.Errorf("invalidated key Data = %q, want p1-fresh", p1.Data)
	}
	if p2.Data != "p2" {
		t.Errorf("untouched key Data = %q, want p2", p2.Data)
	}

	// the fresh success clears the invalidation
	s.Fetch(keyPage1, immediate("again", nil, &calls))
	if got := calls.Load(); got != 3 {
		t.Errorf("fetch calls after revalidation = %d, want 3", got)
	}
}

func TestStore_InvalidateDuringFetch(t *testing.T) {
	s := newTestStore(t)
	g := newGate("issued-before", nil)

	s.Fetch(keyPage1, g.fetch)
	s.Invalidate(keyPage1)
	g.open()
	await(t, s, keyPage1)

	var calls atomic.Int32
	s.Fetch(keyPage1, immediate("issued-after", nil, &calls))
	snap := await(t, s, keyPage1)

	if calls.Load() != 1 || snap.Data != "issued-after" {
		t.Errorf("fetch issued before invalidation must not satisfy it: calls=%d data=%q", calls.Load(), snap.Data)
	}
}

// TestStore_StaleOutcomeDiscarded resolves an older call after a newer one
// for the same entry.
func TestStore_StaleOutcomeDiscarded(t *testing.T) {
	s := newTestStore(t)
	e := s.entry(keyPage1)

	older := &call{seq: s.seq.Add(1), done: make(chan struct{})}
	newer := &call{seq: s.seq.Add(1), done: make(chan struct{})}
	e.mu.Lock()
	e.issued = newer.seq
	e.inflight = newer
	e.mu.Unlock()

	s.resolve(e, newer, "newer", nil, 0)
	s.resolve(e, older, "older", nil, 0)

	snap := s.Peek(keyPage1)
	if snap.Data != "newer" {
		t.Errorf("Data = %q, want newer", snap.Data)
	}
	if snap.Seq != newer.seq {
		t.Errorf("Seq = %d, want %d", snap.Seq, newer.seq)
	}
	select {
	case <-older.done:
	default:
		t.Error("discarded call should still be marked done")
	}
}

func TestStore_Subscribe(t *testing.T) {
	s := newTestStore(t)

	var mu sync.Mutex
	var seen []Status
	unsubscribe := s.Subscribe(keyPage1, func(snap Snapshot[string]) {
		mu.Lock()
		seen = append(seen, snap.Status)
		mu.Unlock()
	})

	g := newGate("x", nil)
	s.Fetch(keyPage1, g.fetch)
	g.open()
	await(t, s, keyPage1)

	mu.Lock()
	got := append([]Status(nil), seen...)
	mu.Unlock()
	if len(got) != 2 || got[0] != StatusPending || got[1] != StatusSuccess {
		t.Errorf("notifications = %v, want [pending success]", got)
	}

	unsubscribe()
	s.Fetch(keyPage1, immediate("y", nil, nil), WithRefresh())
	await(t, s, keyPage1)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Errorf("notifications after unsubscribe = %d, want 2", len(seen))
	}
}

func TestStore_AwaitContextCancel(t *testing.T) {
	s := newTestStore(t)
	g := newGate("slow", nil)
	defer g.open()

	s.Fetch(keyPage1, g.fetch)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	snap, err := s.Await(ctx, keyPage1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Await error = %v, want deadline exceeded", err)
	}
	if snap.Status != StatusPending {
		t.Errorf("Status = %v, want pending", snap.Status)
	}
}

func TestStore_AwaitUnknownKey(t *testing.T) {
	s := newTestStore(t)

	snap, err := s.Await(context.Background(), keyPage2)
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if snap.Status != StatusIdle {
		t.Errorf("Status = %v, want idle", snap.Status)
	}
}

func TestStore_Close(t *testing.T) {
	s := NewStore[string]("test", zerolog.Nop())
	g := newGate("never", nil)

	s.Fetch(keyPage1, g.fetch)
	s.Close()

	snap := s.Peek(keyPage1)
	if snap.Status != StatusError || !errors.Is(snap.Err, context.Canceled) {
		t.Errorf("snapshot after close = %+v, want canceled error", snap)
	}

	var calls atomic.Int32
	s.Fetch(keyPage2, immediate("late", nil, &calls))
	if calls.Load() != 0 {
		t.Error("Fetch after Close should not start a fetch")
	}

	// closing twice is a no-op
	s.Close()
}
