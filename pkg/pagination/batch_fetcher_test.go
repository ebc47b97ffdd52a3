package pagination

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/character-catalog/pkg/cache"
	"github.com/Sternrassler/character-catalog/pkg/catalog"
	"github.com/Sternrassler/character-catalog/pkg/filter"
)

// fakeLoader serves pages of a result set with pages pages, one character
// per page whose ID equals the page number.
type fakeLoader struct {
	pages  int
	fail   map[int]error
	delay  func(page int) time.Duration
	calls  atomic.Int32
	active atomic.Int32
	peak   atomic.Int32

	mu   sync.Mutex
	seen []filter.State
}

func (f *fakeLoader) LoadPage(ctx context.Context, s filter.State, _ ...cache.FetchOption) (catalog.PageResult, error) {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.seen = append(f.seen, s)
	f.mu.Unlock()

	if f.delay != nil {
		select {
		case <-time.After(f.delay(s.Page)):
		case <-ctx.Done():
			return catalog.PageResult{}, ctx.Err()
		}
	}
	if err := f.fail[s.Page]; err != nil {
		return catalog.PageResult{}, err
	}
	if f.pages == 0 {
		return catalog.EmptyPage(), nil
	}
	return catalog.PageResult{
		Info:    catalog.Info{Count: f.pages, Pages: f.pages},
		Results: []catalog.Character{{ID: s.Page, Name: "c"}},
	}, nil
}

func ids(r *Result) []int {
	var out []int
	for _, c := range r.Characters() {
		out = append(out, c.ID)
	}
	return out
}

func TestFetchAll_PageOrder(t *testing.T) {
	// later pages answer first
	loader := &fakeLoader{
		pages: 6,
		delay: func(page int) time.Duration { return time.Duration(7-page) * 5 * time.Millisecond },
	}
	bf := NewBatchFetcher(loader, Config{MaxConcurrency: 3})

	res, err := bf.FetchAll(context.Background(), filter.State{Page: 4, Name: "smith"})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	want := []int{1, 2, 3, 4, 5, 6}
	got := ids(res)
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
	if !res.Complete() || res.TotalPages != 6 || res.Count != 6 {
		t.Errorf("result = %+v, want complete 6 pages", res)
	}
	if got := loader.calls.Load(); got != 6 {
		t.Errorf("loads = %d, want 6", got)
	}
	if peak := loader.peak.Load(); peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}

	// constraints are kept on every page
	loader.mu.Lock()
	defer loader.mu.Unlock()
	for _, s := range loader.seen {
		if s.Name != "smith" {
			t.Errorf("page %d loaded with name %q, want smith", s.Page, s.Name)
		}
	}
}

func TestFetchAll_SinglePage(t *testing.T) {
	loader := &fakeLoader{pages: 1}
	res, err := NewBatchFetcher(loader, DefaultConfig()).FetchAll(context.Background(), filter.Default())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(res.Pages) != 1 || loader.calls.Load() != 1 {
		t.Errorf("pages = %d, loads = %d; want 1, 1", len(res.Pages), loader.calls.Load())
	}
}

func TestFetchAll_EmptyResult(t *testing.T) {
	loader := &fakeLoader{pages: 0}
	res, err := NewBatchFetcher(loader, DefaultConfig()).FetchAll(context.Background(), filter.State{Name: "nobody"})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(res.Characters()) != 0 || !res.Complete() {
		t.Errorf("result = %+v, want complete and empty", res)
	}
}

func TestFetchAll_FirstPageError(t *testing.T) {
	boom := errors.New("boom")
	loader := &fakeLoader{pages: 3, fail: map[int]error{1: boom}}

	res, err := NewBatchFetcher(loader, DefaultConfig()).FetchAll(context.Background(), filter.Default())
	if !errors.Is(err, boom) {
		t.Errorf("FetchAll() error = %v, want boom", err)
	}
	if res != nil {
		t.Errorf("result = %+v, want nil", res)
	}
}

func TestFetchAll_PartialResult(t *testing.T) {
	loader := &fakeLoader{pages: 5, fail: map[int]error{2: errors.New("x"), 4: errors.New("y")}}

	res, err := NewBatchFetcher(loader, Config{MaxConcurrency: 2}).FetchAll(context.Background(), filter.Default())
	if err == nil {
		t.Fatal("FetchAll() error = nil, want partial failure")
	}
	if res == nil || res.Complete() {
		t.Fatalf("result = %+v, want partial", res)
	}
	if len(res.Failed) != 2 || res.Failed[0] != 2 || res.Failed[1] != 4 {
		t.Errorf("Failed = %v, want [2 4]", res.Failed)
	}
	got := ids(res)
	if len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 5 {
		t.Errorf("ids = %v, want [1 3 5]", got)
	}
}

func TestFetchAll_MaxPages(t *testing.T) {
	loader := &fakeLoader{pages: 40}
	var progress []int
	var mu sync.Mutex
	cfg := Config{
		MaxConcurrency: 2,
		MaxPages:       3,
		OnProgress: func(done, total int) {
			mu.Lock()
			progress = append(progress, done)
			mu.Unlock()
		},
	}

	res, err := NewBatchFetcher(loader, cfg).FetchAll(context.Background(), filter.Default())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if res.TotalPages != 3 || len(res.Pages) != 3 {
		t.Errorf("TotalPages = %d, Pages = %d; want 3, 3", res.TotalPages, len(res.Pages))
	}

	mu.Lock()
	defer mu.Unlock()
	if len(progress) != 3 || progress[2] != 3 {
		t.Errorf("progress = %v, want three calls ending at 3", progress)
	}
}

func TestFetchAll_Cancelled(t *testing.T) {
	loader := &fakeLoader{
		pages: 20,
		delay: func(page int) time.Duration {
			if page == 1 {
				return 0
			}
			return time.Second
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := NewBatchFetcher(loader, Config{MaxConcurrency: 2}).FetchAll(ctx, filter.Default())
	if err == nil {
		t.Fatal("FetchAll() error = nil, want cancellation")
	}
	if res == nil || len(res.Pages) != 1 || len(res.Failed) != 19 {
		t.Errorf("result = %+v, want page 1 only with 19 failed", res)
	}
}
