// Package pagination fetches every page of a filtered character listing in parallel
package pagination

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/character-catalog/pkg/cache"
	"github.com/Sternrassler/character-catalog/pkg/catalog"
	"github.com/Sternrassler/character-catalog/pkg/filter"
	"github.com/Sternrassler/character-catalog/pkg/logging"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel page loads.
	// The client's own rate limiter still applies underneath.
	MaxConcurrency int
	// Timeout per page load
	Timeout time.Duration
	// MaxPages stops the export after this many pages (0 = all)
	MaxPages int
	// OnProgress, if set, is called after each page with the pages done so far
	OnProgress func(done, total int)
}

// DefaultConfig returns the default batch configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// PageLoader loads a single page and waits for it. *browse.Collection
// implements it, so exported pages also land in the query cache.
type PageLoader interface {
	LoadPage(ctx context.Context, s filter.State, opts ...cache.FetchOption) (catalog.PageResult, error)
}

// Result is the outcome of a batch fetch. Pages are in page order; a page
// that failed is missing from Pages and listed in Failed.
type Result struct {
	Filter     filter.State
	TotalPages int
	Count      int
	Pages      []catalog.PageResult
	Failed     []int
}

// Characters flattens the fetched pages in page order.
func (r *Result) Characters() []catalog.Character {
	n := 0
	for _, p := range r.Pages {
		n += len(p.Results)
	}
	out := make([]catalog.Character, 0, n)
	for _, p := range r.Pages {
		out = append(out, p.Results...)
	}
	return out
}

// Complete reports whether every page up to TotalPages was fetched.
func (r *Result) Complete() bool {
	return len(r.Failed) == 0 && len(r.Pages) == r.TotalPages
}

type pageOutcome struct {
	number int
	page   catalog.PageResult
	err    error
}

// BatchFetcher handles parallel fetching of all pages of a filter
type BatchFetcher struct {
	loader PageLoader
	config Config
	logger zerolog.Logger
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(loader PageLoader, config Config) *BatchFetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &BatchFetcher{
		loader: loader,
		config: config,
		logger: logging.NewLogger("pagination"),
	}
}

// FetchAll fetches every page of the result set described by the name and
// status of s; the page of s is ignored. The first page determines the page
// count. Failed pages are reported together with the partial result.
func (bf *BatchFetcher) FetchAll(ctx context.Context, s filter.State) (*Result, error) {
	start := time.Now()
	s = filter.Apply(s, filter.WithPage(1))

	first, err := bf.load(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}

	total := first.Info.Pages
	if bf.config.MaxPages > 0 && total > bf.config.MaxPages {
		total = bf.config.MaxPages
	}

	res := &Result{Filter: s, TotalPages: max(total, 1), Count: first.Info.Count}
	pages := make([]*catalog.PageResult, res.TotalPages+1)
	pages[1] = &first
	bf.progress(1, res.TotalPages)

	bf.logger.Info().
		Str("filter", s.String()).
		Int("pages", res.TotalPages).
		Int("count", first.Info.Count).
		Msg("Starting parallel page fetch")

	if res.TotalPages > 1 {
		bf.fetchRest(ctx, s, res, pages)
	}

	for n := 1; n <= res.TotalPages; n++ {
		if pages[n] != nil {
			res.Pages = append(res.Pages, *pages[n])
		}
	}

	if len(res.Failed) > 0 {
		bf.logger.Warn().
			Int("fetched", len(res.Pages)).
			Int("total", res.TotalPages).
			Ints("failed", res.Failed).
			Msg("Returning partial results")
		return res, fmt.Errorf("fetched %d/%d pages, failed: %v", len(res.Pages), res.TotalPages, res.Failed)
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	bf.logger.Info().
		Str("filter", s.String()).
		Int("pages", len(res.Pages)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")
	return res, nil
}

func (bf *BatchFetcher) fetchRest(ctx context.Context, s filter.State, res *Result, pages []*catalog.PageResult) {
	queue := make(chan int)
	outcomes := make(chan pageOutcome)

	go func() {
		defer close(queue)
		for n := 2; n <= res.TotalPages; n++ {
			select {
			case queue <- n:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < min(bf.config.MaxConcurrency, res.TotalPages-1); i++ {
		wg.Add(1)
		go bf.worker(ctx, s, queue, outcomes, &wg, i)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	done := 1
	seen := make(map[int]bool, res.TotalPages)
	seen[1] = true
	for o := range outcomes {
		seen[o.number] = true
		if o.err != nil {
			res.Failed = append(res.Failed, o.number)
			continue
		}
		page := o.page
		pages[o.number] = &page
		done++
		bf.progress(done, res.TotalPages)
	}

	// pages never handed out because ctx was cancelled
	for n := 2; n <= res.TotalPages; n++ {
		if !seen[n] {
			res.Failed = append(res.Failed, n)
		}
	}
	slices.Sort(res.Failed)
}

// worker processes pages from the queue
func (bf *BatchFetcher) worker(ctx context.Context, s filter.State, queue <-chan int, outcomes chan<- pageOutcome, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for n := range queue {
		page, err := bf.load(ctx, filter.Apply(s, filter.WithPage(n)))
		if err != nil {
			bf.logger.Warn().
				Err(err).
				Int("worker_id", workerID).
				Int("page", n).
				Msg("Page fetch failed")
		}
		outcomes <- pageOutcome{number: n, page: page, err: err}
		processed++
	}

	bf.logger.Debug().
		Int("worker_id", workerID).
		Int("pages_processed", processed).
		Msg("Worker completed")
}

func (bf *BatchFetcher) load(ctx context.Context, s filter.State) (catalog.PageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()
	return bf.loader.LoadPage(ctx, s)
}

func (bf *BatchFetcher) progress(done, total int) {
	if bf.config.OnProgress != nil {
		bf.config.OnProgress(done, total)
	}
}
