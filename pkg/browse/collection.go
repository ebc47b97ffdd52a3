package browse

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/character-catalog/pkg/cache"
	"github.com/Sternrassler/character-catalog/pkg/catalog"
	"github.com/Sternrassler/character-catalog/pkg/filter"
)

// Source fetches pages and characters from the catalog. *catalog.Client
// implements it.
type Source interface {
	FetchPage(ctx context.Context, s filter.State) (catalog.PageResult, error)
	FetchEntity(ctx context.Context, id int) (catalog.Character, error)
}

// Collection caches catalog pages and characters by query key.
type Collection struct {
	source     Source
	pages      *cache.Store[catalog.PageResult]
	characters *cache.Store[catalog.Character]
	logger     zerolog.Logger
}

// NewCollection creates a collection over source.
func NewCollection(source Source, logger zerolog.Logger) *Collection {
	return &Collection{
		source:     source,
		pages:      cache.NewStore[catalog.PageResult]("pages", logger),
		characters: cache.NewStore[catalog.Character]("characters", logger),
		logger:     logger,
	}
}

// pageFetcher returns the fetch function for one page key. A collection
// ErrNotFound means no character matched and is stored as an empty page.
func (c *Collection) pageFetcher(s filter.State) cache.FetchFunc[catalog.PageResult] {
	return func(ctx context.Context) (catalog.PageResult, error) {
		page, err := c.source.FetchPage(ctx, s)
		if errors.Is(err, catalog.ErrNotFound) {
			c.logger.Debug().Str("key", cache.KeyFor(s).String()).Msg("No matches - storing empty page")
			return catalog.EmptyPage(), nil
		}
		return page, err
	}
}

func (c *Collection) entityFetcher(id int) cache.FetchFunc[catalog.Character] {
	return func(ctx context.Context) (catalog.Character, error) {
		return c.source.FetchEntity(ctx, id)
	}
}

// FetchPage returns the current snapshot for the page of s, starting a fetch
// when the key has no success yet, was invalidated, or cache.WithRefresh is
// given. It never blocks.
func (c *Collection) FetchPage(s filter.State, opts ...cache.FetchOption) cache.Snapshot[catalog.PageResult] {
	s = filter.NormalizeState(s)
	return c.pages.Fetch(cache.KeyFor(s), c.pageFetcher(s), opts...)
}

// FetchEntity is FetchPage for a single character.
func (c *Collection) FetchEntity(id int, opts ...cache.FetchOption) cache.Snapshot[catalog.Character] {
	return c.characters.Fetch(cache.KeyForEntity(id), c.entityFetcher(id), opts...)
}

// LoadPage fetches the page of s if needed and waits for the outcome. When
// the fetch fails but the page holds an earlier success, that payload is
// returned together with the error.
func (c *Collection) LoadPage(ctx context.Context, s filter.State, opts ...cache.FetchOption) (catalog.PageResult, error) {
	s = filter.NormalizeState(s)
	key := cache.KeyFor(s)
	c.pages.Fetch(key, c.pageFetcher(s), opts...)

	snap, err := c.pages.Await(ctx, key)
	return loaded(snap, err)
}

// LoadEntity fetches a character if needed and waits for the outcome. A
// retained payload is returned with the error like in LoadPage.
func (c *Collection) LoadEntity(ctx context.Context, id int, opts ...cache.FetchOption) (catalog.Character, error) {
	if id < 1 {
		return catalog.Character{}, fmt.Errorf("%w: %d", catalog.ErrInvalidID, id)
	}

	key := cache.KeyForEntity(id)
	c.characters.Fetch(key, c.entityFetcher(id), opts...)

	snap, err := c.characters.Await(ctx, key)
	return loaded(snap, err)
}

// loaded turns an awaited snapshot into a Load result.
func loaded[T any](snap cache.Snapshot[T], awaitErr error) (T, error) {
	var data T
	if snap.HasData {
		data = snap.Data
	}
	switch {
	case awaitErr != nil:
		return data, awaitErr
	case snap.IsError():
		return data, fmt.Errorf("load %s: %w", snap.Key, snap.Err)
	}
	return data, nil
}

// Invalidate makes the next fetch of the page of s go to the catalog. Other
// pages are untouched.
func (c *Collection) Invalidate(s filter.State) {
	c.pages.Invalidate(cache.KeyFor(s))
}

// InvalidateEntity is Invalidate for a single character.
func (c *Collection) InvalidateEntity(id int) {
	c.characters.Invalidate(cache.KeyForEntity(id))
}

// SubscribePage registers fn for every snapshot change of the page of s.
func (c *Collection) SubscribePage(s filter.State, fn func(cache.Snapshot[catalog.PageResult])) func() {
	return c.pages.Subscribe(cache.KeyFor(s), fn)
}

// SubscribeEntity registers fn for every snapshot change of a character.
func (c *Collection) SubscribeEntity(id int, fn func(cache.Snapshot[catalog.Character])) func() {
	return c.characters.Subscribe(cache.KeyForEntity(id), fn)
}

// PeekPage returns the cached snapshot of the page of s without fetching.
func (c *Collection) PeekPage(s filter.State) cache.Snapshot[catalog.PageResult] {
	return c.pages.Peek(cache.KeyFor(s))
}

// PeekEntity returns the cached snapshot of a character without fetching.
func (c *Collection) PeekEntity(id int) cache.Snapshot[catalog.Character] {
	return c.characters.Peek(cache.KeyForEntity(id))
}

// Stats reports the number of cached pages and characters.
func (c *Collection) Stats() (pages, characters int) {
	return c.pages.Len(), c.characters.Len()
}

// Close cancels in-flight fetches and waits for them to finish.
func (c *Collection) Close() {
	c.pages.Close()
	c.characters.Close()
}
