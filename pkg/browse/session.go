package browse

import (
	"sync"

	"github.com/Sternrassler/character-catalog/pkg/cache"
	"github.com/Sternrassler/character-catalog/pkg/catalog"
	"github.com/Sternrassler/character-catalog/pkg/filter"
)

// PageView is what a session shows for its current filter state.
type PageView = cache.View[catalog.PageResult]

// Session is one display slot over a collection's pages. It remembers the
// page count of the last successful fetch for the current constraints, which
// bounds page navigation.
type Session struct {
	collection *Collection
	observer   *cache.Observer[catalog.PageResult]

	mu       sync.Mutex
	bound    int
	boundKey cache.QueryKey
	hasBound bool
	onChange func(PageView)
}

// NewSession creates an idle session over c.
func NewSession(c *Collection) *Session {
	s := &Session{
		collection: c,
		observer:   cache.NewObserver(c.pages),
	}
	s.observer.OnChange(s.changed)
	return s
}

// Show points the session at state and returns the view. Until the page of
// state has data, the view carries the previously shown page as placeholder.
func (s *Session) Show(state filter.State) PageView {
	state = filter.NormalizeState(state)
	s.record(s.observer.Current())
	v := s.observer.Observe(cache.KeyFor(state), s.collection.pageFetcher(state))
	s.record(v)
	return v
}

// State returns the filter state currently shown.
func (s *Session) State() (filter.State, bool) {
	key, ok := s.observer.Key()
	if !ok {
		return filter.Default(), false
	}
	return key.State(), true
}

// Current returns the view of the current state.
func (s *Session) Current() PageView {
	return s.observer.Current()
}

// Refetch invalidates the current page and fetches it again. The current
// payload stays visible while the fetch is in flight.
func (s *Session) Refetch() PageView {
	if key, ok := s.observer.Key(); ok {
		s.collection.pages.Invalidate(key)
	}
	v := s.observer.Refetch()
	s.record(v)
	return v
}

// PageBound returns the page count reported by the last successful fetch
// with the current name and status. It is unknown until such a fetch
// resolves.
func (s *Session) PageBound() (int, bool) {
	key, active := s.observer.Key()
	if !active {
		return 0, false
	}
	s.record(s.observer.Current())

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasBound || !key.State().SameConstraints(s.boundKey.State()) {
		return 0, false
	}
	return s.bound, true
}

// OnChange registers fn to receive every view change. Only one callback is
// kept; passing nil removes it.
func (s *Session) OnChange(fn func(PageView)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Close detaches the session from the collection.
func (s *Session) Close() {
	s.observer.Close()
	s.mu.Lock()
	s.onChange = nil
	s.mu.Unlock()
}

func (s *Session) changed(v PageView) {
	s.record(v)

	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

// record takes the page bound from a view holding the key's own payload.
func (s *Session) record(v PageView) {
	if !v.HasData || v.Placeholder {
		return
	}
	s.mu.Lock()
	s.bound = v.Data.Info.Pages
	s.boundKey = v.Key
	s.hasBound = true
	s.mu.Unlock()
}
