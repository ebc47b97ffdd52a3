package browse

import (
	"github.com/Sternrassler/character-catalog/pkg/filter"
)

// Navigator supplies the page bound and refreshes the shown page. *Session
// implements it.
type Navigator interface {
	PageBound() (int, bool)
	Refetch() PageView
}

// Controller computes the next filter.State for a user intent. Transitions
// are pure apart from Refresh; the caller owns the state.
type Controller struct {
	nav Navigator
}

// NewController creates a controller. nav may be nil, in which case the page
// bound is never known and Refresh does nothing.
func NewController(nav Navigator) *Controller {
	return &Controller{nav: nav}
}

// SetName filters by name. The page resets to 1 when the name changes.
func (c *Controller) SetName(s filter.State, name string) filter.State {
	return filter.Apply(s, filter.WithName(name))
}

// SetStatus filters by status. The page resets to 1 when the status changes.
func (c *Controller) SetStatus(s filter.State, status filter.Status) filter.State {
	return filter.Apply(s, filter.WithStatus(status))
}

// SetPage moves to page, clamped to [1, bound] when the bound is known. An
// empty result set reports 0 pages and clamps to page 1.
func (c *Controller) SetPage(s filter.State, page int) filter.State {
	return filter.Apply(s, filter.WithPage(c.clamp(page)))
}

// Clear drops all constraints and returns to page 1.
func (c *Controller) Clear(s filter.State) filter.State {
	return filter.Clear(s)
}

// SetFilters merges p into s. A page in p is clamped like SetPage; a changed
// name or status resets the page to 1 regardless.
func (c *Controller) SetFilters(s filter.State, p filter.Partial) filter.State {
	if p.Page != nil {
		clamped := c.clamp(*p.Page)
		p.Page = &clamped
	}
	return filter.Apply(s, p)
}

// Refresh refetches the shown page. The state is returned unchanged.
func (c *Controller) Refresh(s filter.State) filter.State {
	if c.nav != nil {
		c.nav.Refetch()
	}
	return filter.NormalizeState(s)
}

// NextPage moves one page forward within the bound.
func (c *Controller) NextPage(s filter.State) filter.State {
	return c.SetPage(s, filter.NormalizeState(s).Page+1)
}

// PrevPage moves one page back, stopping at 1.
func (c *Controller) PrevPage(s filter.State) filter.State {
	return c.SetPage(s, filter.NormalizeState(s).Page-1)
}

// FirstPage moves to page 1.
func (c *Controller) FirstPage(s filter.State) filter.State {
	return c.SetPage(s, 1)
}

// LastPage moves to the last known page. Without a known bound the state is
// unchanged.
func (c *Controller) LastPage(s filter.State) filter.State {
	if bound, ok := c.bound(); ok {
		return c.SetPage(s, bound)
	}
	return filter.NormalizeState(s)
}

// PageBound returns the bound used for clamping. A known bound is at least 1.
func (c *Controller) PageBound() (int, bool) {
	return c.bound()
}

func (c *Controller) bound() (int, bool) {
	if c.nav == nil {
		return 0, false
	}
	bound, ok := c.nav.PageBound()
	if !ok {
		return 0, false
	}
	return max(bound, 1), true
}

func (c *Controller) clamp(page int) int {
	if page < 1 {
		page = 1
	}
	if bound, ok := c.bound(); ok && page > bound {
		page = bound
	}
	return page
}
