package filter

import (
	"fmt"
	"net/url"
	"strconv"
)

// Status is a character status constraint. The zero value means "any status".
type Status string

const (
	// StatusAny is the absent status constraint.
	StatusAny Status = ""

	// StatusAlive matches living characters.
	StatusAlive Status = "Alive"

	// StatusDead matches dead characters.
	StatusDead Status = "Dead"

	// StatusUnknown matches characters whose status is unknown.
	// The catalog spells this value in lower case.
	StatusUnknown Status = "unknown"
)

// Statuses returns the closed set of status constraints in display order.
func Statuses() []Status {
	return []Status{StatusAlive, StatusDead, StatusUnknown}
}

// ParseStatus returns the status matching s exactly, or StatusAny.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusAlive, StatusDead, StatusUnknown:
		return Status(s)
	default:
		return StatusAny
	}
}

// Valid reports whether s is a member of the closed status set.
func (s Status) Valid() bool {
	return ParseStatus(string(s)) != StatusAny
}

// Query parameter names used by the location descriptor and the catalog API.
const (
	ParamPage   = "page"
	ParamName   = "name"
	ParamStatus = "status"
)

// State is a normalized filter: Page >= 1, Name "" when absent, Status
// StatusAny when absent. States are values; transitions return new ones.
type State struct {
	Page   int
	Name   string
	Status Status
}

// Raw is unvalidated filter input as read from a location descriptor.
type Raw struct {
	Page   string
	Name   string
	Status string
}

// Default returns the unfiltered first page.
func Default() State {
	return State{Page: 1}
}

// Normalize converts raw input into a State. It never fails: an unparsable or
// non-positive page becomes 1, an empty name is absent, and a status outside
// the closed set is absent.
func Normalize(raw Raw) State {
	page, err := strconv.Atoi(raw.Page)
	if err != nil {
		page = 1
	}
	return NormalizeState(State{
		Page:   page,
		Name:   raw.Name,
		Status: ParseStatus(raw.Status),
	})
}

// NormalizeState applies the normalization rules to an already typed state.
func NormalizeState(s State) State {
	if s.Page < 1 {
		s.Page = 1
	}
	if !s.Status.Valid() {
		s.Status = StatusAny
	}
	return s
}

// Raw returns the state in its unvalidated form, suitable for round-tripping
// through Normalize.
func (s State) Raw() Raw {
	return Raw{
		Page:   strconv.Itoa(s.Page),
		Name:   s.Name,
		Status: string(s.Status),
	}
}

// HasName reports whether a name constraint is present.
func (s State) HasName() bool { return s.Name != "" }

// HasStatus reports whether a status constraint is present.
func (s State) HasStatus() bool { return s.Status != StatusAny }

// Filtered reports whether any constraint besides the page is present.
func (s State) Filtered() bool { return s.HasName() || s.HasStatus() }

// SameConstraints reports whether s and other select the same result set,
// ignoring the page.
func (s State) SameConstraints(other State) bool {
	return s.Name == other.Name && s.Status == other.Status
}

// Values encodes the state as a location descriptor. Absent constraints are
// omitted; the page is always present.
func (s State) Values() url.Values {
	s = NormalizeState(s)
	v := url.Values{}
	v.Set(ParamPage, strconv.Itoa(s.Page))
	if s.HasName() {
		v.Set(ParamName, s.Name)
	}
	if s.HasStatus() {
		v.Set(ParamStatus, string(s.Status))
	}
	return v
}

// String returns a compact representation for logs.
func (s State) String() string {
	return fmt.Sprintf("page=%d name=%q status=%q", s.Page, s.Name, s.Status)
}

// FromValues derives a normalized state from a location descriptor.
func FromValues(v url.Values) State {
	return Normalize(Raw{
		Page:   v.Get(ParamPage),
		Name:   v.Get(ParamName),
		Status: v.Get(ParamStatus),
	})
}
