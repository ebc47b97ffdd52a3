package catalog

import "time"

// PageSize is the number of characters the catalog returns per page.
const PageSize = 20

// Ref is a named link to another catalog resource.
type Ref struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Character is a catalog entry. Fields are passed through as served.
type Character struct {
	ID       int       `json:"id"`
	Name     string    `json:"name"`
	Status   string    `json:"status"`
	Species  string    `json:"species"`
	Type     string    `json:"type"`
	Gender   string    `json:"gender"`
	Origin   Ref       `json:"origin"`
	Location Ref       `json:"location"`
	Image    string    `json:"image"`
	Episode  []string  `json:"episode"`
	URL      string    `json:"url"`
	Created  time.Time `json:"created"`
}

// Info describes the result set a page belongs to.
type Info struct {
	// Count is the total number of matching characters.
	Count int `json:"count"`

	// Pages is the total number of pages for the filter.
	Pages int `json:"pages"`

	Next *string `json:"next"`
	Prev *string `json:"prev"`
}

// PageResult is one page of characters in server order.
type PageResult struct {
	Info    Info        `json:"info"`
	Results []Character `json:"results"`
}

// EmptyPage is the result for a filter with no matches.
func EmptyPage() PageResult {
	return PageResult{
		Info:    Info{Count: 0, Pages: 0},
		Results: []Character{},
	}
}

// IsEmpty reports whether the page holds no characters.
func (p PageResult) IsEmpty() bool {
	return len(p.Results) == 0
}

// HasNext reports whether the server announced a following page.
func (p PageResult) HasNext() bool {
	return p.Info.Next != nil
}

// HasPrev reports whether the server announced a preceding page.
func (p PageResult) HasPrev() bool {
	return p.Info.Prev != nil
}
