// Package filter models what the user wants to see in the character catalog:
// a page number plus optional name and status constraints.
//
// Every constructor in this package normalizes. Invalid input never produces
// an error; it degrades to "no constraint" (or page 1 for the page number).
//
// # Basic Usage
//
//	// Derive state from a location descriptor
//	state := filter.FromValues(req.URL.Query())
//
//	// Apply a user intent; changing the name resets the page
//	name := "rick"
//	next := filter.Apply(state, filter.Partial{Name: &name})
//
//	// Write it back
//	req.URL.RawQuery = next.Values().Encode()
//
// # Page Reset
//
// Any merge that changes the name or status constraint resets the page to 1,
// so the user never silently lands on page 7 of a different result set. A
// merge that changes only the page leaves the constraints untouched.
package filter
