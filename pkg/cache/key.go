package cache

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/character-catalog/pkg/filter"
)

// Kind separates the key spaces of the cache.
type Kind string

const (
	// KindCharacters identifies a page of the character collection.
	KindCharacters Kind = "characters"

	// KindCharacter identifies a single character by id.
	KindCharacter Kind = "character"
)

// QueryKey is the structural identity of a cached query. It is comparable, so
// two keys built from equal inputs are equal as values and as strings.
type QueryKey struct {
	Kind Kind

	// Collection keys
	Page   int
	Name   string
	Status filter.Status

	// Entity keys
	ID int
}

// KeyFor derives the collection key of a filter state. The state is
// normalized first, so an empty name and an absent name produce the same key.
func KeyFor(s filter.State) QueryKey {
	s = filter.NormalizeState(s)
	return QueryKey{
		Kind:   KindCharacters,
		Page:   s.Page,
		Name:   s.Name,
		Status: s.Status,
	}
}

// KeyForEntity derives the key of a single character.
func KeyForEntity(id int) QueryKey {
	return QueryKey{Kind: KindCharacter, ID: id}
}

// State returns the filter state a collection key was built from.
func (k QueryKey) State() filter.State {
	return filter.State{Page: k.Page, Name: k.Name, Status: k.Status}
}

// String generates a deterministic key string. Absent constraints are omitted.
//
// Example:
//
//	characters:page=2:name=rick:status=Alive
//	character:id=42
func (k QueryKey) String() string {
	parts := []string{string(k.Kind)}

	switch k.Kind {
	case KindCharacter:
		parts = append(parts, fmt.Sprintf("id=%d", k.ID))
	default:
		parts = append(parts, fmt.Sprintf("page=%d", k.Page))
		if k.Name != "" {
			parts = append(parts, "name="+escapeSegment(k.Name))
		}
		if k.Status != filter.StatusAny {
			parts = append(parts, "status="+string(k.Status))
		}
	}

	return strings.Join(parts, ":")
}

// escapeSegment keeps user-supplied names from forging extra key segments.
func escapeSegment(s string) string {
	return strings.NewReplacer("%", "%25", ":", "%3A").Replace(s)
}
