package testutil

import (
	"fmt"
	"net/http"
	"time"
)

var fixtureNames = []string{
	"Rick Sanchez",
	"Morty Smith",
	"Summer Smith",
	"Beth Smith",
	"Jerry Smith",
	"Birdperson",
	"Squanchy",
	"Mr. Poopybutthole",
}

var fixtureStatuses = []string{"Alive", "Dead", "unknown"}

// Characters returns n characters with ids 1..n. Names cycle through a
// fixed list and statuses cycle Alive, Dead, unknown.
func Characters(n int) []MockCharacter {
	out := make([]MockCharacter, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, Character(i, fixtureNames[(i-1)%len(fixtureNames)], fixtureStatuses[(i-1)%len(fixtureStatuses)]))
	}
	return out
}

// Character returns a single character record.
func Character(id int, name, status string) MockCharacter {
	return MockCharacter{
		ID:      id,
		Name:    name,
		Status:  status,
		Species: "Human",
		Gender:  "Male",
		Origin: MockRef{
			Name: "Earth (C-137)",
			URL:  "https://rickandmortyapi.com/api/location/1",
		},
		Location: MockRef{
			Name: "Citadel of Ricks",
			URL:  "https://rickandmortyapi.com/api/location/3",
		},
		Image:   fmt.Sprintf("https://rickandmortyapi.com/api/character/avatar/%d.jpeg", id),
		Episode: []string{"https://rickandmortyapi.com/api/episode/1"},
		URL:     fmt.Sprintf("https://rickandmortyapi.com/api/character/%d", id),
		Created: time.Date(2017, 11, 4, 18, 48, 46, 250_000_000, time.UTC).Format("2006-01-02T15:04:05.000Z"),
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter string) MockResponse {
	resp := MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Too many requests"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
	if retryAfter != "" {
		resp.Headers["Retry-After"] = retryAfter
	}
	return resp
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewNotFoundResponse creates a 404 response as sent for an empty match.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error": "There is nothing here"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewMalformedResponse creates a 200 response whose body is not valid JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"info": `,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
