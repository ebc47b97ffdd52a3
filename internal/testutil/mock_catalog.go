// Package testutil provides testing utilities for the character catalog.
package testutil

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockPageSize matches the page size of the real catalog.
const MockPageSize = 20

// MockRef is a named link as served by the catalog.
type MockRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// MockCharacter is a character record as served by the catalog.
type MockCharacter struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Status   string   `json:"status"`
	Species  string   `json:"species"`
	Type     string   `json:"type"`
	Gender   string   `json:"gender"`
	Origin   MockRef  `json:"origin"`
	Location MockRef  `json:"location"`
	Image    string   `json:"image"`
	Episode  []string `json:"episode"`
	URL      string   `json:"url"`
	Created  string   `json:"created"`
}

type mockInfo struct {
	Count int     `json:"count"`
	Pages int     `json:"pages"`
	Next  *string `json:"next"`
	Prev  *string `json:"prev"`
}

type mockPage struct {
	Info    mockInfo        `json:"info"`
	Results []MockCharacter `json:"results"`
}

// MockResponse defines a canned response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockCatalog is an in-process character catalog for tests. It serves
// /character with page, name and status filtering and /character/{id}.
type MockCatalog struct {
	server *httptest.Server

	mu         sync.RWMutex
	characters []MockCharacter
	handlers   map[string]http.HandlerFunc
	queued     []MockResponse
	delay      time.Duration
	etags      bool

	// Tracking
	RequestCount      int
	ConditionalCount  int
	NotModifiedCount  int
	LastRequestHeader http.Header
	requests          map[string]int
}

// NewMockCatalog starts a mock catalog serving the given characters.
func NewMockCatalog(characters []MockCharacter) *MockCatalog {
	m := &MockCatalog{
		characters: characters,
		handlers:   make(map[string]http.HandlerFunc),
		requests:   make(map[string]int),
		etags:      true,
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL returns the base URL of the mock catalog.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockCatalog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.NotModifiedCount = 0
	m.LastRequestHeader = nil
	m.requests = make(map[string]int)
}

// SetCharacters replaces the served data set.
func (m *MockCatalog) SetCharacters(characters []MockCharacter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.characters = characters
}

// SetHandler overrides the handler for an exact path.
func (m *MockCatalog) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for an exact path.
func (m *MockCatalog) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeCanned(w, resp)
	})
}

// QueueResponses serves the given responses, one per request and in order,
// before falling back to normal handling.
func (m *MockCatalog) QueueResponses(resps ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued = append(m.queued, resps...)
}

// SetDelay delays every response.
func (m *MockCatalog) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// EnableETags turns ETag validators and 304 responses on or off.
func (m *MockCatalog) EnableETags(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etags = on
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCatalog) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockCatalog) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// GetNotModifiedCount returns the number of 304 responses served.
func (m *MockCatalog) GetNotModifiedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.NotModifiedCount
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockCatalog) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader.Clone()
}

// RequestsFor returns how many requests hit the given path and query, for
// example "/character?page=2".
func (m *MockCatalog) RequestsFor(requestURI string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[requestURI]
}

func (m *MockCatalog) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++
	m.LastRequestHeader = r.Header.Clone()
	m.requests[r.URL.RequestURI()]++
	if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
		m.ConditionalCount++
	}
	var queued *MockResponse
	if len(m.queued) > 0 {
		q := m.queued[0]
		m.queued = m.queued[1:]
		queued = &q
	}
	handler, exists := m.handlers[r.URL.Path]
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	switch {
	case queued != nil:
		writeCanned(w, *queued)
	case exists:
		handler(w, r)
	case r.URL.Path == "/character" || r.URL.Path == "/character/":
		m.serveList(w, r)
	case strings.HasPrefix(r.URL.Path, "/character/"):
		m.serveEntity(w, r, strings.TrimPrefix(r.URL.Path, "/character/"))
	default:
		writeError(w, http.StatusNotFound, "There is nothing here")
	}
}

func (m *MockCatalog) serveList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := strings.ToLower(q.Get("name"))
	status := strings.ToLower(q.Get("status"))

	m.mu.RLock()
	var matched []MockCharacter
	for _, c := range m.characters {
		if name != "" && !strings.Contains(strings.ToLower(c.Name), name) {
			continue
		}
		if status != "" && strings.ToLower(c.Status) != status {
			continue
		}
		matched = append(matched, c)
	}
	m.mu.RUnlock()

	pages := (len(matched) + MockPageSize - 1) / MockPageSize
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	if len(matched) == 0 || page > pages {
		writeError(w, http.StatusNotFound, "There is nothing here")
		return
	}

	start := (page - 1) * MockPageSize
	end := min(start+MockPageSize, len(matched))

	body := mockPage{
		Info: mockInfo{
			Count: len(matched),
			Pages: pages,
			Next:  m.pageLink(q, page+1, pages),
			Prev:  m.pageLink(q, page-1, pages),
		},
		Results: matched[start:end],
	}
	m.writeJSON(w, r, body)
}

func (m *MockCatalog) serveEntity(w http.ResponseWriter, r *http.Request, raw string) {
	id, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Hey! you must provide an id")
		return
	}

	m.mu.RLock()
	var found *MockCharacter
	for i := range m.characters {
		if m.characters[i].ID == id {
			c := m.characters[i]
			found = &c
			break
		}
	}
	m.mu.RUnlock()

	if found == nil {
		writeError(w, http.StatusNotFound, "Character not found")
		return
	}
	m.writeJSON(w, r, found)
}

func (m *MockCatalog) pageLink(q url.Values, page, pages int) *string {
	if page < 1 || page > pages {
		return nil
	}
	v := url.Values{}
	for k, vals := range q {
		v[k] = vals
	}
	v.Set("page", strconv.Itoa(page))
	link := m.server.URL + "/character?" + v.Encode()
	return &link
}

func (m *MockCatalog) writeJSON(w http.ResponseWriter, r *http.Request, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	m.mu.RLock()
	etags := m.etags
	m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if etags {
		etag := fmt.Sprintf(`"%x"`, sha256.Sum256(data))
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			m.mu.Lock()
			m.NotModifiedCount++
			m.mu.Unlock()
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeCanned(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
