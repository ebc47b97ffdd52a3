package catalog

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	conditionalRequestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_conditional_requests_total",
		Help: "Total conditional requests sent with If-None-Match or If-Modified-Since",
	})

	notModifiedResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_not_modified_total",
		Help: "Total 304 Not Modified responses served from stored bodies",
	})
)

// validator is what the client remembers about the last 200 response for a
// URL so a refetch can be sent as a conditional request.
type validator struct {
	ETag         string
	LastModified time.Time
	Body         []byte
	StoredAt     time.Time

	seq uint64
}

// usable reports whether the validator can back a conditional request.
func (v validator) usable() bool {
	return v.ETag != "" || !v.LastModified.IsZero()
}

// maxValidators bounds the stored bodies per client.
const maxValidators = 512

// validators holds one validator per request URL, at most limit of them.
// Storing a new URL beyond the limit evicts the least recently stored one.
type validators struct {
	entries *xsync.MapOf[string, validator]
	limit   int

	mu  sync.Mutex // serializes writers
	seq uint64
}

func newValidators(limit int) *validators {
	return &validators{
		entries: xsync.NewMapOf[string, validator](),
		limit:   max(limit, 1),
	}
}

// apply adds If-None-Match or If-Modified-Since to req when a validator is
// known for its URL and returns that validator.
func (vs *validators) apply(req *http.Request) (validator, bool) {
	v, ok := vs.entries.Load(req.URL.String())
	if !ok || !v.usable() {
		return validator{}, false
	}

	// ETag is more precise than Last-Modified
	if v.ETag != "" {
		req.Header.Set("If-None-Match", v.ETag)
	} else {
		req.Header.Set("If-Modified-Since", v.LastModified.UTC().Format(http.TimeFormat))
	}
	conditionalRequestsSent.Inc()
	return v, true
}

// remember stores the validators of a 200 response together with its body.
// Responses without validators replace any stale entry with nothing.
func (vs *validators) remember(url string, header http.Header, body []byte) {
	v := validator{
		ETag:     header.Get("ETag"),
		Body:     body,
		StoredAt: time.Now(),
	}
	if lm := header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			v.LastModified = t
		}
	}

	vs.mu.Lock()
	defer vs.mu.Unlock()

	if !v.usable() {
		vs.entries.Delete(url)
		return
	}
	if _, ok := vs.entries.Load(url); !ok && vs.entries.Size() >= vs.limit {
		vs.evictOldestLocked()
	}
	vs.seq++
	v.seq = vs.seq
	vs.entries.Store(url, v)
}

func (vs *validators) evictOldestLocked() {
	var (
		oldest string
		lowest uint64
		found  bool
	)
	vs.entries.Range(func(url string, v validator) bool {
		if !found || v.seq < lowest {
			oldest, lowest, found = url, v.seq, true
		}
		return true
	})
	if found {
		vs.entries.Delete(oldest)
	}
}

func (vs *validators) forget(url string) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.entries.Delete(url)
}

func (vs *validators) len() int {
	return vs.entries.Size()
}
