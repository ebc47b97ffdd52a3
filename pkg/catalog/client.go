// Package catalog provides the HTTP client for the remote character catalog
// with throttling, retries, conditional requests and error classification.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/character-catalog/pkg/filter"
	"github.com/Sternrassler/character-catalog/pkg/logging"
	"github.com/Sternrassler/character-catalog/pkg/ratelimit"
)

// DefaultBaseURL is the public character catalog.
const DefaultBaseURL = "https://rickandmortyapi.com/api"

// maxBodyBytes bounds the size of a response body read into memory.
const maxBodyBytes = 4 << 20

// Endpoint labels used in metrics and logs.
const (
	EndpointCharacters = "characters"
	EndpointCharacter  = "character"
)

// Prometheus metrics for catalog client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Total catalog requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_request_duration_seconds",
		Help:    "Catalog request duration in seconds by endpoint, retries included",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_errors_total",
		Help: "Total catalog errors by class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the catalog root, e.g. https://rickandmortyapi.com/api.
	BaseURL string

	// UserAgent is sent with every request.
	UserAgent string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// RateLimit is the request rate in requests per second; 0 disables
	// client-side throttling. Burst is the token bucket size.
	RateLimit float64
	Burst     int

	// Retry controls retries of server, rate limit and network errors.
	Retry RetryConfig

	// ConditionalRequests enables If-None-Match / If-Modified-Since on
	// refetches of a URL seen before.
	ConditionalRequests bool

	// Redis, when set, shares the 429 backoff window across processes.
	Redis *redis.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:             DefaultBaseURL,
		UserAgent:           userAgent,
		Timeout:             15 * time.Second,
		RateLimit:           5,
		Burst:               5,
		Retry:               DefaultRetryConfig(),
		ConditionalRequests: true,
	}
}

// Validate checks the configuration.
func (cfg Config) Validate() error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("base url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}
	if cfg.UserAgent == "" {
		return fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}
	if cfg.RateLimit < 0 {
		return fmt.Errorf("rate_limit must be >= 0 (got %v)", cfg.RateLimit)
	}
	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.BackoffMultiplier < 1 {
		return fmt.Errorf("retry backoff_multiplier must be >= 1 (got %v)", cfg.Retry.BackoffMultiplier)
	}
	return nil
}

// Client talks to the character catalog.
type Client struct {
	httpClient *http.Client
	baseURL    string
	config     Config
	limiter    *ratelimit.Limiter
	tracker    *ratelimit.Tracker
	validators *validators
	logger     zerolog.Logger
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewLogger("catalog-client")

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		config:     cfg,
		limiter:    ratelimit.NewLimiter(cfg.RateLimit, cfg.Burst),
		tracker:    ratelimit.NewTracker(cfg.Redis, logger),
		validators: newValidators(maxValidators),
		logger:     logger,
	}, nil
}

// PageURL returns the collection URL for a filter state. Only present
// constraints appear in the query; page is always sent.
func (c *Client) PageURL(s filter.State) string {
	return c.baseURL + "/character?" + filter.NormalizeState(s).Values().Encode()
}

// EntityURL returns the URL of a single character.
func (c *Client) EntityURL(id int) string {
	return c.baseURL + "/character/" + strconv.Itoa(id)
}

// FetchPage fetches one page of characters matching s. A filter with no
// matches yields ErrNotFound; callers decide how to present it.
func (c *Client) FetchPage(ctx context.Context, s filter.State) (PageResult, error) {
	var page PageResult
	if err := c.get(ctx, EndpointCharacters, c.PageURL(s), &page); err != nil {
		return PageResult{}, err
	}
	if page.Results == nil {
		page.Results = []Character{}
	}
	return page, nil
}

// FetchEntity fetches a single character by id.
func (c *Client) FetchEntity(ctx context.Context, id int) (Character, error) {
	if id < 1 {
		return Character{}, fmt.Errorf("%w: %d", ErrInvalidID, id)
	}

	var ch Character
	if err := c.get(ctx, EndpointCharacter, c.EntityURL(id), &ch); err != nil {
		return Character{}, err
	}
	return ch, nil
}

// get performs a GET with throttling, conditional headers, retries and error
// classification, and decodes a successful body into out.
func (c *Client) get(ctx context.Context, endpoint, rawURL string, out any) error {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	return retryWithBackoff(ctx, c.config.Retry, c.logger, func(attempt int) error {
		return c.attempt(ctx, endpoint, rawURL, attempt, out)
	})
}

func (c *Client) attempt(ctx context.Context, endpoint, rawURL string, attempt int, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if err := c.tracker.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// backoff state unreadable: proceed rather than stall browsing
		c.logger.Warn().Err(err).Msg("Rate limit state check failed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	var stored validator
	var conditional bool
	if c.config.ConditionalRequests {
		stored, conditional = c.validators.apply(req)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("url", rawURL).
		Int("attempt", attempt).
		Bool("conditional", conditional).
		Msg("Executing catalog request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return &TransportError{Class: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return &TransportError{StatusCode: resp.StatusCode, Class: ErrorClassNetwork, Message: "read response body", Err: err}
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusNotModified && conditional:
		notModifiedResponses.Inc()
		c.logger.Debug().Str("endpoint", endpoint).Str("url", rawURL).Msg("304 Not Modified - reusing stored body")
		body = stored.Body

	case resp.StatusCode == http.StatusNotFound:
		c.validators.forget(rawURL)
		return fmt.Errorf("%s %s: %w", endpoint, req.URL.RequestURI(), ErrNotFound)

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if c.config.ConditionalRequests {
			c.validators.remember(rawURL, resp.Header, body)
		}

	default:
		return c.statusError(ctx, endpoint, resp, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		c.validators.forget(rawURL)
		return &TransportError{
			StatusCode: resp.StatusCode,
			Class:      ErrorClassDecode,
			Message:    "decode response body",
			Err:        err,
		}
	}
	return nil
}

// statusError builds the TransportError for a non-2xx, non-404 response and
// records rate limit backoff.
func (c *Client) statusError(ctx context.Context, endpoint string, resp *http.Response, body []byte) error {
	class := classifyStatus(resp.StatusCode)
	errorsTotal.WithLabelValues(string(class)).Inc()

	te := &TransportError{
		StatusCode: resp.StatusCode,
		Class:      class,
		Message:    errorMessage(resp.Status, body),
	}

	if class == ErrorClassRateLimit {
		retryAfter, ok := ratelimit.ParseRetryAfter(resp.Header)
		if !ok {
			retryAfter = ratelimit.DefaultRetryAfter
		}
		te.RetryAfter = retryAfter
		if retryAfter > 0 {
			if err := c.tracker.RecordRateLimited(ctx, retryAfter); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to record rate limit backoff")
			}
		}
	}

	c.logger.Warn().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Str("error_class", string(class)).
		Msg("Catalog request error")

	return te
}

// errorMessage prefers the catalog's {"error": "..."} body over the status line.
func errorMessage(status string, body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return status
}

// Tracker returns the rate limit tracker shared by all requests.
func (c *Client) Tracker() *ratelimit.Tracker {
	return c.tracker
}

// Ping checks that the catalog root answers.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Class: ErrorClassNetwork, Message: "ping", Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return &TransportError{StatusCode: resp.StatusCode, Class: ErrorClassServer, Message: resp.Status}
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

