// Package metrics exposes the Prometheus metrics of the catalog packages.
// All metrics are defined in their respective packages (catalog, cache,
// ratelimit) to maintain modularity and avoid circular dependencies.
//
// This package provides the HTTP handler and the reference for all available
// metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the catalog packages.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the registry Handler serves from.
var Gatherer = prometheus.DefaultGatherer

// Handler serves all registered metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/catalog):
//   - catalog_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - catalog_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - catalog_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//   - catalog_conditional_requests_total (Counter): Requests sent with stored validators
//   - catalog_not_modified_total (Counter): 304 responses answered from the stored body
//
// Retry Metrics (pkg/catalog):
//   - catalog_retries_total{error_class} (Counter): Retry attempts by error class
//   - catalog_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - catalog_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Rate Limit Metrics (pkg/ratelimit):
//   - catalog_rate_limit_hits_total (Counter): 429 responses recorded
//   - catalog_rate_limit_blocks_total (Counter): Requests held back by an active backoff window
//   - catalog_rate_limit_backoff_seconds (Gauge): Remaining backoff window
//
// Query Cache Metrics (pkg/cache):
//   - catalog_query_fetches_total{store} (Counter): Fetches issued to the catalog
//   - catalog_query_hits_total{store} (Counter): Requests answered from a cached success
//   - catalog_query_dedup_total{store} (Counter): Requests attached to an in-flight fetch
//   - catalog_query_errors_total{store} (Counter): Failed fetches
//   - catalog_query_stale_discards_total{store, scope} (Counter): Superseded outcomes dropped
//   - catalog_query_entries{store} (Gauge): Keys held per store
//
// Example Prometheus Queries:
//
//   # Query Cache Hit Rate
//   sum(rate(catalog_query_hits_total[5m])) /
//   (sum(rate(catalog_query_hits_total[5m])) + sum(rate(catalog_query_fetches_total[5m])))
//
//   # Request Error Rate
//   rate(catalog_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(catalog_request_duration_seconds_bucket[5m]))
//
//   # 304 Response Rate
//   rate(catalog_not_modified_total[5m]) / rate(catalog_requests_total[5m])
