// Package cache implements the in-memory query cache behind the catalog
// browser.
//
// # Keys
//
// Every request is identified by a QueryKey derived from a normalized
// filter.State (KeyFor) or an entity id (KeyForEntity). Equivalent filter
// states produce equal keys, so they share one cache entry.
//
// # Store
//
// Store[T] holds one entry per key:
//
//	pages := cache.NewStore[catalog.PageResult]("pages", logger)
//	snap := pages.Fetch(key, fetchPage)       // never blocks
//	snap, err := pages.Await(ctx, key)        // waits for the in-flight fetch
//
// At most one fetch per key is in flight; concurrent callers attach to it.
// A successful payload is kept while the same key refetches and when a later
// fetch fails. Outcomes are ordered by a global sequence number and an
// outcome issued before a newer one for the same key is discarded.
//
// # Observer
//
// Observer[T] is a single display slot. When it switches to a key that has
// no data yet, its View carries the previous key's payload with Placeholder
// set until the new key resolves. Outcomes for keys the slot has left are
// discarded.
//
// # Metrics
//
// Prometheus metrics exported, labelled by store name:
//   - catalog_query_fetches_total - Fetches issued to the source
//   - catalog_query_hits_total - Requests answered from a cached success
//   - catalog_query_dedup_total - Requests attached to an in-flight fetch
//   - catalog_query_errors_total - Failed fetches
//   - catalog_query_stale_discards_total{scope} - Superseded outcomes dropped
//   - catalog_query_entries - Keys held
//
// Entries live for the lifetime of the process. There is no eviction and no
// persistence.
package cache
