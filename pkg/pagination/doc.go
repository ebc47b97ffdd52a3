// Package pagination provides parallel batch fetching of a filtered character
// listing.
//
// The catalog reports the page count of a result set in the info block of
// every page. The batch fetcher loads page 1 to learn it, then distributes the
// remaining pages over a small worker pool. Loads go through the query cache,
// so pages fetched by an export are served from memory afterwards.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher(collection, pagination.DefaultConfig())
//	res, err := fetcher.FetchAll(ctx, filter.State{Name: "smith"})
//	for _, c := range res.Characters() {
//		fmt.Println(c.ID, c.Name)
//	}
//
// The batch fetcher:
//   - Fetches the first page to determine the page count
//   - Spawns a worker pool (default 4 workers)
//   - Returns pages in page order, whatever order they arrived in
//   - Reports failed pages alongside the partial result
package pagination
