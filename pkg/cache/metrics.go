package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueryFetches tracks fetches issued to the source by store
	QueryFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_query_fetches_total",
			Help: "Total number of fetches issued by the query cache",
		},
		[]string{"store"}, // "pages", "characters"
	)

	// QueryHits tracks requests answered from a cached success
	QueryHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_query_hits_total",
			Help: "Total number of query cache hits",
		},
		[]string{"store"},
	)

	// QueryDedup tracks requests that attached to an in-flight fetch
	QueryDedup = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_query_dedup_total",
			Help: "Total number of requests attached to an in-flight fetch",
		},
		[]string{"store"},
	)

	// QueryErrors tracks failed fetches
	QueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_query_errors_total",
			Help: "Total number of failed query cache fetches",
		},
		[]string{"store"},
	)

	// StaleDiscards tracks outcomes dropped because a newer request superseded them
	StaleDiscards = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_query_stale_discards_total",
			Help: "Total number of superseded fetch outcomes discarded",
		},
		[]string{"store", "scope"}, // scope: "entry", "observer"
	)

	// QueryEntries tracks the number of keys held by each store
	QueryEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalog_query_entries",
			Help: "Current number of entries in the query cache",
		},
		[]string{"store"},
	)
)
