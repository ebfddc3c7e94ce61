package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache kinds used as metric labels
const (
	KindSearch  = "search"
	KindDetails = "details"
	KindPhoto   = "photo"
)

var (
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopfinder_cache_lookups_total",
			Help: "Cache lookups by kind and result (hit, miss, error)",
		},
		[]string{"kind", "result"},
	)

	cacheWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopfinder_cache_writes_total",
			Help: "Cache writes by kind and status",
		},
		[]string{"kind", "status"},
	)
)

// RecordLookup counts one cache read
func RecordLookup(kind string, hit bool, err error) {
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case hit:
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(kind, result).Inc()
}

// RecordWrite counts one cache write
func RecordWrite(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	cacheWritesTotal.WithLabelValues(kind, status).Inc()
}
