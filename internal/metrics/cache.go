// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "streamcheck_cache_ops_total",
	Help: "Result cache operations by backend and outcome (hit, miss, set)",
}, []string{"backend", "op"})

// RecordCacheOp counts one cache operation.
func RecordCacheOp(backend, op string) {
	cacheOps.WithLabelValues(backend, op).Inc()
}
