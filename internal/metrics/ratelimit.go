// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "streamcheck_ratelimit_total",
	Help: "Outbound rate limiter decisions by limiter and result (allowed, rejected, cancelled)",
}, []string{"limiter", "result"})

// RecordRateLimit counts one limiter decision.
func RecordRateLimit(limiter, result string) {
	rateLimitWaits.WithLabelValues(limiter, result).Inc()
}
