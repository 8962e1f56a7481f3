// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	probeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcheck_probe_total",
		Help: "Quick probes by result and cause",
	}, []string{"result", "cause"})

	probeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streamcheck_probe_duration_seconds",
		Help:    "Duration of quick probes",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	validateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcheck_validate_total",
		Help: "Deep validations by verdict source (service, local) and result",
	}, []string{"source", "result"})

	preloadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcheck_preload_total",
		Help: "Preload attempts by result (ok, failed)",
	}, []string{"result"})

	serviceChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcheck_service_checks_total",
		Help: "Checks performed by the validation service by result",
	}, []string{"result"})
)

// RecordProbe records the outcome and latency of one quick probe.
func RecordProbe(result, cause string, d time.Duration) {
	if cause == "" {
		cause = "none"
	}
	probeTotal.WithLabelValues(result, cause).Inc()
	probeDuration.Observe(d.Seconds())
}

// RecordValidate records which path produced a deep validation verdict.
func RecordValidate(source, result string) {
	validateTotal.WithLabelValues(source, result).Inc()
}

// RecordPreload records a preload outcome.
func RecordPreload(ok bool) {
	result := "failed"
	if ok {
		result = "ok"
	}
	preloadTotal.WithLabelValues(result).Inc()
}

// RecordServiceCheck records a check executed by the validation service.
func RecordServiceCheck(result string) {
	serviceChecksTotal.WithLabelValues(result).Inc()
}
