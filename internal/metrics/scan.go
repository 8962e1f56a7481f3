// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scanBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcheck_scan_batches_total",
		Help: "Batches processed by scan mode",
	}, []string{"mode"})

	scanActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamcheck_scan_active",
		Help: "1 while a scan is running",
	})

	scanProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamcheck_scan_progress_ratio",
		Help: "Completion ratio of the current or last scan",
	})

	scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcheck_scans_total",
		Help: "Finished scans by outcome (completed, cancelled, failed)",
	}, []string{"outcome"})
)

// IncScanBatch counts one processed batch.
func IncScanBatch(mode string) {
	scanBatchesTotal.WithLabelValues(mode).Inc()
}

// SetScanActive flips the active scan gauge.
func SetScanActive(active bool) {
	if active {
		scanActive.Set(1)
		return
	}
	scanActive.Set(0)
}

// SetScanProgress records the completion ratio.
func SetScanProgress(ratio float64) {
	scanProgress.Set(ratio)
}

// RecordScanOutcome counts a finished scan.
func RecordScanOutcome(outcome string) {
	scansTotal.WithLabelValues(outcome).Inc()
}
