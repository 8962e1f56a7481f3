// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	relayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcheck_relay_requests_total",
		Help: "Relay requests by profile and result",
	}, []string{"profile", "result"})

	relayBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamcheck_relay_bytes_total",
		Help: "Bytes streamed through the relay",
	})
)

// RecordRelayRequest counts one relay request.
func RecordRelayRequest(profile, result string) {
	relayRequests.WithLabelValues(profile, result).Inc()
}

// AddRelayBytes adds streamed bytes.
func AddRelayBytes(n int64) {
	if n > 0 {
		relayBytes.Add(float64(n))
	}
}
