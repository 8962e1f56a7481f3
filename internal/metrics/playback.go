// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	playbackTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcheck_playback_transitions_total",
		Help: "Playback strategy transitions after fatal errors",
	}, []string{"from", "to"})

	playbackTerminal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcheck_playback_terminal_total",
		Help: "Playback sessions that exhausted every strategy, by stream kind",
	}, []string{"kind"})

	playbackSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamcheck_playback_sessions",
		Help: "Open playback sessions",
	})
)

// RecordPlaybackTransition counts a strategy escalation.
func RecordPlaybackTransition(from, to string) {
	playbackTransitions.WithLabelValues(from, to).Inc()
}

// RecordPlaybackTerminal counts a session reaching the terminal state.
func RecordPlaybackTerminal(kind string) {
	playbackTerminal.WithLabelValues(kind).Inc()
}

// SetPlaybackSessions records the number of open sessions.
func SetPlaybackSessions(n int) {
	playbackSessions.Set(float64(n))
}
