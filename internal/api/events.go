// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/streamcheck/internal/bus"
	"github.com/ManuGH/streamcheck/internal/log"
)

// handleEvents streams bus events as Server-Sent Events. The optional
// types query parameter (comma separated) filters event types.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported")
		return
	}

	var filter map[string]bool
	if raw := r.URL.Query().Get("types"); raw != "" {
		filter = make(map[string]bool)
		for _, t := range strings.Split(raw, ",") {
			filter[strings.TrimSpace(t)] = true
		}
	}

	sub := s.deps.Bus.Subscribe(bus.TopicEvents)
	defer sub.Close()

	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Debug().Str(log.FieldEvent, "events.connected").Str(log.FieldRemoteAddr, r.RemoteAddr).Msg("event stream opened")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Initial snapshot so late subscribers start consistent.
	_ = writeSSE(w, bus.NewEvent(bus.EventScan, s.deps.Scans.Status()))
	flusher.Flush()

	keepalive := time.NewTicker(s.cfg.SSEKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug().Str(log.FieldEvent, "events.disconnected").Msg("event stream closed")
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case evt, ok := <-sub.C():
			if !ok {
				return
			}
			if filter != nil && !filter[evt.Type] {
				continue
			}
			if err := writeSSE(w, evt); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, evt bus.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
	return err
}
