// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/store"
)

// StatusEntry is one stored stream status.
type StatusEntry struct {
	URL string `json:"url"`
	store.Entry
}

// streamURLParam returns the stream URL addressed by a /status/* route:
// the escaped wildcard segment, or the url query parameter.
func streamURLParam(r *http.Request) string {
	if q := r.URL.Query().Get("url"); q != "" {
		return q
	}
	raw := chi.URLParam(r, "*")
	if u, err := url.PathUnescape(raw); err == nil {
		raw = u
	}
	return strings.TrimSpace(raw)
}

func (s *Server) handleStatusSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Store.Snapshot())
}

func (s *Server) handleStatusGet(w http.ResponseWriter, r *http.Request) {
	u := streamURLParam(r)
	if u == "" {
		writeNotFound(w, r, "stream url missing")
		return
	}
	entry, ok := s.deps.Store.Get(u)
	if !ok {
		// never validated
		entry = store.Entry{Status: stream.StatusUnknown}
	}
	writeJSON(w, http.StatusOK, StatusEntry{URL: u, Entry: entry})
}

func (s *Server) handleStatusClear(w http.ResponseWriter, r *http.Request) {
	u := streamURLParam(r)
	if u == "" {
		writeNotFound(w, r, "stream url missing")
		return
	}
	s.deps.Store.Clear(u)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearAll(w http.ResponseWriter, _ *http.Request) {
	s.deps.Store.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}
