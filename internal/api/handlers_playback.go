// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/playback"
)

// PlaybackRequest is the body of POST /api/v1/playback.
type PlaybackRequest struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url"`
}

func (s *Server) writePlaybackError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, playback.ErrSessionNotFound):
		writeNotFound(w, r, err.Error())
	case errors.Is(err, playback.ErrSessionClosed):
		writeError(w, r, http.StatusGone, "session_closed", err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func (s *Server) handleOpenPlayback(w http.ResponseWriter, r *http.Request) {
	var req PlaybackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeBadRequest(w, r, fmt.Errorf("url is required"))
		return
	}
	snap, err := s.deps.Playback.Open(stream.Ref{Name: req.Name, URL: req.URL})
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	w.Header().Set("Location", APIPrefix+"/playback/"+snap.ID)
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleListPlayback(w http.ResponseWriter, _ *http.Request) {
	list := s.deps.Playback.List()
	sort.Slice(list, func(i, j int) bool { return list[i].StartedAt.Before(list[j].StartedAt) })
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetPlayback(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Playback.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writePlaybackError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePlaybackError(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Playback.ReportError(chi.URLParam(r, "id"))
	if err != nil {
		s.writePlaybackError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePlaybackRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Playback.Refresh(chi.URLParam(r, "id"))
	if err != nil {
		s.writePlaybackError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleClosePlayback(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Playback.Close(chi.URLParam(r, "id")); err != nil {
		s.writePlaybackError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
