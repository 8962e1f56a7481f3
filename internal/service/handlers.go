// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/streamcheck/internal/log"
)

const maxBodyBytes = 1 << 20

// Mount registers the service endpoints on r.
func (s *Service) Mount(r chi.Router) {
	r.Post(PathValidateStream, s.HandleValidateStream)
	r.Post(PathValidateStreams, s.HandleValidateStreams)
}

// HandleValidateStream serves POST /validate-stream.
func (s *Service) HandleValidateStream(w http.ResponseWriter, r *http.Request) {
	var req ValidateStreamRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ValidateStreamResponse{Error: err.Error()})
		return
	}
	if err := checkURL(req.URL); err != nil {
		writeJSON(w, http.StatusBadRequest, ValidateStreamResponse{Error: err.Error()})
		return
	}

	res := s.Validate(r.Context(), req.URL)
	writeJSON(w, http.StatusOK, ValidateStreamResponse{
		Success:      true,
		Status:       res.Status,
		ContentType:  res.ContentType,
		ResponseTime: res.ResponseTimeMs,
	})
}

// HandleValidateStreams serves POST /validate-streams.
func (s *Service) HandleValidateStreams(w http.ResponseWriter, r *http.Request) {
	var req ValidateStreamsRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ValidateStreamsResponse{Error: err.Error()})
		return
	}
	if len(req.URLs) == 0 {
		writeJSON(w, http.StatusBadRequest, ValidateStreamsResponse{Error: "urls is required"})
		return
	}
	if len(req.URLs) > s.cfg.MaxBatch {
		writeJSON(w, http.StatusBadRequest, ValidateStreamsResponse{Error: fmt.Sprintf("at most %d urls per request", s.cfg.MaxBatch)})
		return
	}
	for _, u := range req.URLs {
		if err := checkURL(u); err != nil {
			writeJSON(w, http.StatusBadRequest, ValidateStreamsResponse{Error: err.Error()})
			return
		}
	}

	results := s.ValidateMany(r.Context(), req.URLs)
	logger := log.WithComponentFromContext(r.Context(), "service")
	logger.Info().
		Str(log.FieldEvent, "service.batch_validated").
		Int("urls", len(results)).
		Msg("batch validated")
	writeJSON(w, http.StatusOK, ValidateStreamsResponse{Success: true, Results: results})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func checkURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be an absolute http(s) url")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
