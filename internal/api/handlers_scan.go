// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/log"
	"github.com/ManuGH/streamcheck/internal/scan"
)

// ScanRequest is the body of POST /api/v1/scans.
type ScanRequest struct {
	Category       string       `json:"category"`
	ScanMode       string       `json:"scanMode,omitempty"`
	ValidationMode string       `json:"validationMode,omitempty"`
	Streams        []stream.Ref `json:"streams"`
}

// ScanStarted is the reply to an accepted scan.
type ScanStarted struct {
	ScanID string `json:"scanId"`
}

// ValidateRequest is the body of POST /api/v1/validate.
type ValidateRequest struct {
	Name           string `json:"name,omitempty"`
	URL            string `json:"url"`
	ScanMode       string `json:"scanMode,omitempty"`
	ValidationMode string `json:"validationMode,omitempty"`
}

// parseModes parses optional modes; empty values select the manager defaults.
func parseModes(scanMode, validationMode string) (stream.ScanMode, stream.ValidationMode, error) {
	var (
		sm  stream.ScanMode
		vm  stream.ValidationMode
		err error
	)
	if strings.TrimSpace(scanMode) != "" {
		if sm, err = stream.ParseScanMode(scanMode); err != nil {
			return "", "", err
		}
	}
	if strings.TrimSpace(validationMode) != "" {
		if vm, err = stream.ParseValidationMode(validationMode); err != nil {
			return "", "", err
		}
	}
	return sm, vm, nil
}

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	sm, vm, err := parseModes(req.ScanMode, req.ValidationMode)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	streams := stream.Unique(req.Streams)
	if len(streams) == 0 {
		writeBadRequest(w, r, fmt.Errorf("streams must contain at least one url"))
		return
	}

	scanID, err := s.deps.Scans.Start(scan.Request{
		Category:       req.Category,
		Streams:        streams,
		ScanMode:       sm,
		ValidationMode: vm,
	})
	if errors.Is(err, scan.ErrScanActive) {
		writeError(w, r, http.StatusConflict, "scan_active", err.Error())
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(log.FieldEvent, "scan.accepted").
		Str(log.FieldScanID, scanID).
		Str(log.FieldCategory, req.Category).
		Int("streams", len(streams)).
		Msg("scan accepted")
	w.Header().Set("Location", APIPrefix+"/scans/current")
	writeJSON(w, http.StatusAccepted, ScanStarted{ScanID: scanID})
}

func (s *Server) handleCurrentScan(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Scans.Status())
}

func (s *Server) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Scans.Cancel(); err != nil {
		if errors.Is(err, scan.ErrNoActiveScan) {
			writeNotFound(w, r, err.Error())
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLastReport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.deps.Scans.LastReport()
	if !ok {
		writeNotFound(w, r, "no scan has finished yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Scans.Categories())
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeBadRequest(w, r, fmt.Errorf("url is required"))
		return
	}
	sm, vm, err := parseModes(req.ScanMode, req.ValidationMode)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	res := s.deps.Scans.ValidateOne(r.Context(), stream.Ref{Name: req.Name, URL: req.URL}, sm, vm)
	writeJSON(w, http.StatusOK, res)
}
