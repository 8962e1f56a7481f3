// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package service

import "github.com/ManuGH/streamcheck/internal/domain/stream"

// ValidateStreamRequest is the body of POST /validate-stream.
type ValidateStreamRequest struct {
	URL string `json:"url"`
}

// ValidateStreamResponse answers POST /validate-stream. Success reports that
// the service produced a verdict, not that the stream works.
type ValidateStreamResponse struct {
	Success      bool          `json:"success"`
	Status       stream.Status `json:"status,omitempty"`
	ContentType  string        `json:"contentType,omitempty"`
	ResponseTime int64         `json:"responseTime,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// ValidateStreamsRequest is the body of POST /validate-streams.
type ValidateStreamsRequest struct {
	URLs []string `json:"urls"`
}

// ValidateStreamsResponse answers POST /validate-streams.
type ValidateStreamsResponse struct {
	Success bool                     `json:"success"`
	Results map[string]stream.Status `json:"results,omitempty"`
	Error   string                   `json:"error,omitempty"`
}

// Paths served by the validation service.
const (
	PathValidateStream  = "/validate-stream"
	PathValidateStreams = "/validate-streams"
)
