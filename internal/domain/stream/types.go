// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package stream holds the value types shared by every validation component.
package stream

import (
	"fmt"
	"strings"
)

// Status is the validation state of a single stream URL.
type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusChecking Status = "checking"
	StatusWorking  Status = "working"
	StatusBroken   Status = "broken"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUnknown, StatusChecking, StatusWorking, StatusBroken:
		return true
	}
	return false
}

// Cause explains why a probe or validation reported broken.
// It lets the mode policy distinguish a definitive "not media" verdict
// from a failure that says nothing about the content.
type Cause string

const (
	CauseNone      Cause = ""
	CauseNotMedia  Cause = "not_media"
	CauseTransport Cause = "transport"
	CauseRejected  Cause = "rejected"
	// CauseAborted marks a validation call that failed before it produced
	// any verdict about the stream.
	CauseAborted Cause = "aborted"
)

// Ref is a stream as it appears in a category list.
type Ref struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url"`
}

// Result is the outcome of probing or validating one URL.
// A broken result never carries partial content-type or timing data.
type Result struct {
	URL            string `json:"url"`
	Status         Status `json:"status"`
	ContentType    string `json:"contentType,omitempty"`
	ResponseTimeMs int64  `json:"responseTime,omitempty"`
	Preloaded      bool   `json:"preloaded"`
	Cause          Cause  `json:"cause,omitempty"`
}

// Working builds a working result.
func Working(url, contentType string, responseTimeMs int64) Result {
	return Result{URL: url, Status: StatusWorking, ContentType: contentType, ResponseTimeMs: responseTimeMs}
}

// Broken builds a broken result with the given cause and nothing else.
func Broken(url string, cause Cause) Result {
	return Result{URL: url, Status: StatusBroken, Cause: cause}
}

// IsWorking reports whether the result is working.
func (r Result) IsWorking() bool { return r.Status == StatusWorking }

// ScanMode selects how much work a scan does per stream.
type ScanMode string

const (
	ScanQuick   ScanMode = "quick"
	ScanPreload ScanMode = "preload"
)

// ParseScanMode parses a scan mode, case-insensitively.
func ParseScanMode(s string) (ScanMode, error) {
	switch ScanMode(strings.ToLower(strings.TrimSpace(s))) {
	case ScanQuick:
		return ScanQuick, nil
	case ScanPreload:
		return ScanPreload, nil
	}
	return "", fmt.Errorf("invalid scan mode %q (want quick or preload)", s)
}

// ValidationMode governs how raw results map to user-visible status.
type ValidationMode string

const (
	ValidationStrict   ValidationMode = "strict"
	ValidationLenient  ValidationMode = "lenient"
	ValidationDisabled ValidationMode = "disabled"
)

// ParseValidationMode parses a validation mode, case-insensitively.
func ParseValidationMode(s string) (ValidationMode, error) {
	switch ValidationMode(strings.ToLower(strings.TrimSpace(s))) {
	case ValidationStrict:
		return ValidationStrict, nil
	case ValidationLenient:
		return ValidationLenient, nil
	case ValidationDisabled:
		return ValidationDisabled, nil
	}
	return "", fmt.Errorf("invalid validation mode %q (want strict, lenient or disabled)", s)
}
