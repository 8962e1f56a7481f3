// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldScanID    = "scan_id"
	FieldSessionID = "session_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Stream fields
	FieldURL         = "url"
	FieldStreamName  = "stream_name"
	FieldStatus      = "status"
	FieldCause       = "cause"
	FieldCategory    = "category"
	FieldScanMode    = "scan_mode"
	FieldValidation  = "validation_mode"
	FieldStrategy    = "strategy"
	FieldRetryCount  = "retry_count"
	FieldContentType = "content_type"
	FieldDurationMS  = "duration_ms"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// HTTP fields
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldHTTPStatus = "http_status"
	FieldBytes      = "bytes"
	FieldRemoteAddr = "remote_addr"
)
