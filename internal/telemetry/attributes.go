// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Stream attributes
	StreamURLKey         = "stream.url"
	StreamStatusKey      = "stream.status"
	StreamCauseKey       = "stream.cause"
	StreamContentTypeKey = "stream.content_type"

	// Scan attributes
	ScanModeKey       = "scan.mode"
	ScanValidationKey = "scan.validation_mode"
	ScanBatchKey      = "scan.batch"
	ScanBatchSizeKey  = "scan.batch_size"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// StreamAttributes describes a validation outcome.
func StreamAttributes(url, status, cause, contentType string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(StreamURLKey, url),
		attribute.String(StreamStatusKey, status),
	}
	if cause != "" {
		attrs = append(attrs, attribute.String(StreamCauseKey, cause))
	}
	if contentType != "" {
		attrs = append(attrs, attribute.String(StreamContentTypeKey, contentType))
	}
	return attrs
}

// BatchAttributes describes one scan batch.
func BatchAttributes(mode, validation string, index, size int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ScanModeKey, mode),
		attribute.String(ScanValidationKey, validation),
		attribute.Int(ScanBatchKey, index),
		attribute.Int(ScanBatchSizeKey, size),
	}
}
