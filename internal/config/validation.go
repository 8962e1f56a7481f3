// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"strings"

	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/validate"
)

// Validate checks a Config and reports every problem at once.
func Validate(cfg Config) error {
	v := validate.New()

	v.ListenAddr("Listen", cfg.Listen)
	v.OneOf("LogLevel", strings.ToLower(cfg.LogLevel), validate.LogLevels)
	v.PositiveDuration("ShutdownTimeout", cfg.ShutdownTimeout)

	if strings.TrimSpace(cfg.Validator.URL) != "" {
		v.URL("Validator.URL", cfg.Validator.URL, []string{"http", "https"})
	}
	v.PositiveDuration("Validator.Timeout", cfg.Validator.Timeout)
	v.PositiveDuration("Validator.BatchTimeout", cfg.Validator.BatchTimeout)
	v.Positive("Validator.BreakerThreshold", cfg.Validator.BreakerThreshold)
	v.PositiveDuration("Validator.BreakerReset", cfg.Validator.BreakerReset)

	if strings.TrimSpace(cfg.Relay.URL) != "" {
		v.URL("Relay.URL", cfg.Relay.URL, []string{"http", "https"})
	}
	v.PositiveDuration("Relay.Timeout", cfg.Relay.Timeout)
	v.NonNegative("Relay.RateLimit", cfg.Relay.RateLimit)

	if _, err := stream.ParseScanMode(cfg.Scan.Mode); err != nil {
		v.AddError("Scan.Mode", err.Error(), cfg.Scan.Mode)
	}
	if _, err := stream.ParseValidationMode(cfg.Scan.ValidationMode); err != nil {
		v.AddError("Scan.ValidationMode", err.Error(), cfg.Scan.ValidationMode)
	}
	v.PositiveDuration("Scan.ProbeTimeout", cfg.Scan.ProbeTimeout)
	v.PositiveDuration("Scan.PreloadTimeout", cfg.Scan.PreloadTimeout)
	v.Positive("Scan.QuickBatchSize", cfg.Scan.QuickBatchSize)
	v.Positive("Scan.PreloadBatchSize", cfg.Scan.PreloadBatchSize)
	v.NonNegativeDuration("Scan.QuickBatchDelay", cfg.Scan.QuickBatchDelay)
	v.NonNegativeDuration("Scan.PreloadBatchDelay", cfg.Scan.PreloadBatchDelay)

	v.PositiveDuration("Playback.AttemptTimeout", cfg.Playback.AttemptTimeout)

	if cfg.Service.Rate <= 0 {
		v.AddError("Service.Rate", "value must be positive", cfg.Service.Rate)
	}
	v.Range("Service.Concurrency", cfg.Service.Concurrency, 1, 256)

	v.NonNegativeDuration("Cache.TTL", cfg.Cache.TTL)
	v.Range("Cache.RedisDB", cfg.Cache.RedisDB, 0, 15)

	if cfg.Tracing.Enabled {
		v.OneOf("Tracing.Exporter", cfg.Tracing.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Tracing.Endpoint", cfg.Tracing.Endpoint)
		v.FloatRange("Tracing.SampleRate", cfg.Tracing.SampleRate, 0, 1)
	}

	return v.Err()
}
