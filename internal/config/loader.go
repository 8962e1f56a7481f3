// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// ConfigPath returns the YAML file path, empty for ENV-only configuration.
func (l *Loader) ConfigPath() string { return l.configPath }

func (l *Loader) envString(key, def string) string {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseString(EnvPrefix+key, def)
}

func (l *Loader) envBool(key string, def bool) bool {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseBool(EnvPrefix+key, def)
}

func (l *Loader) envInt(key string, def int) int {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseInt(EnvPrefix+key, def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseFloat(EnvPrefix+key, def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseDuration(EnvPrefix+key, def)
}

func (l *Loader) envList(key string, def []string) []string {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseList(EnvPrefix+key, def)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// Order is strict: defaults, strict file parse, env overrides, validation.
func (l *Loader) Load() (Config, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with STRICT parsing. Keys absent
// from the file keep their current value.
func (l *Loader) loadFile(path string, cfg *Config) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

// mergeEnv applies STREAMCHECK_* overrides.
func (l *Loader) mergeEnv(cfg *Config) {
	cfg.Listen = l.envString("LISTEN", cfg.Listen)
	cfg.LogLevel = l.envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString("LOG_SERVICE", cfg.LogService)
	cfg.ShutdownTimeout = l.envDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.CORSOrigins = l.envList("CORS_ORIGINS", cfg.CORSOrigins)

	cfg.Validator.URL = l.envString("VALIDATOR_URL", cfg.Validator.URL)
	cfg.Validator.Timeout = l.envDuration("SERVICE_TIMEOUT", cfg.Validator.Timeout)
	cfg.Validator.BatchTimeout = l.envDuration("BATCH_SERVICE_TIMEOUT", cfg.Validator.BatchTimeout)
	cfg.Validator.BreakerThreshold = l.envInt("BREAKER_THRESHOLD", cfg.Validator.BreakerThreshold)
	cfg.Validator.BreakerReset = l.envDuration("BREAKER_RESET", cfg.Validator.BreakerReset)

	cfg.Relay.URL = l.envString("RELAY_URL", cfg.Relay.URL)
	cfg.Relay.Timeout = l.envDuration("RELAY_TIMEOUT", cfg.Relay.Timeout)
	cfg.Relay.AllowPrivate = l.envBool("RELAY_ALLOW_PRIVATE", cfg.Relay.AllowPrivate)
	cfg.Relay.RateLimit = l.envInt("RELAY_RATE_LIMIT", cfg.Relay.RateLimit)

	cfg.Scan.Mode = l.envString("SCAN_MODE", cfg.Scan.Mode)
	cfg.Scan.ValidationMode = l.envString("VALIDATION_MODE", cfg.Scan.ValidationMode)
	cfg.Scan.ProbeTimeout = l.envDuration("PROBE_TIMEOUT", cfg.Scan.ProbeTimeout)
	cfg.Scan.PreloadTimeout = l.envDuration("PRELOAD_TIMEOUT", cfg.Scan.PreloadTimeout)
	cfg.Scan.QuickBatchSize = l.envInt("QUICK_BATCH_SIZE", cfg.Scan.QuickBatchSize)
	cfg.Scan.PreloadBatchSize = l.envInt("PRELOAD_BATCH_SIZE", cfg.Scan.PreloadBatchSize)
	cfg.Scan.QuickBatchDelay = l.envDuration("QUICK_BATCH_DELAY", cfg.Scan.QuickBatchDelay)
	cfg.Scan.PreloadBatchDelay = l.envDuration("PRELOAD_BATCH_DELAY", cfg.Scan.PreloadBatchDelay)

	cfg.Playback.AttemptTimeout = l.envDuration("ATTEMPT_TIMEOUT", cfg.Playback.AttemptTimeout)

	cfg.Service.Rate = l.envFloat("SERVICE_RATE", cfg.Service.Rate)
	cfg.Service.Concurrency = l.envInt("SERVICE_CONCURRENCY", cfg.Service.Concurrency)

	cfg.Cache.TTL = l.envDuration("CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.RedisAddr = l.envString("REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = l.envString("REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = l.envInt("REDIS_DB", cfg.Cache.RedisDB)

	cfg.Tracing.Enabled = l.envBool("TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = l.envString("TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = l.envString("TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.SampleRate = l.envFloat("TRACING_SAMPLE_RATE", cfg.Tracing.SampleRate)
}
