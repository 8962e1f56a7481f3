// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads streamcheck configuration with precedence
// ENV > YAML file > defaults and hot-reloads it on file change.
package config

import (
	"net"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment key.
const EnvPrefix = "STREAMCHECK_"

// Config is the complete runtime configuration.
type Config struct {
	Listen          string        `yaml:"listen"`
	LogLevel        string        `yaml:"logLevel"`
	LogService      string        `yaml:"logService"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins"`

	Validator ValidatorConfig `yaml:"validator"`
	Relay     RelayConfig     `yaml:"relay"`
	Scan      ScanConfig      `yaml:"scan"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Service   ServiceConfig   `yaml:"service"`
	Cache     CacheConfig     `yaml:"cache"`
	Tracing   TracingConfig   `yaml:"tracing"`

	Version string `yaml:"-"`
}

// ValidatorConfig points at the authoritative validation service.
type ValidatorConfig struct {
	// URL of the service; empty means always validate locally.
	URL              string        `yaml:"url"`
	Timeout          time.Duration `yaml:"timeout"`
	BatchTimeout     time.Duration `yaml:"batchTimeout"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// RelayConfig configures the media relay.
type RelayConfig struct {
	// URL is the relay base used by preload and playback; empty derives it from Listen.
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout"`
	AllowPrivate bool          `yaml:"allowPrivate"`
	// RateLimit is requests per minute per client IP.
	RateLimit int `yaml:"rateLimit"`
}

// ScanConfig configures batch scans.
type ScanConfig struct {
	Mode              string        `yaml:"mode"`
	ValidationMode    string        `yaml:"validationMode"`
	ProbeTimeout      time.Duration `yaml:"probeTimeout"`
	PreloadTimeout    time.Duration `yaml:"preloadTimeout"`
	QuickBatchSize    int           `yaml:"quickBatchSize"`
	PreloadBatchSize  int           `yaml:"preloadBatchSize"`
	QuickBatchDelay   time.Duration `yaml:"quickBatchDelay"`
	PreloadBatchDelay time.Duration `yaml:"preloadBatchDelay"`
}

// PlaybackConfig configures playback sessions.
type PlaybackConfig struct {
	AttemptTimeout time.Duration `yaml:"attemptTimeout"`
}

// ServiceConfig configures the built-in validation service.
type ServiceConfig struct {
	// Rate is outbound checks per second.
	Rate        float64 `yaml:"rate"`
	Concurrency int     `yaml:"concurrency"`
}

// CacheConfig selects the verdict cache backend.
type CacheConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDB"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Exporter   string  `yaml:"exporter"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sampleRate"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Listen:          ":8088",
		LogLevel:        "info",
		LogService:      "streamcheck",
		ShutdownTimeout: 15 * time.Second,
		Validator: ValidatorConfig{
			Timeout:          10 * time.Second,
			BatchTimeout:     30 * time.Second,
			BreakerThreshold: 3,
			BreakerReset:     30 * time.Second,
		},
		Relay: RelayConfig{
			Timeout:   30 * time.Second,
			RateLimit: 120,
		},
		Scan: ScanConfig{
			Mode:              "quick",
			ValidationMode:    "lenient",
			ProbeTimeout:      5 * time.Second,
			PreloadTimeout:    15 * time.Second,
			QuickBatchSize:    5,
			PreloadBatchSize:  3,
			QuickBatchDelay:   500 * time.Millisecond,
			PreloadBatchDelay: time.Second,
		},
		Playback: PlaybackConfig{AttemptTimeout: 15 * time.Second},
		Service:  ServiceConfig{Rate: 20, Concurrency: 8},
		Cache:    CacheConfig{TTL: 2 * time.Minute},
		Tracing: TracingConfig{
			Exporter:   "grpc",
			Endpoint:   "localhost:4317",
			SampleRate: 1.0,
		},
	}
}

// RelayBase returns the relay base URL, derived from Listen when unset.
func (c Config) RelayBase() string {
	if c.Relay.URL != "" {
		return strings.TrimRight(c.Relay.URL, "/")
	}
	host, port, err := net.SplitHostPort(c.Listen)
	if err != nil {
		return ""
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}
