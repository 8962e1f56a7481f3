// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamcheck/internal/validate"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader("", "v-test").Load()
	require.NoError(t, err)

	want := Defaults()
	want.Version = "v-test"
	assert.Equal(t, want, cfg)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
listen: ":9000"
validator:
  url: "http://validator.local:8080"
scan:
  mode: preload
  quickBatchSize: 10
  preloadBatchDelay: 2s
`)
	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "http://validator.local:8080", cfg.Validator.URL)
	assert.Equal(t, "preload", cfg.Scan.Mode)
	assert.Equal(t, 10, cfg.Scan.QuickBatchSize)
	assert.Equal(t, 2*time.Second, cfg.Scan.PreloadBatchDelay)
	// untouched keys keep defaults
	assert.Equal(t, 3, cfg.Scan.PreloadBatchSize)
	assert.Equal(t, "lenient", cfg.Scan.ValidationMode)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "config.yml", "scan:\n  mode: preload\n")
	t.Setenv("STREAMCHECK_SCAN_MODE", "quick")
	t.Setenv("STREAMCHECK_QUICK_BATCH_SIZE", "7")
	t.Setenv("STREAMCHECK_RELAY_ALLOW_PRIVATE", "yes")
	t.Setenv("STREAMCHECK_CORS_ORIGINS", "http://a.example, http://b.example,")

	l := NewLoader(path, "")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "quick", cfg.Scan.Mode)
	assert.Equal(t, 7, cfg.Scan.QuickBatchSize)
	assert.True(t, cfg.Relay.AllowPrivate)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSOrigins)
	assert.Contains(t, l.ConsumedEnvKeys, "STREAMCHECK_SCAN_MODE")
	assert.Contains(t, l.ConsumedEnvKeys, "STREAMCHECK_TRACING_SAMPLE_RATE")
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := writeConfig(t, "config.yaml", "scan:\n  mood: quick\n")
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoadRejectsMultipleDocuments(t *testing.T) {
	path := writeConfig(t, "config.yaml", "listen: \":9000\"\n---\nlisten: \":9001\"\n")
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestLoadRejectsNonYAML(t *testing.T) {
	path := writeConfig(t, "config.json", "{}")
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only YAML supported")
}

func TestLoadEmptyFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", "")
	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().Scan, cfg.Scan)
}

func TestLoadInvalidModeFailsValidation(t *testing.T) {
	t.Setenv("STREAMCHECK_VALIDATION_MODE", "paranoid")
	_, err := NewLoader("", "").Load()
	require.Error(t, err)

	var verr validate.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Errors(), 1)
	assert.Equal(t, "Scan.ValidationMode", verr.Errors()[0].Field)
}

func TestRelayBase(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "http://127.0.0.1:8088", cfg.RelayBase())

	cfg.Listen = "10.0.0.5:9000"
	assert.Equal(t, "http://10.0.0.5:9000", cfg.RelayBase())

	cfg.Relay.URL = "https://relay.example/"
	assert.Equal(t, "https://relay.example", cfg.RelayBase())

	cfg.Relay.URL = ""
	cfg.Listen = "bogus"
	assert.Empty(t, cfg.RelayBase())
}
