// SPDX-License-Identifier: MIT
package validate

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_URL(t *testing.T) {
	tests := []struct {
		name           string
		value          string
		allowedSchemes []string
		wantErr        bool
	}{
		{"valid http", "http://example.com", []string{"http", "https"}, false},
		{"valid https", "https://example.com", []string{"http", "https"}, false},
		{"empty url", "", []string{"http"}, true},
		{"no host", "http://", []string{"http"}, true},
		{"invalid scheme", "ftp://example.com", []string{"http", "https"}, true},
		{"no scheme", "example.com", []string{"http"}, true},
		{"with port", "http://example.com:8080", []string{"http"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.URL("testURL", tt.value, tt.allowedSchemes)
			assert.Equal(t, tt.wantErr, !v.IsValid(), "err: %v", v.Err())
		})
	}
}

func TestValidator_ListenAddr(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{":8088", false},
		{"127.0.0.1:80", false},
		{"[::1]:443", false},
		{"8088", true},
		{":0", true},
		{":http", true},
		{":70000", true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			v := New()
			v.ListenAddr("Listen", tt.addr)
			assert.Equal(t, tt.wantErr, !v.IsValid())
		})
	}
}

func TestValidator_Numbers(t *testing.T) {
	v := New()
	v.Positive("a", 1)
	v.NonNegative("b", 0)
	v.Range("c", 5, 1, 10)
	v.FloatRange("d", 0.5, 0, 1)
	v.PositiveDuration("e", time.Second)
	v.NonNegativeDuration("f", 0)
	require.True(t, v.IsValid())

	v.Positive("a", 0)
	v.NonNegative("b", -1)
	v.Range("c", 11, 1, 10)
	v.FloatRange("d", 1.5, 0, 1)
	v.PositiveDuration("e", 0)
	v.NonNegativeDuration("f", -time.Second)
	assert.Len(t, v.Errors(), 6)
}

func TestValidator_OneOfAndNotEmpty(t *testing.T) {
	v := New()
	v.OneOf("mode", "quick", []string{"quick", "preload"})
	v.NotEmpty("name", "x")
	require.NoError(t, v.Err())

	v.OneOf("mode", "slow", []string{"quick", "preload"})
	v.NotEmpty("name", "   ")
	err := v.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode")
	assert.Contains(t, err.Error(), "; ")

	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Errors(), 2)
}

func TestValidator_Custom(t *testing.T) {
	v := New()
	v.Custom("x", "abc", func(val any) error {
		if strings.HasPrefix(val.(string), "a") {
			return errors.New("must not start with a")
		}
		return nil
	})
	assert.False(t, v.IsValid())
	assert.Equal(t, "validation failed for x: must not start with a", v.Errors()[0].Error())
}

func TestLogLevel(t *testing.T) {
	assert.True(t, LogLevel("debug").IsValid())
	assert.False(t, LogLevel("verbose").IsValid())
	assert.Contains(t, LogLevels, "info")
}
