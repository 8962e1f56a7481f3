// SPDX-License-Identifier: MIT

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestLimiterGlobal(t *testing.T) {
	l := New("test", Config{GlobalRate: 1, GlobalBurst: 2, PerHostRate: 100, PerHostBurst: 100})

	assert.True(t, l.Allow("http://a/x"))
	assert.True(t, l.Allow("http://b/x"))
	assert.False(t, l.Allow("http://c/x"), "global burst exhausted")
}

func TestLimiterPerHost(t *testing.T) {
	l := New("test", Config{GlobalRate: 100, GlobalBurst: 100, PerHostRate: 1, PerHostBurst: 1})

	assert.True(t, l.Allow("http://a/1"))
	assert.False(t, l.Allow("http://A/2"), "same host, case-insensitive")
	assert.True(t, l.Allow("http://b/1"))
	assert.Equal(t, 2, l.Hosts())
}

func TestLimiterWaitHonoursContext(t *testing.T) {
	l := New("test", Config{GlobalRate: rate.Every(time.Hour), GlobalBurst: 1, PerHostRate: 100, PerHostBurst: 100})
	require.NoError(t, l.Wait(context.Background(), "http://a/1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "http://a/2"))
}

func TestLimiterCleanup(t *testing.T) {
	now := time.Now()
	l := New("test", Config{GlobalRate: 100, GlobalBurst: 100, PerHostRate: 100, PerHostBurst: 100, IdleTimeout: time.Minute})
	l.now = func() time.Time { return now }

	l.Allow("http://a/1")
	l.Allow("http://b/1")
	require.Equal(t, 2, l.Hosts())

	now = now.Add(2 * time.Minute)
	l.Allow("http://c/1")
	assert.Equal(t, 1, l.Hosts())
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "example.com", HostOf("https://Example.com:8443/a"))
	assert.Equal(t, "not a url", HostOf("not a url"))
}
