// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/relay"
)

func TestFourFatalErrorsReachTerminalOnce(t *testing.T) {
	m := NewMachine(stream.KindVOD)
	want := []Strategy{StrategyDirect, StrategyProxiedHeaders, StrategyProxiedIdentity}

	for i, next := range want {
		tr := m.HandleFatalError()
		assert.True(t, tr.Advanced, "error %d", i+1)
		assert.False(t, tr.Terminal)
		assert.Equal(t, next, tr.To)
		assert.False(t, m.Terminal())
	}

	tr := m.HandleFatalError()
	assert.True(t, tr.Terminal)
	assert.False(t, tr.Advanced)
	assert.True(t, m.Terminal())
	assert.Equal(t, 4, m.RetryCount())
	assert.Equal(t, MessageVOD, m.Message())

	tr = m.HandleFatalError()
	assert.False(t, tr.Terminal, "terminal is reported exactly once")
	assert.False(t, tr.Advanced)
	assert.Equal(t, LastStrategy, m.Strategy())
	assert.Equal(t, 4, m.RetryCount())
}

func TestResetFromTerminal(t *testing.T) {
	m := NewMachine(stream.KindLive)
	for i := 0; i < 4; i++ {
		m.HandleFatalError()
	}
	require.True(t, m.Terminal())
	assert.Equal(t, MessageLive, m.Message())

	m.Reset()
	assert.False(t, m.Terminal())
	assert.Equal(t, StrategyProxied, m.Strategy())
	assert.Zero(t, m.RetryCount())
	assert.Empty(t, m.Message())

	tr := m.HandleFatalError()
	assert.True(t, tr.Advanced)
	assert.Equal(t, StrategyDirect, tr.To)
}

func TestResetMidway(t *testing.T) {
	m := NewMachine(stream.KindVOD)
	m.HandleFatalError()
	m.HandleFatalError()
	m.Reset()
	assert.Equal(t, StrategyProxied, m.Strategy())
	assert.Zero(t, m.RetryCount())
}

func TestStrategySourceURL(t *testing.T) {
	const target = "http://up/live/ch1.m3u8"
	const base = "http://relay:8088"

	assert.Equal(t, target, StrategyDirect.SourceURL(base, target))

	tests := map[Strategy]relay.Profile{
		StrategyProxied:         relay.ProfileDefault,
		StrategyProxiedHeaders:  relay.ProfileHeaders,
		StrategyProxiedIdentity: relay.ProfileClientIdentity,
	}
	for s, profile := range tests {
		u, err := url.Parse(s.SourceURL(base, target))
		require.NoError(t, err)
		assert.Equal(t, relay.Path, u.Path, s.String())
		assert.Equal(t, target, u.Query().Get("url"))
		assert.Equal(t, profile, relay.ProfileFromQuery(u.Query()))
	}
	assert.Equal(t, "unknown", Strategy(9).String())
}
