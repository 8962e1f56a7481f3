// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamcheck/internal/bus"
	"github.com/ManuGH/streamcheck/internal/domain/stream"
)

func TestUnknownByDefault(t *testing.T) {
	s := New()
	e, ok := s.Get("http://h/a")
	assert.False(t, ok)
	assert.Equal(t, stream.StatusUnknown, e.Status)
	assert.Equal(t, stream.StatusUnknown, s.Status("http://h/a"))
}

func TestSetKeepsPreloadedAndViceVersa(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s := New(WithClock(func() time.Time { return fixed }))

	s.SetPreloaded("u", true)
	s.Set("u", stream.StatusWorking)

	e, ok := s.Get("u")
	require.True(t, ok)
	assert.Equal(t, Entry{Status: stream.StatusWorking, Preloaded: true, UpdatedAt: fixed}, e)

	s.Set("u", stream.StatusBroken)
	assert.True(t, s.Preloaded("u"))
}

func TestClear(t *testing.T) {
	s := New()
	s.Set("a", stream.StatusWorking)
	s.Set("b", stream.StatusBroken)

	s.Clear("a")
	assert.Equal(t, stream.StatusUnknown, s.Status("a"))
	assert.Equal(t, []string{"b"}, s.URLs())

	s.ClearAll()
	assert.Zero(t, s.Len())
}

func TestPublishesEvents(t *testing.T) {
	b := bus.NewMemoryBus(8)
	sub := b.Subscribe(bus.TopicEvents)
	defer sub.Close()

	s := New(WithNotifier(b))
	s.Set("a", stream.StatusChecking)
	s.SetPreloaded("a", true)
	s.Clear("a")
	s.Clear("missing")

	var types []string
	for i := 0; i < 3; i++ {
		types = append(types, (<-sub.C()).Type)
	}
	assert.Equal(t, []string{bus.EventStatus, bus.EventPreloaded, bus.EventCleared}, types)
	select {
	case evt := <-sub.C():
		t.Fatalf("unexpected event %+v", evt)
	default:
	}
}

func TestConcurrentWriters(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		url := fmt.Sprintf("http://h/%d", i)
		go func() {
			defer wg.Done()
			s.Set(url, stream.StatusWorking)
		}()
		go func() {
			defer wg.Done()
			s.SetPreloaded(url, true)
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	require.Len(t, snap, 50)
	for url, e := range snap {
		assert.Equal(t, stream.StatusWorking, e.Status, url)
		assert.True(t, e.Preloaded, url)
	}
}
