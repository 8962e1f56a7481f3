// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package store keeps the last known validation status of every URL for the
// lifetime of the process. Nothing is written to durable storage.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/ManuGH/streamcheck/internal/bus"
	"github.com/ManuGH/streamcheck/internal/domain/stream"
)

// Entry is the stored state of one URL.
type Entry struct {
	Status    stream.Status `json:"status"`
	Preloaded bool          `json:"preloaded"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// StatusEvent is published when a status is written.
type StatusEvent struct {
	URL    string        `json:"url"`
	Status stream.Status `json:"status"`
}

// PreloadedEvent is published when the preloaded flag is written.
type PreloadedEvent struct {
	URL       string `json:"url"`
	Preloaded bool   `json:"preloaded"`
}

// ClearedEvent is published when an entry (or every entry) is removed.
type ClearedEvent struct {
	URL string `json:"url,omitempty"`
	All bool   `json:"all,omitempty"`
}

// Notifier receives change events. Delivery must not block writers.
type Notifier interface {
	TryPublish(topic string, evt bus.Event) bool
}

// Store is a last-write-wins map of url to Entry. Reads never take a lock;
// writers are serialized so read-modify-write of one entry is atomic.
type Store struct {
	entries  sync.Map // string -> Entry
	writeMu  sync.Mutex
	notifier Notifier
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithNotifier publishes every write to n.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set records the status of url, keeping its preloaded flag.
func (s *Store) Set(url string, status stream.Status) {
	s.writeMu.Lock()
	e := s.load(url)
	e.Status = status
	e.UpdatedAt = s.now()
	s.entries.Store(url, e)
	s.writeMu.Unlock()

	s.publish(bus.EventStatus, StatusEvent{URL: url, Status: status})
}

// SetPreloaded records whether url is primed for instant playback.
func (s *Store) SetPreloaded(url string, preloaded bool) {
	s.writeMu.Lock()
	e := s.load(url)
	e.Preloaded = preloaded
	e.UpdatedAt = s.now()
	s.entries.Store(url, e)
	s.writeMu.Unlock()

	s.publish(bus.EventPreloaded, PreloadedEvent{URL: url, Preloaded: preloaded})
}

// Clear forgets url; it reads as unknown afterwards.
func (s *Store) Clear(url string) {
	s.writeMu.Lock()
	_, existed := s.entries.LoadAndDelete(url)
	s.writeMu.Unlock()

	if existed {
		s.publish(bus.EventCleared, ClearedEvent{URL: url})
	}
}

// ClearAll forgets every entry.
func (s *Store) ClearAll() {
	s.writeMu.Lock()
	s.entries.Range(func(k, _ any) bool {
		s.entries.Delete(k)
		return true
	})
	s.writeMu.Unlock()

	s.publish(bus.EventCleared, ClearedEvent{All: true})
}

// Get returns the entry for url and whether it exists.
func (s *Store) Get(url string) (Entry, bool) {
	v, ok := s.entries.Load(url)
	if !ok {
		return Entry{Status: stream.StatusUnknown}, false
	}
	return v.(Entry), true
}

// Status returns the status of url, unknown when never written.
func (s *Store) Status(url string) stream.Status {
	e, _ := s.Get(url)
	return e.Status
}

// Preloaded reports the preloaded flag of url.
func (s *Store) Preloaded(url string) bool {
	e, _ := s.Get(url)
	return e.Preloaded
}

// Snapshot copies every entry.
func (s *Store) Snapshot() map[string]Entry {
	out := make(map[string]Entry)
	s.entries.Range(func(k, v any) bool {
		out[k.(string)] = v.(Entry)
		return true
	})
	return out
}

// URLs returns every stored URL, sorted.
func (s *Store) URLs() []string {
	var urls []string
	s.entries.Range(func(k, _ any) bool {
		urls = append(urls, k.(string))
		return true
	})
	sort.Strings(urls)
	return urls
}

// Len returns the number of entries.
func (s *Store) Len() int {
	n := 0
	s.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (s *Store) load(url string) Entry {
	if v, ok := s.entries.Load(url); ok {
		return v.(Entry)
	}
	return Entry{Status: stream.StatusUnknown}
}

func (s *Store) publish(typ string, data any) {
	if s.notifier == nil {
		return
	}
	s.notifier.TryPublish(bus.TopicEvents, bus.NewEvent(typ, data))
}
