// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package playback opens streams for a player, escalating through four
// access strategies on fatal errors before giving up with a message.
package playback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ManuGH/streamcheck/internal/bus"
	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/metrics"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("playback session not found")

// DefaultAttemptTimeout bounds one strategy attempt.
const DefaultAttemptTimeout = 15 * time.Second

// Publisher receives playback events without blocking.
type Publisher interface {
	TryPublish(topic string, evt bus.Event) bool
}

// Config configures a Manager.
type Config struct {
	RelayBase      string
	AttemptTimeout time.Duration
	Loader         Loader
	// OnPlaying runs when a session starts playing, e.g. to mark the URL
	// preloaded in the status store.
	OnPlaying func(url string)
	Publisher Publisher
}

// Manager tracks independent playback sessions.
type Manager struct {
	cfg sessionConfig

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager builds a manager. A Loader is required.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Loader == nil {
		return nil, fmt.Errorf("playback: loader is required")
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	return &Manager{
		cfg: sessionConfig{
			relayBase:      cfg.RelayBase,
			attemptTimeout: cfg.AttemptTimeout,
			loader:         cfg.Loader,
			onPlaying:      cfg.OnPlaying,
			publisher:      cfg.Publisher,
		},
		sessions: make(map[string]*Session),
	}, nil
}

// Open starts a session at the first strategy.
func (m *Manager) Open(ref stream.Ref) (Snapshot, error) {
	if ref.URL == "" {
		return Snapshot{}, fmt.Errorf("playback: url is required")
	}
	s := newSession(uuid.NewString(), ref, m.cfg)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	n := len(m.sessions)
	m.mu.Unlock()
	metrics.SetPlaybackSessions(n)

	s.start()
	return s.Snapshot(), nil
}

func (m *Manager) get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Get returns the state of session id.
func (m *Manager) Get(id string) (Snapshot, error) {
	s, err := m.get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// List returns every open session.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	out := make([]Snapshot, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Snapshot())
	}
	m.mu.RUnlock()
	return out
}

// ReportError feeds a fatal player error into session id.
func (m *Manager) ReportError(id string) (Snapshot, error) {
	s, err := m.get(id)
	if err != nil {
		return Snapshot{}, err
	}
	if err := s.ReportError(); err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// Refresh restarts session id from the first strategy.
func (m *Manager) Refresh(id string) (Snapshot, error) {
	s, err := m.get(id)
	if err != nil {
		return Snapshot{}, err
	}
	if err := s.Refresh(); err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// Close ends session id.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	metrics.SetPlaybackSessions(n)
	return nil
}

// CloseAll ends every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
	metrics.SetPlaybackSessions(0)
}
