// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/streamcheck/internal/bus"
	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/log"
	"github.com/ManuGH/streamcheck/internal/metrics"
)

// ErrSessionClosed is returned for operations on a closed session.
var ErrSessionClosed = errors.New("playback session closed")

// Session states.
const (
	StateLoading = "loading"
	StatePlaying = "playing"
	StateFailed  = "failed"
	StateClosed  = "closed"
)

// Loader opens a source and returns once media metadata is available.
type Loader interface {
	Load(ctx context.Context, sourceURL string) error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, sourceURL string) error

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context, sourceURL string) error { return f(ctx, sourceURL) }

// Snapshot is the externally visible session state.
type Snapshot struct {
	ID            string      `json:"id"`
	Name          string      `json:"name,omitempty"`
	URL           string      `json:"url"`
	Kind          stream.Kind `json:"kind"`
	State         string      `json:"state"`
	Strategy      string      `json:"strategy"`
	StrategyIndex int         `json:"strategyIndex"`
	SourceURL     string      `json:"sourceUrl"`
	RetryCount    int         `json:"retryCount"`
	Message       string      `json:"message,omitempty"`
	StartedAt     time.Time   `json:"startedAt"`
}

type attempt struct {
	gen       uint64
	strategy  Strategy
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

type sessionConfig struct {
	relayBase      string
	attemptTimeout time.Duration
	loader         Loader
	onPlaying      func(url string)
	publisher      Publisher
}

// Session plays one stream. At most one attempt is in flight; every
// transition cancels and drains the previous attempt before the next one
// starts.
type Session struct {
	id     string
	ref    stream.Ref
	cfg    sessionConfig
	logger zerolog.Logger

	// opMu serializes externally triggered transitions.
	opMu sync.Mutex

	mu        sync.Mutex
	machine   *Machine
	state     string
	gen       uint64
	current   *attempt
	startedAt time.Time
}

func newSession(id string, ref stream.Ref, cfg sessionConfig) *Session {
	return &Session{
		id:        id,
		ref:       ref,
		cfg:       cfg,
		logger:    log.WithComponent("playback").With().Str(log.FieldSessionID, id).Logger(),
		machine:   NewMachine(stream.ClassifyKind(ref.URL, ref.Name)),
		state:     StateLoading,
		startedAt: time.Now(),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

func (s *Session) start() {
	s.mu.Lock()
	s.launchLocked()
	s.mu.Unlock()
	s.publish()
}

// launchLocked starts an attempt for the machine's current strategy.
func (s *Session) launchLocked() {
	s.gen++
	strategy := s.machine.Strategy()
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.attemptTimeout)
	a := &attempt{
		gen:       s.gen,
		strategy:  strategy,
		startedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	s.current = a
	s.state = StateLoading
	src := strategy.SourceURL(s.cfg.relayBase, s.ref.URL)

	s.logger.Debug().
		Str(log.FieldEvent, "playback.attempt").
		Str(log.FieldStrategy, strategy.String()).
		Str(log.FieldURL, log.RedactURL(s.ref.URL)).
		Msg("starting playback attempt")

	go s.run(ctx, a, src)
}

func (s *Session) run(ctx context.Context, a *attempt, src string) {
	defer close(a.done)
	err := s.cfg.loader.Load(ctx, src)
	a.cancel()

	s.mu.Lock()
	if a.gen != s.gen || s.state == StateClosed {
		// superseded by an external transition
		s.mu.Unlock()
		return
	}
	s.current = nil
	if err == nil {
		s.state = StatePlaying
		s.mu.Unlock()
		s.logger.Info().
			Str(log.FieldEvent, "playback.playing").
			Str(log.FieldStrategy, a.strategy.String()).
			Msg("playback started")
		if s.cfg.onPlaying != nil {
			s.cfg.onPlaying(s.ref.URL)
		}
		s.publish()
		return
	}
	s.logger.Debug().Err(err).
		Str(log.FieldEvent, "playback.attempt_failed").
		Str(log.FieldStrategy, a.strategy.String()).
		Msg("playback attempt failed")
	s.failLocked()
	s.mu.Unlock()
	s.publish()
}

// failLocked feeds a fatal error to the machine and either launches the
// next strategy or enters terminal failure.
func (s *Session) failLocked() {
	t := s.machine.HandleFatalError()
	switch {
	case t.Advanced:
		metrics.RecordPlaybackTransition(t.From.String(), t.To.String())
		s.logger.Info().
			Str(log.FieldEvent, "playback.fallback").
			Str(log.FieldOldState, t.From.String()).
			Str(log.FieldNewState, t.To.String()).
			Int(log.FieldRetryCount, s.machine.RetryCount()).
			Msg("switching playback strategy")
		s.launchLocked()
	case t.Terminal:
		s.state = StateFailed
		metrics.RecordPlaybackTerminal(string(s.machine.Kind()))
		s.logger.Warn().
			Str(log.FieldEvent, "playback.terminal").
			Str(log.FieldURL, log.RedactURL(s.ref.URL)).
			Msg(s.machine.Message())
	}
}

// stopCurrent cancels the in-flight attempt and waits for it to exit. The
// generation bump makes its completion a no-op. Caller holds opMu.
func (s *Session) stopCurrent() (closed bool) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return true
	}
	s.gen++
	cur := s.current
	s.current = nil
	s.mu.Unlock()

	if cur != nil {
		cur.cancel()
		<-cur.done
	}
	return false
}

// ReportError records a fatal decode error raised by the player for the
// current strategy.
func (s *Session) ReportError() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	failed := s.state == StateFailed
	s.mu.Unlock()
	if failed {
		// no automatic retry beyond the last strategy
		return nil
	}
	if s.stopCurrent() {
		return ErrSessionClosed
	}
	s.mu.Lock()
	s.failLocked()
	s.mu.Unlock()
	s.publish()
	return nil
}

// Refresh restarts from the first strategy and clears any terminal failure.
func (s *Session) Refresh() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.stopCurrent() {
		return ErrSessionClosed
	}
	s.mu.Lock()
	s.machine.Reset()
	s.launchLocked()
	s.mu.Unlock()
	s.logger.Info().Str(log.FieldEvent, "playback.refresh").Msg("playback refreshed")
	s.publish()
	return nil
}

// Close cancels any attempt and releases the session.
func (s *Session) Close() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.stopCurrent() {
		return
	}
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	s.publish()
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	strategy := s.machine.Strategy()
	return Snapshot{
		ID:            s.id,
		Name:          s.ref.Name,
		URL:           s.ref.URL,
		Kind:          s.machine.Kind(),
		State:         s.state,
		Strategy:      strategy.String(),
		StrategyIndex: int(strategy),
		SourceURL:     strategy.SourceURL(s.cfg.relayBase, s.ref.URL),
		RetryCount:    s.machine.RetryCount(),
		Message:       s.machine.Message(),
		StartedAt:     s.startedAt,
	}
}

func (s *Session) publish() {
	if s.cfg.publisher == nil {
		return
	}
	s.cfg.publisher.TryPublish(bus.TopicEvents, bus.NewEvent(bus.EventPlayback, s.Snapshot()))
}
