// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bus is the in-process pub/sub that carries status, progress and
// playback events to the UI collaborator.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/streamcheck/internal/log"
	"github.com/ManuGH/streamcheck/internal/metrics"
)

// TopicEvents carries every UI-facing event.
const TopicEvents = "events"

// Event types.
const (
	EventStatus    = "status"
	EventPreloaded = "preloaded"
	EventCleared   = "cleared"
	EventProgress  = "progress"
	EventScan      = "scan"
	EventPlayback  = "playback"
)

// Event is the envelope delivered to subscribers.
type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data"`
	At   time.Time `json:"at"`
}

// NewEvent stamps an event with the current time.
func NewEvent(typ string, data any) Event {
	return Event{Type: typ, Data: data, At: time.Now().UTC()}
}

// Publisher is the write side used by producers.
type Publisher interface {
	Publish(ctx context.Context, topic string, evt Event) error
	TryPublish(topic string, evt Event) bool
}

// MemoryBus is an in-memory pub/sub. It is not durable; slow subscribers
// lose events instead of stalling producers when TryPublish is used.
type MemoryBus struct {
	mu      sync.RWMutex
	subs    map[string][]chan Event
	bufSize int
}

const (
	defaultBuffer = 64
	dropLogEvery  = 100
)

var dropCount atomic.Uint64

// NewMemoryBus returns an empty bus. bufSize <= 0 selects the default.
func NewMemoryBus(bufSize int) *MemoryBus {
	if bufSize <= 0 {
		bufSize = defaultBuffer
	}
	return &MemoryBus{subs: make(map[string][]chan Event), bufSize: bufSize}
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

func recordDrop(topic, reason string) {
	metrics.IncBusDropReason(topic, reason)
	count := dropCount.Add(1)
	if count%dropLogEvery == 0 {
		logger := log.WithComponent("bus")
		logger.Warn().
			Str("topic", topic).
			Str("reason", reason).
			Uint64("dropped", count).
			Msg("memory bus dropped events")
	}
}

// Publish delivers evt to every subscriber of topic, waiting for buffer
// space until ctx is done.
func (b *MemoryBus) Publish(ctx context.Context, topic string, evt Event) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- evt:
		case <-ctx.Done():
			recordDrop(topic, publishDropReason(ctx.Err()))
			return fmt.Errorf("publish topic %q: %w", topic, ctx.Err())
		}
	}
	return nil
}

// TryPublish delivers evt without blocking. Subscribers with a full buffer
// miss the event. It reports whether every subscriber received it.
func (b *MemoryBus) TryPublish(topic string, evt Event) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	delivered := true
	for _, ch := range b.subs[topic] {
		select {
		case ch <- evt:
		default:
			delivered = false
			recordDrop(topic, "full")
		}
	}
	return delivered
}

// Subscribe registers a new subscriber on topic.
func (b *MemoryBus) Subscribe(topic string) *Subscription {
	ch := make(chan Event, b.bufSize)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	return &Subscription{b: b, topic: topic, ch: ch}
}

// Subscribers returns the number of subscribers on topic.
func (b *MemoryBus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Subscription is one subscriber's channel.
type Subscription struct {
	b      *MemoryBus
	topic  string
	ch     chan Event
	closed sync.Once
}

// C returns the delivery channel. It is closed by Close.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.closed.Do(func() {
		s.b.mu.Lock()
		defer s.b.mu.Unlock()

		lst := s.b.subs[s.topic]
		out := lst[:0]
		for _, c := range lst {
			if c != s.ch {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			delete(s.b.subs, s.topic)
		} else {
			s.b.subs[s.topic] = out
		}
		close(s.ch)
	})
}

var _ Publisher = (*MemoryBus)(nil)
