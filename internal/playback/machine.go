// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import "github.com/ManuGH/streamcheck/internal/domain/stream"

// Terminal failure messages by stream kind.
const (
	MessageLive = "Failed to load live stream. Live streams may require specific headers or user agents. Try opening in VLC."
	MessageVOD  = "Failed to load video stream after multiple attempts. Try opening in VLC."
)

// Transition describes the effect of one HandleFatalError call.
type Transition struct {
	From     Strategy
	To       Strategy
	Advanced bool
	// Terminal is set only on the call that exhausted the last strategy.
	Terminal bool
}

// Machine is the retry state of one playback session. It is not safe for
// concurrent use; Session serializes access.
type Machine struct {
	kind       stream.Kind
	strategy   Strategy
	retryCount int
	terminal   bool
}

// NewMachine starts at the first strategy.
func NewMachine(kind stream.Kind) *Machine {
	return &Machine{kind: kind, strategy: StrategyProxied}
}

// Strategy returns the current strategy.
func (m *Machine) Strategy() Strategy { return m.strategy }

// RetryCount returns how many strategies have failed since the last reset.
func (m *Machine) RetryCount() int { return m.retryCount }

// Terminal reports whether every strategy has failed.
func (m *Machine) Terminal() bool { return m.terminal }

// Kind returns the stream kind used for the failure message.
func (m *Machine) Kind() stream.Kind { return m.kind }

// Message is the user-facing failure text, empty until terminal.
func (m *Machine) Message() string {
	if !m.terminal {
		return ""
	}
	if m.kind == stream.KindLive {
		return MessageLive
	}
	return MessageVOD
}

// HandleFatalError records a fatal load error in the current strategy and
// advances. Once terminal, further errors change nothing.
func (m *Machine) HandleFatalError() Transition {
	t := Transition{From: m.strategy, To: m.strategy}
	if m.terminal {
		return t
	}
	m.retryCount++
	if m.strategy < LastStrategy {
		m.strategy++
		t.To = m.strategy
		t.Advanced = true
		return t
	}
	m.terminal = true
	t.Terminal = true
	return t
}

// Reset returns to the first strategy and clears the failure, regardless of
// prior exhaustion.
func (m *Machine) Reset() {
	m.strategy = StrategyProxied
	m.retryCount = 0
	m.terminal = false
}
