// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusDelivers(t *testing.T) {
	b := NewMemoryBus(4)
	sub := b.Subscribe(TopicEvents)
	defer sub.Close()

	require.NoError(t, b.Publish(context.Background(), TopicEvents, NewEvent(EventStatus, "x")))
	select {
	case evt := <-sub.C():
		assert.Equal(t, EventStatus, evt.Type)
		assert.Equal(t, "x", evt.Data)
		assert.False(t, evt.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestMemoryBusPublishContextTimeout(t *testing.T) {
	b := NewMemoryBus(1)
	sub := b.Subscribe(TopicEvents)
	defer sub.Close()

	require.NoError(t, b.Publish(context.Background(), TopicEvents, NewEvent(EventStatus, 1)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := b.Publish(ctx, TopicEvents, NewEvent(EventStatus, 2))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryBusPublishRejectsNilContext(t *testing.T) {
	b := NewMemoryBus(0)
	err := b.Publish(nil, TopicEvents, Event{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context is nil")
}

func TestTryPublishDropsWhenFull(t *testing.T) {
	b := NewMemoryBus(1)
	sub := b.Subscribe(TopicEvents)
	defer sub.Close()

	assert.True(t, b.TryPublish(TopicEvents, NewEvent(EventProgress, 1)))
	assert.False(t, b.TryPublish(TopicEvents, NewEvent(EventProgress, 2)))

	evt := <-sub.C()
	assert.Equal(t, 1, evt.Data)
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	b := NewMemoryBus(1)
	sub := b.Subscribe(TopicEvents)
	assert.Equal(t, 1, b.Subscribers(TopicEvents))

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, b.Subscribers(TopicEvents))

	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.True(t, b.TryPublish(TopicEvents, NewEvent(EventStatus, nil)))
}
