// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/service"
)

type checkerFunc func(ctx context.Context, rawURL string) stream.Result

func (f checkerFunc) Check(ctx context.Context, rawURL string) stream.Result { return f(ctx, rawURL) }

type fakePreloader struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (f *fakePreloader) Preload(ctx context.Context, _ string) error {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func localWorking(_ context.Context, u string) stream.Result {
	return stream.Working(u, "application/vnd.apple.mpegurl", 3)
}

func TestValidateServiceWorkingThenPreloaded(t *testing.T) {
	srv := httptest.NewServer(serveJSON(http.StatusOK, service.ValidateStreamResponse{
		Success: true, Status: stream.StatusWorking, ContentType: "application/vnd.apple.mpegurl", ResponseTime: 12,
	}))
	defer srv.Close()

	var probed atomic.Int32
	prober := checkerFunc(func(ctx context.Context, u string) stream.Result {
		probed.Add(1)
		return localWorking(ctx, u)
	})
	pre := &fakePreloader{delay: 20 * time.Millisecond}
	v := New(NewServiceClient(ClientConfig{BaseURL: srv.URL, HTTPClient: srv.Client()}), prober, pre)

	got := v.Validate(context.Background(), "http://x/a.m3u8")
	assert.Equal(t, stream.StatusWorking, got.Status)
	assert.True(t, got.Preloaded)
	assert.EqualValues(t, 12, got.ResponseTimeMs)
	assert.Zero(t, probed.Load(), "service verdict must not trigger local probe")
	assert.EqualValues(t, 1, pre.calls.Load())
}

func TestValidateFallsBackToProbeWhenServiceDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var probed atomic.Int32
	prober := checkerFunc(func(ctx context.Context, u string) stream.Result {
		probed.Add(1)
		return localWorking(ctx, u)
	})
	v := New(NewServiceClient(ClientConfig{BaseURL: srv.URL, HTTPClient: srv.Client()}), prober, &fakePreloader{})

	got := v.Validate(context.Background(), "http://x/a.m3u8")
	assert.Equal(t, stream.StatusWorking, got.Status)
	assert.True(t, got.Preloaded)
	assert.EqualValues(t, 1, probed.Load())
}

func TestValidateWithoutServiceUsesProbe(t *testing.T) {
	v := New(nil, checkerFunc(func(_ context.Context, u string) stream.Result {
		return stream.Broken(u, stream.CauseTransport)
	}), &fakePreloader{})

	got := v.Validate(context.Background(), "http://x/a.m3u8")
	assert.Equal(t, stream.Broken("http://x/a.m3u8", stream.CauseTransport), got)
}

func TestPreloadFailureKeepsWorking(t *testing.T) {
	tests := []struct {
		name string
		pre  *fakePreloader
	}{
		{name: "error", pre: &fakePreloader{err: errors.New("no metadata")}},
		{name: "timeout", pre: &fakePreloader{delay: time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New(nil, checkerFunc(localWorking), tt.pre)
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			got := v.Preload(ctx, stream.Working("http://x/a.m3u8", "", 1))
			assert.Equal(t, stream.StatusWorking, got.Status)
			assert.False(t, got.Preloaded)
		})
	}
}

func TestPreloadSkipsBrokenStreams(t *testing.T) {
	pre := &fakePreloader{}
	v := New(nil, checkerFunc(localWorking), pre)

	got := v.Preload(context.Background(), stream.Broken("http://x/a", stream.CauseNotMedia))
	assert.False(t, got.Preloaded)
	assert.Zero(t, pre.calls.Load())
}

func TestValidateWithoutPreloader(t *testing.T) {
	v := New(nil, checkerFunc(localWorking), nil)
	got := v.Validate(context.Background(), "http://x/a.m3u8")
	assert.True(t, got.IsWorking())
	assert.False(t, got.Preloaded)
}

func TestCheckBatch(t *testing.T) {
	srv := httptest.NewServer(serveJSON(http.StatusOK, service.ValidateStreamsResponse{
		Success: true,
		Results: map[string]stream.Status{"http://x/a": stream.StatusWorking},
	}))
	defer srv.Close()

	v := New(NewServiceClient(ClientConfig{BaseURL: srv.URL, HTTPClient: srv.Client()}), checkerFunc(localWorking), nil)
	got, err := v.CheckBatch(context.Background(), []string{"http://x/a"})
	require.NoError(t, err)
	assert.Equal(t, stream.StatusWorking, got["http://x/a"])

	_, err = New(nil, checkerFunc(localWorking), nil).CheckBatch(context.Background(), []string{"http://x/a"})
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestFromService(t *testing.T) {
	r, ok := FromService("http://x/a", stream.StatusWorking)
	assert.True(t, ok)
	assert.True(t, r.IsWorking())

	r, ok = FromService("http://x/a", stream.StatusBroken)
	assert.True(t, ok)
	assert.Equal(t, stream.CauseNotMedia, r.Cause)

	_, ok = FromService("http://x/a", stream.StatusUnknown)
	assert.False(t, ok)
}
