// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamcheck/internal/api/middleware"
	"github.com/ManuGH/streamcheck/internal/bus"
	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/health"
	"github.com/ManuGH/streamcheck/internal/playback"
	"github.com/ManuGH/streamcheck/internal/scan"
	"github.com/ManuGH/streamcheck/internal/store"
)

// stubValidator reports URLs containing "ok" as working and everything
// else as not media. A non-nil gate blocks probes until closed.
type stubValidator struct {
	gate chan struct{}
}

func (v *stubValidator) Probe(ctx context.Context, u string) stream.Result {
	if v.gate != nil {
		select {
		case <-v.gate:
		case <-ctx.Done():
			return stream.Broken(u, stream.CauseTransport)
		}
	}
	if strings.Contains(u, "ok") {
		return stream.Working(u, "video/mp4", 3)
	}
	return stream.Broken(u, stream.CauseNotMedia)
}

func (v *stubValidator) Validate(ctx context.Context, u string) stream.Result {
	return v.Preload(ctx, v.Probe(ctx, u))
}

func (v *stubValidator) CheckBatch(context.Context, []string) (map[string]stream.Status, error) {
	return nil, errors.New("no service")
}

func (v *stubValidator) Preload(_ context.Context, res stream.Result) stream.Result {
	res.Preloaded = res.IsWorking()
	return res
}

type fixture struct {
	srv   *httptest.Server
	scans *scan.Manager
	store *store.Store
	bus   *bus.MemoryBus
	play  *playback.Manager
}

func newFixture(t *testing.T, v *stubValidator) *fixture {
	t.Helper()
	b := bus.NewMemoryBus(64)
	st := store.New(store.WithNotifier(b))
	noSleep := func(context.Context, time.Duration) error { return nil }
	orch := scan.NewOrchestrator(v, st, scan.DefaultConfig(), scan.WithSleep(noSleep), scan.WithPublisher(b))
	scans := scan.NewManager(orch, b, scan.Defaults{})

	play, err := playback.NewManager(playback.Config{
		RelayBase:      "http://relay.local",
		AttemptTimeout: 30 * time.Second,
		Loader: playback.LoaderFunc(func(ctx context.Context, _ string) error {
			<-ctx.Done()
			return ctx.Err()
		}),
		Publisher: b,
	})
	require.NoError(t, err)

	hm := health.NewManager("test")
	s := New(Config{Version: "v-test", SSEKeepalive: time.Hour}, Deps{
		Scans:    scans,
		Store:    st,
		Bus:      b,
		Playback: play,
		Health:   hm,
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		play.CloseAll()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = scans.Close(ctx)
		srv.Close()
	})
	return &fixture{srv: srv, scans: scans, store: st, bus: b, play: play}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestScanLifecycle(t *testing.T) {
	f := newFixture(t, &stubValidator{})

	resp := f.do(t, http.MethodPost, "/api/v1/scans", ScanRequest{
		Category: "Movies",
		Streams: []stream.Ref{
			{Name: "HBO Feed", URL: "http://x/ok.m3u8"},
			{Name: "Dead", URL: "http://x/dead"},
			{Name: "HBO again", URL: "http://x/ok.m3u8"},
		},
		ScanMode:       "quick",
		ValidationMode: "strict",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	started := decodeBody[ScanStarted](t, resp)
	assert.NotEmpty(t, started.ScanID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.scans.Wait(ctx))

	resp = f.do(t, http.MethodGet, "/api/v1/scans/current", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decodeBody[scan.Status](t, resp)
	assert.Equal(t, scan.StateCompleted, st.State)
	assert.Equal(t, 2, st.TotalToValidate)
	assert.Equal(t, 2, st.ValidatedCount)
	assert.Equal(t, 100, st.Percent)

	resp = f.do(t, http.MethodGet, "/api/v1/status", nil)
	snap := decodeBody[map[string]store.Entry](t, resp)
	assert.Equal(t, stream.StatusWorking, snap["http://x/ok.m3u8"].Status)
	assert.Equal(t, stream.StatusBroken, snap["http://x/dead"].Status)

	resp = f.do(t, http.MethodGet, "/api/v1/status/"+url.PathEscape("http://x/ok.m3u8"), nil)
	entry := decodeBody[StatusEntry](t, resp)
	assert.Equal(t, "http://x/ok.m3u8", entry.URL)
	assert.Equal(t, stream.StatusWorking, entry.Status)

	resp = f.do(t, http.MethodDelete, "/api/v1/status/"+url.PathEscape("http://x/ok.m3u8"), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = f.do(t, http.MethodGet, "/api/v1/status/lookup?url="+url.QueryEscape("http://x/ok.m3u8"), nil)
	assert.Equal(t, stream.StatusUnknown, decodeBody[StatusEntry](t, resp).Status)

	resp = f.do(t, http.MethodGet, "/api/v1/categories", nil)
	cats := decodeBody[[]scan.CategoryState](t, resp)
	require.Len(t, cats, 1)
	assert.Equal(t, scan.CategoryCompleted, cats[0].State)

	resp = f.do(t, http.MethodGet, "/api/v1/scans/last", nil)
	report := decodeBody[scan.Report](t, resp)
	assert.Len(t, report.Results, 2)

	resp = f.do(t, http.MethodDelete, "/api/v1/status", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Zero(t, f.store.Len())
}

func TestScanConflictAndCancel(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	f := newFixture(t, &stubValidator{gate: gate})

	body := ScanRequest{Category: "News", Streams: []stream.Ref{{URL: "http://x/ok1"}, {URL: "http://x/ok2"}}}
	resp := f.do(t, http.MethodPost, "/api/v1/scans", body)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/v1/scans", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "scan_active", decodeBody[middleware.ErrorBody](t, resp).Error)

	resp = f.do(t, http.MethodDelete, "/api/v1/scans/current", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.scans.Wait(ctx))

	resp = f.do(t, http.MethodDelete, "/api/v1/scans/current", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	report, ok := f.scans.LastReport()
	require.True(t, ok)
	assert.True(t, report.Cancelled)
	// aborted checks are not written as broken
	assert.NotEqual(t, stream.StatusBroken, f.store.Status("http://x/ok1"))
}

func TestScanBadRequests(t *testing.T) {
	f := newFixture(t, &stubValidator{})

	tests := []struct {
		name string
		body any
	}{
		{name: "bad mode", body: ScanRequest{Streams: []stream.Ref{{URL: "http://x/ok"}}, ScanMode: "deep"}},
		{name: "bad validation", body: ScanRequest{Streams: []stream.Ref{{URL: "http://x/ok"}}, ValidationMode: "paranoid"}},
		{name: "no streams", body: ScanRequest{Category: "x"}},
		{name: "unknown field", body: map[string]any{"streams": []any{}, "bogus": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/api/v1/scans", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decodeBody[middleware.ErrorBody](t, resp)
			assert.Equal(t, "bad_request", body.Error)
			assert.NotEmpty(t, body.RequestID)
		})
	}
}

func TestValidateEndpoint(t *testing.T) {
	f := newFixture(t, &stubValidator{})

	resp := f.do(t, http.MethodPost, "/api/v1/validate", ValidateRequest{URL: "http://x/ok.mp4", ScanMode: "preload"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decodeBody[stream.Result](t, resp)
	assert.Equal(t, stream.StatusWorking, res.Status)
	assert.True(t, res.Preloaded)
	assert.Equal(t, stream.StatusWorking, f.store.Status("http://x/ok.mp4"))

	resp = f.do(t, http.MethodPost, "/api/v1/validate", ValidateRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestValidateEndpointAlwaysReportsPreloaded(t *testing.T) {
	f := newFixture(t, &stubValidator{})

	resp := f.do(t, http.MethodPost, "/api/v1/validate", ValidateRequest{URL: "http://x/ok.m3u8", ScanMode: "quick", ValidationMode: "strict"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "http://x/ok.m3u8", body["url"])
	assert.Equal(t, "working", body["status"])
	require.Contains(t, body, "preloaded")
	assert.Equal(t, false, body["preloaded"])
}

func TestPlaybackEndpoints(t *testing.T) {
	f := newFixture(t, &stubValidator{})

	resp := f.do(t, http.MethodPost, "/api/v1/playback", PlaybackRequest{Name: "Live News", URL: "http://x/live.m3u8"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	snap := decodeBody[playback.Snapshot](t, resp)
	require.NotEmpty(t, snap.ID)
	assert.Equal(t, "proxied", snap.Strategy)

	resp = f.do(t, http.MethodPost, "/api/v1/playback/"+snap.ID+"/error", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decodeBody[playback.Snapshot](t, resp).RetryCount)

	resp = f.do(t, http.MethodGet, "/api/v1/playback/"+snap.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/playback", nil)
	assert.Len(t, decodeBody[[]playback.Snapshot](t, resp), 1)

	resp = f.do(t, http.MethodDelete, "/api/v1/playback/"+snap.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/playback/"+snap.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/v1/playback", PlaybackRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEventStream(t *testing.T) {
	f := newFixture(t, &stubValidator{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/api/v1/events?types=scan,status", nil)
	require.NoError(t, err)
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	rd := bufio.NewReader(resp.Body)
	nextEvent := func() string {
		for {
			line, err := rd.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "event: ") {
				return strings.TrimSpace(strings.TrimPrefix(line, "event: "))
			}
		}
	}
	assert.Equal(t, bus.EventScan, nextEvent())

	require.Eventually(t, func() bool { return f.bus.Subscribers(bus.TopicEvents) == 1 }, time.Second, 10*time.Millisecond)
	f.store.SetPreloaded("http://x/a", true) // filtered out
	f.store.Set("http://x/a", stream.StatusWorking)
	assert.Equal(t, bus.EventStatus, nextEvent())
}

func TestHealthAndFallbackRoutes(t *testing.T) {
	f := newFixture(t, &stubValidator{})

	resp := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = f.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/version", nil)
	assert.Equal(t, "v-test", decodeBody[map[string]string](t, resp)["version"])

	resp = f.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decodeBody[middleware.ErrorBody](t, resp).Error)
}
