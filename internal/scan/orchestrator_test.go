// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scan

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/streamcheck/internal/bus"
	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/probe"
	"github.com/ManuGH/streamcheck/internal/store"
	"github.com/ManuGH/streamcheck/internal/validator"
)

type fakeValidator struct {
	probe    func(ctx context.Context, u string) stream.Result
	validate func(ctx context.Context, u string) stream.Result
	batch    func(ctx context.Context, urls []string) (map[string]stream.Status, error)
	preload  func(ctx context.Context, r stream.Result) stream.Result

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	calls       atomic.Int32
}

func (f *fakeValidator) track() func() {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeValidator) Probe(ctx context.Context, u string) stream.Result {
	defer f.track()()
	if f.probe != nil {
		return f.probe(ctx, u)
	}
	return stream.Working(u, "video/mp2t", 1)
}

func (f *fakeValidator) Validate(ctx context.Context, u string) stream.Result {
	defer f.track()()
	if f.validate != nil {
		return f.validate(ctx, u)
	}
	r := stream.Working(u, "video/mp2t", 1)
	r.Preloaded = true
	return r
}

func (f *fakeValidator) CheckBatch(ctx context.Context, urls []string) (map[string]stream.Status, error) {
	if f.batch != nil {
		return f.batch(ctx, urls)
	}
	return nil, validator.ErrServiceUnavailable
}

func (f *fakeValidator) Preload(ctx context.Context, r stream.Result) stream.Result {
	if f.preload != nil {
		return f.preload(ctx, r)
	}
	r.Preloaded = r.IsWorking()
	return r
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func refs(n int) []stream.Ref {
	out := make([]stream.Ref, n)
	for i := range out {
		out[i] = stream.Ref{Name: fmt.Sprintf("ch%d", i), URL: fmt.Sprintf("http://x/%d.ts", i)}
	}
	return out
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestQuickScanScenario(t *testing.T) {
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/vnd.apple.mpegurl"}},
			Body:       io.NopCloser(strings.NewReader("")),
			Request:    r,
		}, nil
	})
	p := probe.New(time.Second, probe.WithHTTPClient(&http.Client{Transport: transport}))
	st := store.New()
	o := NewOrchestrator(validator.New(nil, p, nil), st, DefaultConfig())

	report := o.Run(context.Background(), Request{
		Category: "Movies",
		Streams:  []stream.Ref{{Name: "HBO Feed", URL: "http://x/a.m3u8"}},
		ScanMode: stream.ScanQuick,
	}, nil)

	require.Len(t, report.Results, 1)
	got := report.Results[0]
	assert.Equal(t, "http://x/a.m3u8", got.URL)
	assert.Equal(t, stream.StatusWorking, got.Status)
	assert.False(t, got.Preloaded)
	assert.Equal(t, stream.StatusWorking, st.Status("http://x/a.m3u8"))
	assert.Equal(t, 1, report.Validated)
}

func TestPreloadScanScenario(t *testing.T) {
	var preloads atomic.Int32
	fv := &fakeValidator{
		batch: func(_ context.Context, urls []string) (map[string]stream.Status, error) {
			return map[string]stream.Status{urls[0]: stream.StatusWorking}, nil
		},
		preload: func(ctx context.Context, r stream.Result) stream.Result {
			preloads.Add(1)
			select {
			case <-time.After(20 * time.Millisecond):
				r.Preloaded = true
			case <-ctx.Done():
			}
			return r
		},
	}
	st := store.New()
	o := NewOrchestrator(fv, st, DefaultConfig())

	report := o.Run(context.Background(), Request{
		Streams:  []stream.Ref{{Name: "HBO Feed", URL: "http://x/a.m3u8"}},
		ScanMode: stream.ScanPreload,
	}, nil)

	require.Len(t, report.Results, 1)
	assert.True(t, report.Results[0].Preloaded)
	assert.Equal(t, stream.StatusWorking, report.Results[0].Status)
	assert.True(t, st.Preloaded("http://x/a.m3u8"))
	assert.EqualValues(t, 1, preloads.Load())
	assert.Zero(t, fv.calls.Load(), "service verdict must not trigger individual validation")
}

func TestPreloadScanFallsBackWhenServiceTimesOut(t *testing.T) {
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer svc.Close()

	var probed atomic.Int32
	prober := probeFunc(func(_ context.Context, u string) stream.Result {
		probed.Add(1)
		return stream.Working(u, "video/mp2t", 2)
	})
	client := validator.NewServiceClient(validator.ClientConfig{
		BaseURL:      svc.URL,
		HTTPClient:   svc.Client(),
		Timeout:      50 * time.Millisecond,
		BatchTimeout: 50 * time.Millisecond,
		BreakerReset: time.Hour,
	})
	v := validator.New(client, prober, preloaderFunc(func(context.Context, string) error { return nil }))
	st := store.New()
	o := NewOrchestrator(v, st, DefaultConfig())

	report := o.Run(context.Background(), Request{Streams: refs(3), ScanMode: stream.ScanPreload, ValidationMode: stream.ValidationStrict}, nil)

	require.Len(t, report.Results, 3)
	for _, r := range report.Results {
		assert.Equal(t, stream.StatusWorking, r.Status, r.URL)
		assert.True(t, r.Preloaded, r.URL)
	}
	assert.EqualValues(t, 3, probed.Load())
	assert.Equal(t, 3, report.Validated)
	assert.Equal(t, 1, report.Batches)
}

func TestLenientKeepsUnreachableHostBroken(t *testing.T) {
	p := probe.New(time.Second)
	client := validator.NewServiceClient(validator.ClientConfig{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	st := store.New()
	o := NewOrchestrator(validator.New(client, p, nil), st, DefaultConfig())

	dead := "http://127.0.0.1:1/live.bin"
	for _, mode := range []stream.ScanMode{stream.ScanQuick, stream.ScanPreload} {
		t.Run(string(mode), func(t *testing.T) {
			report := o.Run(context.Background(), Request{
				Streams:        []stream.Ref{{Name: "dead", URL: dead}},
				ScanMode:       mode,
				ValidationMode: stream.ValidationLenient,
			}, nil)

			require.Len(t, report.Results, 1)
			assert.Equal(t, stream.StatusBroken, report.Results[0].Status)
			assert.Equal(t, stream.CauseTransport, report.Results[0].Cause)
			assert.Equal(t, stream.StatusBroken, st.Status(dead))
		})
	}
}

func TestLenientForgivesAbortedValidation(t *testing.T) {
	fv := &fakeValidator{probe: func(_ context.Context, u string) stream.Result {
		panic("boom")
	}}
	st := store.New()
	report := NewOrchestrator(fv, st, DefaultConfig()).Run(context.Background(), Request{Streams: refs(1), ScanMode: stream.ScanQuick, ValidationMode: stream.ValidationLenient}, nil)

	require.Len(t, report.Results, 1)
	assert.Equal(t, stream.StatusWorking, report.Results[0].Status)
	assert.Equal(t, stream.CauseAborted, report.Results[0].Cause)
	assert.Equal(t, stream.StatusWorking, st.Status("http://x/0.ts"))
}

type probeFunc func(ctx context.Context, u string) stream.Result

func (f probeFunc) Check(ctx context.Context, u string) stream.Result { return f(ctx, u) }

type preloaderFunc func(ctx context.Context, u string) error

func (f preloaderFunc) Preload(ctx context.Context, u string) error { return f(ctx, u) }

func TestBatchBarriersAndProgress(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	tests := []struct {
		name    string
		mode    stream.ScanMode
		n       int
		size    int
		batches int
		delay   time.Duration
	}{
		{name: "quick exact", mode: stream.ScanQuick, n: 10, size: 5, batches: 2, delay: 500 * time.Millisecond},
		{name: "quick remainder", mode: stream.ScanQuick, n: 12, size: 5, batches: 3, delay: 500 * time.Millisecond},
		{name: "preload", mode: stream.ScanPreload, n: 7, size: 3, batches: 3, delay: time.Second},
		{name: "single", mode: stream.ScanQuick, n: 1, size: 5, batches: 1, delay: 500 * time.Millisecond},
		{name: "empty", mode: stream.ScanQuick, n: 0, size: 5, batches: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fv := &fakeValidator{}
			slow := func(ctx context.Context, u string) stream.Result {
				time.Sleep(5 * time.Millisecond)
				return stream.Working(u, "", 1)
			}
			fv.probe, fv.validate = slow, slow
			rec := &sleepRecorder{}
			tracker := NewTracker()
			o := NewOrchestrator(fv, store.New(), DefaultConfig(), WithSleep(rec.sleep))

			report := o.Run(context.Background(), Request{Streams: refs(tt.n), ScanMode: tt.mode}, tracker)

			assert.Equal(t, tt.batches, report.Batches)
			assert.Equal(t, tt.n, report.Validated)
			assert.Equal(t, tt.n, tracker.Snapshot().ValidatedCount)
			assert.EqualValues(t, tt.n, fv.calls.Load())
			assert.LessOrEqual(t, int(fv.maxInFlight.Load()), tt.size)
			assert.False(t, report.Cancelled)
			if tt.batches > 1 {
				require.Len(t, rec.delays, tt.batches-1)
				assert.Equal(t, tt.delay, rec.delays[0])
			} else {
				assert.Empty(t, rec.delays)
			}
		})
	}
}

func TestBatchRunsMembersInParallel(t *testing.T) {
	var arrived sync.WaitGroup
	arrived.Add(5)
	fv := &fakeValidator{probe: func(ctx context.Context, u string) stream.Result {
		arrived.Done()
		arrived.Wait()
		return stream.Working(u, "", 1)
	}}
	o := NewOrchestrator(fv, store.New(), DefaultConfig(), WithSleep(func(context.Context, time.Duration) error { return nil }))

	done := make(chan Report, 1)
	go func() { done <- o.Run(context.Background(), Request{Streams: refs(5), ScanMode: stream.ScanQuick}, nil) }()

	select {
	case r := <-done:
		assert.Equal(t, 5, r.Validated)
	case <-time.After(2 * time.Second):
		t.Fatal("batch members did not run concurrently")
	}
}

func TestDuplicatesCollapse(t *testing.T) {
	fv := &fakeValidator{}
	in := []stream.Ref{
		{Name: "a", URL: "http://x/a.ts"},
		{Name: "a again", URL: "http://x/a.ts"},
		{Name: "b", URL: "http://x/b.ts"},
	}
	report := NewOrchestrator(fv, store.New(), DefaultConfig()).Run(context.Background(), Request{Streams: in, ScanMode: stream.ScanQuick}, nil)

	assert.Equal(t, 2, report.Validated)
	assert.EqualValues(t, 2, fv.calls.Load())
	got := make([]string, 0, len(report.Results))
	for _, r := range report.Results {
		got = append(got, r.URL)
	}
	if diff := cmp.Diff([]string{"http://x/a.ts", "http://x/b.ts"}, got); diff != "" {
		t.Errorf("result urls mismatch (-want +got):\n%s", diff)
	}
}

func TestPolicyAppliedBeforeStore(t *testing.T) {
	results := map[string]stream.Result{
		"http://x/0.ts": stream.Broken("http://x/0.ts", stream.CauseTransport),
		"http://x/1.ts": stream.Broken("http://x/1.ts", stream.CauseNotMedia),
		"http://x/2.ts": stream.Working("http://x/2.ts", "video/mp2t", 1),
	}
	want := map[stream.ValidationMode]map[string]stream.Status{
		stream.ValidationStrict: {
			"http://x/0.ts": stream.StatusBroken,
			"http://x/1.ts": stream.StatusBroken,
			"http://x/2.ts": stream.StatusWorking,
		},
		stream.ValidationLenient: {
			"http://x/0.ts": stream.StatusBroken,
			"http://x/1.ts": stream.StatusBroken,
			"http://x/2.ts": stream.StatusWorking,
		},
		stream.ValidationDisabled: {
			"http://x/0.ts": stream.StatusWorking,
			"http://x/1.ts": stream.StatusWorking,
			"http://x/2.ts": stream.StatusWorking,
		},
	}
	for mode, expected := range want {
		t.Run(string(mode), func(t *testing.T) {
			fv := &fakeValidator{probe: func(_ context.Context, u string) stream.Result { return results[u] }}
			st := store.New()
			NewOrchestrator(fv, st, DefaultConfig()).Run(context.Background(), Request{Streams: refs(3), ScanMode: stream.ScanQuick, ValidationMode: mode}, nil)

			got := make(map[string]stream.Status)
			for u, e := range st.Snapshot() {
				got[u] = e.Status
			}
			if diff := cmp.Diff(expected, got); diff != "" {
				t.Errorf("store mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPanickingCheckResolvesBroken(t *testing.T) {
	fv := &fakeValidator{probe: func(_ context.Context, u string) stream.Result {
		if u == "http://x/1.ts" {
			panic("boom")
		}
		return stream.Working(u, "", 1)
	}}
	st := store.New()
	report := NewOrchestrator(fv, st, DefaultConfig()).Run(context.Background(), Request{Streams: refs(3), ScanMode: stream.ScanQuick, ValidationMode: stream.ValidationStrict}, nil)

	assert.Equal(t, 3, report.Validated)
	assert.Equal(t, stream.Broken("http://x/1.ts", stream.CauseAborted), report.Results[1])
	assert.Equal(t, stream.StatusBroken, st.Status("http://x/1.ts"))
}

func TestCancellationStopsNewBatchesAndClearsAborted(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{}, 5)
	fv := &fakeValidator{probe: func(ctx context.Context, u string) stream.Result {
		started <- struct{}{}
		<-ctx.Done()
		return stream.Broken(u, stream.CauseTransport)
	}}
	st := store.New()
	o := NewOrchestrator(fv, st, DefaultConfig())

	done := make(chan Report, 1)
	go func() { done <- o.Run(ctx, Request{Streams: refs(8), ScanMode: stream.ScanQuick}, nil) }()

	for i := 0; i < 5; i++ {
		<-started
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, stream.StatusChecking, st.Status(fmt.Sprintf("http://x/%d.ts", i)))
	}
	cancel()

	report := <-done
	assert.True(t, report.Cancelled)
	assert.Equal(t, 1, report.Batches)
	assert.Equal(t, 0, report.Validated)
	assert.EqualValues(t, 5, fv.calls.Load(), "no batch may start after cancel")
	assert.Zero(t, st.Len(), "aborted entries return to unknown")
	require.Len(t, report.Results, 8)
	for _, r := range report.Results {
		assert.Equal(t, stream.StatusUnknown, r.Status)
	}
}

type notifierFunc func(topic string, evt bus.Event) bool

func (f notifierFunc) TryPublish(topic string, evt bus.Event) bool { return f(topic, evt) }

func TestCancelAfterLastBatchIsNotCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	onProgress := notifierFunc(func(_ string, evt bus.Event) bool {
		if p, ok := evt.Data.(ProgressEvent); ok && p.TotalToValidate > 0 && p.ValidatedCount == p.TotalToValidate {
			cancel()
		}
		return true
	})
	o := NewOrchestrator(&fakeValidator{}, store.New(), DefaultConfig(), WithPublisher(onProgress))

	report := o.Run(ctx, Request{Streams: refs(1), ScanMode: stream.ScanQuick}, nil)

	require.Error(t, ctx.Err())
	assert.False(t, report.Cancelled)
	assert.Equal(t, 1, report.Validated)
	assert.Equal(t, stream.StatusWorking, report.Results[0].Status)
}

func TestProgressEventsPublished(t *testing.T) {
	b := bus.NewMemoryBus(64)
	sub := b.Subscribe(bus.TopicEvents)
	defer sub.Close()

	o := NewOrchestrator(&fakeValidator{}, store.New(), DefaultConfig(), WithPublisher(b), WithSleep(func(context.Context, time.Duration) error { return nil }))
	o.Run(context.Background(), Request{Category: "News", Streams: refs(2), ScanMode: stream.ScanQuick}, nil)

	var last ProgressEvent
	deadline := time.After(time.Second)
	for last.ValidatedCount < 2 {
		select {
		case evt := <-sub.C():
			if evt.Type == bus.EventProgress {
				last = evt.Data.(ProgressEvent)
			}
		case <-deadline:
			t.Fatalf("progress did not reach 2, last %+v", last)
		}
	}
	assert.Equal(t, 2, last.TotalToValidate)
	assert.Equal(t, 100, last.Percent)
	assert.Equal(t, "News", last.CurrentCategory)
}

func TestValidateOne(t *testing.T) {
	fv := &fakeValidator{validate: func(_ context.Context, u string) stream.Result {
		return stream.Broken(u, stream.CauseTransport)
	}}
	st := store.New()
	o := NewOrchestrator(fv, st, DefaultConfig())

	got := o.ValidateOne(context.Background(), stream.Ref{URL: "http://x/a.ts"}, stream.ScanPreload, stream.ValidationLenient)
	assert.Equal(t, stream.StatusBroken, got.Status)
	assert.Equal(t, stream.StatusBroken, st.Status("http://x/a.ts"))

	got = o.ValidateOne(context.Background(), stream.Ref{URL: "http://x/a.ts"}, stream.ScanPreload, stream.ValidationStrict)
	assert.Equal(t, stream.StatusBroken, got.Status)
	assert.Equal(t, stream.StatusBroken, st.Status("http://x/a.ts"))
}
