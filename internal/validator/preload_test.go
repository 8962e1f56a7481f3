// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validator

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	platformnet "github.com/ManuGH/streamcheck/internal/platform/net"
	"github.com/ManuGH/streamcheck/internal/relay"
)

func tsPackets(n int) []byte {
	pkt := make([]byte, 188)
	pkt[0] = 0x47
	return bytes.Repeat(pkt, n)
}

func TestRelayPreloader(t *testing.T) {
	upstream := http.NewServeMux()
	upstream.HandleFunc("/live.ts", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "video/mp2t")
		_, _ = w.Write(tsPackets(8))
	})
	upstream.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html>hi</html>")
	})
	upstream.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	})
	upstream.HandleFunc("/stall", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp2t")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})
	up := httptest.NewServer(upstream)
	defer up.Close()

	rh := relay.NewHandler(relay.Config{HeaderTimeout: time.Second, Policy: platformnet.OutboundPolicy{AllowPrivate: true}})
	defer rh.CloseIdleConnections()
	rs := httptest.NewServer(rh)
	defer rs.Close()

	p := NewRelayPreloader(rs.URL, 300*time.Millisecond, rs.Client())

	assert.NoError(t, p.Preload(t.Context(), up.URL+"/live.ts"))
	assert.ErrorIs(t, p.Preload(t.Context(), up.URL+"/page"), ErrNoMetadata)
	assert.Error(t, p.Preload(t.Context(), up.URL+"/missing"))
	assert.Error(t, p.Preload(t.Context(), up.URL+"/stall"))
}

func TestRelayPreloaderDirect(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		_, _ = io.WriteString(w, "#EXTM3U\n#EXT-X-VERSION:3\n")
	}))
	defer up.Close()

	p := NewRelayPreloader("", time.Second, up.Client())
	assert.NoError(t, p.Preload(t.Context(), up.URL+"/a.m3u8"))
}
