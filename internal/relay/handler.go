// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/streamcheck/internal/log"
	"github.com/ManuGH/streamcheck/internal/metrics"
	"github.com/ManuGH/streamcheck/internal/platform/httpx"
	platformnet "github.com/ManuGH/streamcheck/internal/platform/net"
)

// ErrUpstreamStatus reports a non-success status from the upstream server.
var ErrUpstreamStatus = errors.New("upstream returned non-success status")

const (
	defaultContentType = "video/mp4"
	copyBufferSize     = 32 << 10
)

// Config configures the relay handler.
type Config struct {
	HeaderTimeout time.Duration
	Policy        platformnet.OutboundPolicy
}

// Handler relays upstream media to the caller.
type Handler struct {
	policy   platformnet.OutboundPolicy
	standard *http.Client
	identity *http.Client
	logger   zerolog.Logger
}

// Option customises a Handler.
type Option func(*Handler)

// WithClients replaces the upstream clients. A nil argument keeps the default.
func WithClients(standard, identity *http.Client) Option {
	return func(h *Handler) {
		if standard != nil {
			h.standard = standard
		}
		if identity != nil {
			h.identity = identity
		}
	}
}

// NewHandler builds a relay handler.
func NewHandler(cfg Config, opts ...Option) *Handler {
	if cfg.HeaderTimeout <= 0 {
		cfg.HeaderTimeout = 15 * time.Second
	}
	std := httpx.NewTransport(cfg.HeaderTimeout)
	std.ForceAttemptHTTP2 = false
	h := &Handler{
		policy:   cfg.Policy,
		standard: httpx.NewStreamingClient(cfg.HeaderTimeout, std),
		identity: httpx.NewStreamingClient(cfg.HeaderTimeout, NewIdentityTransport(IdentityTransportConfig{
			HeaderTimeout: cfg.HeaderTimeout,
			Policy:        cfg.Policy,
		})),
		logger: log.WithComponent("relay"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CloseIdleConnections drops pooled upstream connections.
func (h *Handler) CloseIdleConnections() {
	h.standard.CloseIdleConnections()
	h.identity.CloseIdleConnections()
}

func (h *Handler) client(p Profile) *http.Client {
	if p == ProfileClientIdentity {
		return h.identity
	}
	return h.standard
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.WithContext(ctx, h.logger)

	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	q := r.URL.Query()
	target := q.Get("url")
	profile := ProfileFromQuery(q)
	if target == "" {
		metrics.RecordRelayRequest(string(profile), "bad_request")
		writeError(w, http.StatusBadRequest, "URL parameter is required")
		return
	}

	u, err := platformnet.ValidateOutboundURL(ctx, target, h.policy)
	if err != nil {
		if errors.Is(err, platformnet.ErrOutboundNotAllowed) {
			metrics.RecordRelayRequest(string(profile), "forbidden")
			writeError(w, http.StatusForbidden, "target not allowed")
			return
		}
		metrics.RecordRelayRequest(string(profile), "bad_request")
		writeError(w, http.StatusBadRequest, "invalid url")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		metrics.RecordRelayRequest(string(profile), "bad_request")
		writeError(w, http.StatusBadRequest, "invalid url")
		return
	}
	req.Header = UpstreamHeaders(profile, r.Header.Get("Range"))

	resp, err := h.client(profile).Do(req)
	if err != nil {
		if ctx.Err() != nil {
			metrics.RecordRelayRequest(string(profile), "cancelled")
			return
		}
		logger.Warn().Err(err).
			Str(log.FieldURL, log.RedactURL(target)).
			Str("profile", string(profile)).
			Msg("relay upstream request failed")
		metrics.RecordRelayRequest(string(profile), "upstream_error")
		writeError(w, http.StatusBadGateway, "upstream request failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		err := fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
		logger.Debug().Err(err).Str(log.FieldURL, log.RedactURL(target)).Msg("relay upstream rejected")
		metrics.RecordRelayRequest(string(profile), "upstream_status")
		writeError(w, resp.StatusCode, fmt.Sprintf("Failed to fetch video: %d", resp.StatusCode))
		return
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = defaultContentType
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Accept-Ranges", "bytes")
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		w.Header().Set("Content-Range", cr)
	}
	w.WriteHeader(resp.StatusCode)

	n, err := copyFlush(w, resp.Body)
	metrics.AddRelayBytes(n)
	if err != nil && ctx.Err() == nil {
		logger.Debug().Err(err).Int64(log.FieldBytes, n).Msg("relay stream ended with error")
		metrics.RecordRelayRequest(string(profile), "stream_error")
		return
	}
	metrics.RecordRelayRequest(string(profile), "ok")
}

// copyFlush copies src to w and flushes after every chunk so players see
// data as soon as it arrives.
func copyFlush(w http.ResponseWriter, src io.Reader) (int64, error) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, copyBufferSize)
	var total int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			written, werr := w.Write(buf[:n])
			total += int64(written)
			if werr != nil {
				return total, werr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Range")
	w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Accept-Ranges")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
