// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package relay

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"

	platformnet "github.com/ManuGH/streamcheck/internal/platform/net"
)

// identityHello is the client hello the identity transport presents.
var identityHello = utls.HelloChrome_120

// IdentityTransportConfig configures NewIdentityTransport.
type IdentityTransportConfig struct {
	DialTimeout   time.Duration
	HeaderTimeout time.Duration
	Policy        platformnet.OutboundPolicy
	// RootCAs overrides the system roots.
	RootCAs *x509.CertPool
}

// NewIdentityTransport returns an HTTP/1.1 transport whose TLS handshake
// carries a browser client-hello fingerprint instead of Go's own.
func NewIdentityTransport(cfg IdentityTransportConfig) *http.Transport {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
		Control:   platformnet.DialControl(cfg.Policy),
	}
	return &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialIdentityTLS(ctx, dialer, network, addr, cfg.RootCAs)
		},
		ForceAttemptHTTP2:     false,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: cfg.HeaderTimeout,
	}
}

// dialIdentityTLS dials addr and performs the fingerprinted handshake.
// ALPN is restricted to http/1.1 because the transport cannot speak h2 over
// a uTLS connection.
func dialIdentityTLS(ctx context.Context, dialer *net.Dialer, network, addr string, roots *x509.CertPool) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	spec, err := utls.UTLSIdToSpec(identityHello)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("client hello spec: %w", err)
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}

	tlsConn := utls.UClient(conn, &utls.Config{
		ServerName: host,
		RootCAs:    roots,
		MinVersion: tls.VersionTLS12,
	}, utls.HelloCustom)
	if err := tlsConn.ApplyPreset(&spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply client hello: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}
	return tlsConn, nil
}
