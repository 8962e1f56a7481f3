// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package net guards outbound requests made on behalf of clients.
package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"

	"golang.org/x/net/idna"
)

var (
	// ErrInvalidURL indicates the target could not be parsed as an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid outbound url")
	// ErrOutboundNotAllowed indicates the target is refused by policy.
	ErrOutboundNotAllowed = errors.New("outbound url not allowed")
)

// OutboundPolicy defines which targets the relay may contact.
type OutboundPolicy struct {
	// AllowPrivate permits loopback, private and link-local targets.
	AllowPrivate bool
	// Schemes defaults to http and https.
	Schemes []string
}

func (p OutboundPolicy) schemes() []string {
	if len(p.Schemes) == 0 {
		return []string{"http", "https"}
	}
	return p.Schemes
}

// NormalizeHost validates and normalizes a host for comparison.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if strings.Contains(host, "%") {
		return "", fmt.Errorf("host must not include zone: %s", raw)
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

// ValidateOutboundURL parses raw, normalizes its host and checks every
// address it resolves to against the policy.
func ValidateOutboundURL(ctx context.Context, raw string, policy OutboundPolicy) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: must be absolute", ErrInvalidURL)
	}

	scheme := strings.ToLower(u.Scheme)
	if !schemeAllowed(policy.schemes(), scheme) {
		return nil, fmt.Errorf("%w: scheme %q", ErrOutboundNotAllowed, scheme)
	}

	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if !policy.AllowPrivate {
		ips, err := resolveHostIPs(ctx, host)
		if err != nil {
			return nil, err
		}
		for _, ip := range ips {
			if isBlockedIP(ip) {
				return nil, fmt.Errorf("%w: blocked ip %s", ErrOutboundNotAllowed, ip.String())
			}
		}
	}

	u.Scheme = scheme
	u.Host = joinHostPort(host, u.Port())
	return u, nil
}

// DialControl re-checks the address actually dialed, so a name that
// resolves differently at connect time cannot reach a blocked target.
// It returns nil when private targets are allowed.
func DialControl(policy OutboundPolicy) func(network, address string, c syscall.RawConn) error {
	if policy.AllowPrivate {
		return nil
	}
	return func(network, address string, _ syscall.RawConn) error {
		host, _, err := net.SplitHostPort(address)
		if err != nil {
			return err
		}
		if isBlockedIP(net.ParseIP(host)) {
			return fmt.Errorf("%w: blocked ip %s", ErrOutboundNotAllowed, host)
		}
		return nil
	}
}

func schemeAllowed(allowed []string, scheme string) bool {
	for _, s := range allowed {
		if strings.EqualFold(strings.TrimSpace(s), scheme) {
			return true
		}
	}
	return false
}

func resolveHostIPs(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve host %q: %w", host, err)
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		if addr.IP != nil {
			ips = append(ips, addr.IP)
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("resolve host %q: no addresses", host)
	}
	return ips, nil
}

func isBlockedIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast()
}

func joinHostPort(host, port string) string {
	if port == "" {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, port)
}
