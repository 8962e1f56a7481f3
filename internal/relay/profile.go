// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package relay forwards upstream stream bytes to clients that cannot reach
// the stream directly, optionally with an alternate header set or client
// identity.
package relay

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/ManuGH/streamcheck/internal/core/useragent"
)

// Path is where the relay is mounted.
const Path = "/proxy-video"

// Profile selects how the relay presents itself upstream.
type Profile string

const (
	// ProfileDefault forwards with the base media-player header set.
	ProfileDefault Profile = "default"
	// ProfileHeaders adds cache-busting headers for servers that reject the base set.
	ProfileHeaders Profile = "headers"
	// ProfileClientIdentity impersonates a media client down to its TLS fingerprint.
	ProfileClientIdentity Profile = "vlc"
)

// ProfileFromQuery reads the profile flags of a relay request.
func ProfileFromQuery(q url.Values) Profile {
	switch {
	case q.Get("vlc") == "true":
		return ProfileClientIdentity
	case q.Get("headers") == "true":
		return ProfileHeaders
	default:
		return ProfileDefault
	}
}

// URL builds the relay address for target under base.
func URL(base, target string, p Profile) string {
	q := url.Values{}
	q.Set("url", target)
	switch p {
	case ProfileHeaders:
		q.Set("headers", "true")
	case ProfileClientIdentity:
		q.Set("vlc", "true")
	}
	return strings.TrimRight(base, "/") + Path + "?" + q.Encode()
}

// UpstreamHeaders returns the request headers sent upstream for p.
// Range is forwarded from the client when present.
func UpstreamHeaders(p Profile, clientRange string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", useragent.MediaPlayer)
	h.Set("Accept", "*/*")
	if clientRange != "" {
		h.Set("Range", clientRange)
	} else {
		h.Set("Range", "bytes=0-")
	}
	if p == ProfileHeaders {
		h.Set("Cache-Control", "no-cache")
		h.Set("Pragma", "no-cache")
	}
	return h
}
