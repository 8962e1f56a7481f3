// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sniff

import "strings"

var streamingTypes = []string{
	"video/",
	"audio/",
	"application/vnd.apple.mpegurl",
	"application/x-mpegurl",
	"application/dash+xml",
	"application/octet-stream",
	"application/ogg",
	"application/mp4",
}

// IsStreamingType reports whether a declared Content-Type names a media or
// playlist payload.
func IsStreamingType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	for _, prefix := range streamingTypes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}
