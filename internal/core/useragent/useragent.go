// SPDX-License-Identifier: MIT

// Package useragent holds the client identities used for outbound requests.
package useragent

import "strings"

const (
	// Browser is a desktop Chrome identity. Many stream hosts refuse
	// unknown agents, so probes present themselves as a browser.
	Browser = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// MediaPlayer mimics a desktop media player.
	MediaPlayer = "VLC/3.0.0 LibVLC/3.0.0"
)

// IsMediaPlayer detects common standalone player agents.
func IsMediaPlayer(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	return strings.Contains(ua, "vlc") ||
		strings.Contains(ua, "libmpv") ||
		strings.Contains(ua, "lavf") ||
		strings.Contains(ua, "kodi")
}

// IsBrowser detects browser agents.
func IsBrowser(userAgent string) bool {
	return strings.Contains(userAgent, "Mozilla/") &&
		(strings.Contains(userAgent, "AppleWebKit/") || strings.Contains(userAgent, "Gecko/"))
}
