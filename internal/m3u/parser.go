// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package m3u reads and writes stream lists as M3U playlists or JSON.
package m3u

import (
	"strings"

	"github.com/ManuGH/streamcheck/internal/domain/stream"
)

// Entry is one playlist item.
type Entry struct {
	Name  string `json:"name"`
	Group string `json:"group,omitempty"`
	Logo  string `json:"logo,omitempty"`
	URL   string `json:"url"`
}

// Ref converts the entry to a stream reference.
func (e Entry) Ref() stream.Ref {
	return stream.Ref{Name: e.Name, URL: e.URL}
}

// Parse parses M3U content. Each URL line closes the entry opened by the
// preceding #EXTINF; URL lines without one get an empty name.
func Parse(content string) []Entry {
	var entries []Entry
	var current Entry

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "#EXTINF:"):
			// #EXTINF:-1 tvg-logo="..." group-title="...",Display Name
			current = Entry{
				Logo:  attr(line, "tvg-logo"),
				Group: attr(line, "group-title"),
			}
			if idx := strings.LastIndex(line, ","); idx != -1 {
				current.Name = strings.TrimSpace(line[idx+1:])
			}
		case line != "" && !strings.HasPrefix(line, "#"):
			current.URL = line
			entries = append(entries, current)
			current = Entry{}
		}
	}
	return entries
}

func attr(line, key string) string {
	marker := key + `="`
	idx := strings.Index(line, marker)
	if idx == -1 {
		return ""
	}
	rest := line[idx+len(marker):]
	end := strings.Index(rest, `"`)
	if end == -1 {
		return ""
	}
	return rest[:end]
}
