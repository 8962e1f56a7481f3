// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
)

// Kind separates live streams from on-demand media. It only changes the
// wording of the final playback failure message.
type Kind string

const (
	KindLive Kind = "live"
	KindVOD  Kind = "vod"
)

var folder = cases.Fold()

// ClassifyKind treats a stream as live when its URL mentions "live" or "tv",
// or its display name mentions "live".
func ClassifyKind(url, name string) Kind {
	u := folder.String(url)
	if strings.Contains(u, "live") || strings.Contains(u, "tv") {
		return KindLive
	}
	if strings.Contains(folder.String(name), "live") {
		return KindLive
	}
	return KindVOD
}

// Unique drops repeated URLs, keeping the first occurrence and order.
// Entries with an empty URL are discarded.
func Unique(refs []Ref) []Ref {
	nonEmpty := lo.Filter(refs, func(r Ref, _ int) bool {
		return strings.TrimSpace(r.URL) != ""
	})
	return lo.UniqBy(nonEmpty, func(r Ref) string { return r.URL })
}

// URLs returns the URL of every ref, in order.
func URLs(refs []Ref) []string {
	return lo.Map(refs, func(r Ref, _ int) string { return r.URL })
}
