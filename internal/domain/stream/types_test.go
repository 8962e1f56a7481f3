// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModes(t *testing.T) {
	m, err := ParseScanMode(" Preload ")
	require.NoError(t, err)
	assert.Equal(t, ScanPreload, m)

	_, err = ParseScanMode("deep")
	assert.Error(t, err)

	v, err := ParseValidationMode("DISABLED")
	require.NoError(t, err)
	assert.Equal(t, ValidationDisabled, v)

	_, err = ParseValidationMode("")
	assert.Error(t, err)
}

func TestBrokenCarriesNoPartialData(t *testing.T) {
	r := Broken("http://x/a.ts", CauseTransport)
	assert.Equal(t, StatusBroken, r.Status)
	assert.Empty(t, r.ContentType)
	assert.Zero(t, r.ResponseTimeMs)
	assert.False(t, r.Preloaded)
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		name string
		p    Progress
		want int
	}{
		{"empty scan", Progress{}, 0},
		{"half", Progress{TotalToValidate: 10, ValidatedCount: 5}, 50},
		{"rounds down", Progress{TotalToValidate: 3, ValidatedCount: 1}, 33},
		{"complete", Progress{TotalToValidate: 7, ValidatedCount: 7}, 100},
		{"clamped", Progress{TotalToValidate: 2, ValidatedCount: 3}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Percent())
		})
	}
}

func TestClassifyKind(t *testing.T) {
	assert.Equal(t, KindLive, ClassifyKind("http://h/LIVE/ch1.m3u8", ""))
	assert.Equal(t, KindLive, ClassifyKind("http://iptv.example/1", ""))
	assert.Equal(t, KindLive, ClassifyKind("http://h/movie.mp4", "News Live"))
	assert.Equal(t, KindVOD, ClassifyKind("http://h/movie.mp4", "Movie"))
}

func TestUnique(t *testing.T) {
	in := []Ref{
		{Name: "a", URL: "http://h/1"},
		{Name: "b", URL: "http://h/2"},
		{Name: "dup", URL: "http://h/1"},
		{Name: "empty", URL: " "},
		{Name: "c", URL: "http://h/3"},
	}
	want := []Ref{
		{Name: "a", URL: "http://h/1"},
		{Name: "b", URL: "http://h/2"},
		{Name: "c", URL: "http://h/3"},
	}
	if diff := cmp.Diff(want, Unique(in)); diff != "" {
		t.Errorf("Unique mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"http://h/1", "http://h/2", "http://h/3"}, URLs(want))
}
