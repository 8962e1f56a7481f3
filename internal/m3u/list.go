// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package m3u

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/samber/lo"

	"github.com/ManuGH/streamcheck/internal/domain/stream"
)

// maxListSize bounds stream list inputs.
const maxListSize = 32 << 20

// ReadRefs decodes a stream list. Input starting with '[' is a JSON array of
// {name,url}; anything else is parsed as M3U. Repeated URLs collapse to the
// first occurrence and entries without a URL are dropped.
func ReadRefs(r io.Reader) ([]stream.Ref, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxListSize+1))
	if err != nil {
		return nil, fmt.Errorf("read stream list: %w", err)
	}
	if len(data) > maxListSize {
		return nil, fmt.Errorf("stream list exceeds %d bytes", maxListSize)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var refs []stream.Ref
		if err := json.Unmarshal(trimmed, &refs); err != nil {
			return nil, fmt.Errorf("decode JSON stream list: %w", err)
		}
		return stream.Unique(refs), nil
	}

	refs := lo.Map(Parse(string(data)), func(e Entry, _ int) stream.Ref { return e.Ref() })
	return stream.Unique(refs), nil
}

// LoadRefs reads a stream list from a file.
func LoadRefs(path string) ([]stream.Ref, error) {
	// #nosec G304 -- list paths are provided by the operator on the command line
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open stream list: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadRefs(f)
}
