// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package m3u

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Write renders entries as an extended M3U playlist.
func Write(w io.Writer, entries []Entry) error {
	buf := &bytes.Buffer{}
	buf.WriteString("#EXTM3U\n")
	for _, e := range entries {
		fmt.Fprintf(buf, `#EXTINF:-1 tvg-logo="%s" group-title="%s",%s`+"\n",
			quoteSafe(e.Logo), quoteSafe(e.Group), oneLine(e.Name))
		buf.WriteString(oneLine(e.URL) + "\n")
	}
	_, err := io.Copy(w, buf)
	return err
}

func quoteSafe(s string) string {
	return strings.ReplaceAll(oneLine(s), `"`, "'")
}

func oneLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
