// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sniff recognizes streaming media containers and manifests from
// the first bytes of a response body.
package sniff

import (
	"bytes"
	"errors"
	"io"
)

// PrefixSize is how many bytes Detect needs at most.
const PrefixSize = 8 << 10

// Format is a recognized media container or manifest.
type Format string

const (
	FormatUnknown  Format = ""
	FormatHLS      Format = "hls"
	FormatDASH     Format = "dash"
	FormatMPEGTS   Format = "mpegts"
	FormatMP4      Format = "mp4"
	FormatMatroska Format = "matroska"
	FormatFLV      Format = "flv"
	FormatMP3      Format = "mp3"
	FormatAAC      Format = "aac"
	FormatOgg      Format = "ogg"
)

var contentTypes = map[Format]string{
	FormatHLS:      "application/vnd.apple.mpegurl",
	FormatDASH:     "application/dash+xml",
	FormatMPEGTS:   "video/mp2t",
	FormatMP4:      "video/mp4",
	FormatMatroska: "video/x-matroska",
	FormatFLV:      "video/x-flv",
	FormatMP3:      "audio/mpeg",
	FormatAAC:      "audio/aac",
	FormatOgg:      "application/ogg",
}

// ContentType returns the canonical MIME type for f, or "" when unknown.
func (f Format) ContentType() string { return contentTypes[f] }

// Known reports whether f is a recognized format.
func (f Format) Known() bool { return f != FormatUnknown }

const tsPacket = 188

var (
	bom        = []byte{0xEF, 0xBB, 0xBF}
	extm3u     = []byte("#EXTM3U")
	mpdTag     = []byte("<MPD")
	ebmlMagic  = []byte{0x1A, 0x45, 0xDF, 0xA3}
	flvMagic   = []byte("FLV")
	id3Magic   = []byte("ID3")
	oggMagic   = []byte("OggS")
	mp4Boxes   = [][]byte{[]byte("ftyp"), []byte("moov"), []byte("moof"), []byte("styp"), []byte("sidx")}
	xmlPreface = []byte("<?xml")
)

// Detect identifies the format of prefix. It never reads past PrefixSize bytes.
func Detect(prefix []byte) Format {
	if len(prefix) > PrefixSize {
		prefix = prefix[:PrefixSize]
	}
	text := bytes.TrimLeft(bytes.TrimPrefix(prefix, bom), " \t\r\n")

	switch {
	case bytes.HasPrefix(text, extm3u):
		return FormatHLS
	case isDASH(text):
		return FormatDASH
	case isMPEGTS(prefix):
		return FormatMPEGTS
	case isMP4(prefix):
		return FormatMP4
	case bytes.HasPrefix(prefix, ebmlMagic):
		return FormatMatroska
	case bytes.HasPrefix(prefix, flvMagic) && len(prefix) > 3 && prefix[3] == 0x01:
		return FormatFLV
	case bytes.HasPrefix(prefix, oggMagic):
		return FormatOgg
	case bytes.HasPrefix(prefix, id3Magic):
		return FormatMP3
	case isADTS(prefix):
		return FormatAAC
	case isMPEGAudio(prefix):
		return FormatMP3
	}
	return FormatUnknown
}

func isDASH(text []byte) bool {
	if bytes.HasPrefix(text, mpdTag) {
		return true
	}
	return bytes.HasPrefix(text, xmlPreface) && bytes.Contains(text, mpdTag)
}

// isMPEGTS requires the sync byte at the start of at least two consecutive packets.
func isMPEGTS(b []byte) bool {
	if len(b) == 0 || b[0] != 0x47 {
		return false
	}
	packets := 0
	for off := 0; off < len(b) && packets < 3; off += tsPacket {
		if b[off] != 0x47 {
			return false
		}
		packets++
	}
	return packets >= 2
}

func isMP4(b []byte) bool {
	if len(b) < 8 {
		return false
	}
	for _, box := range mp4Boxes {
		if bytes.Equal(b[4:8], box) {
			return true
		}
	}
	return false
}

func isADTS(b []byte) bool {
	return len(b) >= 2 && b[0] == 0xFF && b[1]&0xF6 == 0xF0
}

func isMPEGAudio(b []byte) bool {
	// frame sync with a valid layer
	return len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0 && b[1]&0x06 != 0
}

// ReadPrefix reads up to PrefixSize bytes from r. A short body is not an error.
func ReadPrefix(r io.Reader) ([]byte, error) {
	buf := make([]byte, PrefixSize)
	n, err := io.ReadFull(r, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		err = nil
	}
	return buf[:n], err
}
