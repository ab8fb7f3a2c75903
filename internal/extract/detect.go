package extract

import (
	"bytes"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/atebit/legaldocs/internal/errs"
)

// Format is a detected document format label.
type Format string

const (
	FormatPDF          Format = "pdf"
	FormatDocx         Format = "docx"
	FormatText         Format = "plain-text"
	FormatUndetermined Format = "undetermined"
)

// MIMEType returns the canonical MIME type for the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatDocx:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatText:
		return "text/plain"
	}
	return "application/octet-stream"
}

var (
	sigPDF  = []byte("%PDF")
	sigZIP  = []byte("PK\x03\x04")
	sigPNG  = []byte("\x89PNG")
	sigJPEG = []byte("\xff\xd8\xff")
	sigGIF  = []byte("GIF8")

	// Markers that distinguish a word-processing archive from any other
	// ZIP container. Entry names inside a ZIP local header are stored
	// uncompressed, so "word/" is visible even in deflated archives.
	docxMarkers = [][]byte{
		[]byte("word/"),
		[]byte("wordprocessingml"),
	}
)

// Window sizes for content probing.
const (
	docxProbeWindow = 64 << 10
	textProbeWindow = 1 << 10

	// Minimum share of printable or whitespace characters for the
	// plain-text heuristic.
	printableThreshold = 0.80
)

// Detect classifies raw bytes into a document format. The content
// signature wins over the filename; the filename extension is consulted
// only when the signature probe is inconclusive, and a printable-character
// heuristic is the final fallback. Detect never panics on arbitrary input.
//
// A ZIP container without word-processing markers and known image formats
// are explicitly unsupported rather than silently treated as text.
func Detect(data []byte, filename string) (Format, error) {
	if f, err, decided := detectBySignature(data); decided {
		return f, err
	}
	if f, ok := detectByExtension(filename); ok {
		return f, nil
	}
	if looksLikeText(data) {
		return FormatText, nil
	}
	return FormatUndetermined, nil
}

func detectBySignature(data []byte) (Format, error, bool) {
	if len(data) < 4 {
		return FormatUndetermined, nil, false
	}
	if bytes.HasPrefix(data, sigPDF) {
		return FormatPDF, nil, true
	}
	if bytes.HasPrefix(data, sigZIP) {
		window := data
		if len(window) > docxProbeWindow {
			window = window[:docxProbeWindow]
		}
		for _, marker := range docxMarkers {
			if bytes.Contains(window, marker) {
				return FormatDocx, nil, true
			}
		}
		return FormatUndetermined,
			errs.New(errs.UnsupportedFormat, "zip archive is not a word-processing document"), true
	}
	if bytes.HasPrefix(data, sigPNG) || bytes.HasPrefix(data, sigJPEG) || bytes.HasPrefix(data, sigGIF) {
		return FormatUndetermined,
			errs.New(errs.UnsupportedFormat, "image formats are not supported"), true
	}
	return FormatUndetermined, nil, false
}

func detectByExtension(filename string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF, true
	case ".docx":
		return FormatDocx, true
	case ".txt", ".md", ".csv":
		return FormatText, true
	}
	return FormatUndetermined, false
}

// looksLikeText samples the leading bytes and classifies the buffer as
// plain text when at least 80% of the decoded characters are printable or
// whitespace. Invalid UTF-8 bytes count against the ratio.
func looksLikeText(data []byte) bool {
	sample := data
	if len(sample) > textProbeWindow {
		sample = sample[:textProbeWindow]
	}
	if len(sample) == 0 {
		return false
	}

	var total, printable int
	for len(sample) > 0 {
		r, size := utf8.DecodeRune(sample)
		total++
		if r != utf8.RuneError || size > 1 {
			if unicode.IsPrint(r) || unicode.IsSpace(r) {
				printable++
			}
		}
		sample = sample[size:]
	}
	return float64(printable)/float64(total) >= printableThreshold
}
