// Package extract classifies raw document bytes and extracts plain text
// from PDF, word-processing, and plain-text inputs with per-format
// fallback strategies and a shared normalization pass.
package extract

import (
	"log/slog"
	"unicode/utf8"

	"github.com/atebit/legaldocs/internal/errs"
)

// DefaultMaxFileBytes is the upload size ceiling applied when the
// extractor is constructed with a non-positive limit.
const DefaultMaxFileBytes = 10 << 20

// Result is the outcome of one extraction.
type Result struct {
	Text           string
	Format         Format
	Encoding       string
	Metadata       map[string]any
	OriginalLength int
	CleanedLength  int
}

// Extractor turns raw document bytes into cleaned plain text.
type Extractor struct {
	maxFileBytes int
}

// NewExtractor returns an extractor bounded by maxFileBytes
// (DefaultMaxFileBytes when non-positive).
func NewExtractor(maxFileBytes int) *Extractor {
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}
	return &Extractor{maxFileBytes: maxFileBytes}
}

// Extract detects the format of data and runs the matching strategy.
// Size and emptiness are checked before any format detection.
func (e *Extractor) Extract(data []byte, filename string) (*Result, error) {
	if len(data) > e.maxFileBytes {
		return nil, errs.Newf(errs.InputTooLarge, "input of %d bytes exceeds the %d byte limit", len(data), e.maxFileBytes).
			WithDetail("size", len(data)).
			WithDetail("limit", e.maxFileBytes)
	}
	if len(data) == 0 {
		return nil, errs.New(errs.EmptyInput, "empty input")
	}

	format, err := Detect(data, filename)
	if err != nil {
		return nil, err
	}

	var (
		text     string
		meta     map[string]any
		encoding string
	)
	switch format {
	case FormatPDF:
		text, meta, err = extractPDF(data)
	case FormatDocx:
		text, meta, err = extractDocx(data)
	case FormatText:
		text, meta, encoding, err = extractPlainText(data)
	default:
		err = errs.Newf(errs.UnsupportedFormat, "could not determine a supported format for %q", filename)
	}
	if err != nil {
		return nil, err
	}

	cleaned := Clean(text)
	slog.Debug("Text extracted.",
		"filename", filename,
		"format", string(format),
		"originalLength", utf8.RuneCountInString(text),
		"cleanedLength", utf8.RuneCountInString(cleaned),
	)

	return &Result{
		Text:           cleaned,
		Format:         format,
		Encoding:       encoding,
		Metadata:       meta,
		OriginalLength: utf8.RuneCountInString(text),
		CleanedLength:  utf8.RuneCountInString(cleaned),
	}, nil
}
