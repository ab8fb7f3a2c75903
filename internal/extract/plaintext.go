package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/atebit/legaldocs/internal/errs"
)

// extractPlainText decodes a text buffer. Valid UTF-8 is taken as-is;
// otherwise the charset is auto-detected and decoding degrades through
// lossy UTF-8 down to ISO-8859-1, which cannot fail. An all-whitespace
// result is an extraction failure.
func extractPlainText(data []byte) (string, map[string]any, string, error) {
	text, encoding, confidence := decodeText(data)

	if strings.TrimSpace(text) == "" {
		return "", nil, "", errs.New(errs.ExtractionFailed, "text file is empty or contains only whitespace")
	}

	meta := map[string]any{
		"encoding_confidence": confidence,
		"line_count":          len(strings.Split(text, "\n")),
		"character_count":     utf8.RuneCountInString(text),
	}
	return text, meta, encoding, nil
}

func decodeText(data []byte) (text, encoding string, confidence int) {
	if utf8.Valid(data) {
		if isASCII(data) {
			return string(data), "ascii", 100
		}
		return string(data), "utf-8", 100
	}

	detected, confidence := detectCharset(data)
	if detected != "" {
		if enc, err := htmlindex.Get(detected); err == nil {
			if decoded, err := enc.NewDecoder().Bytes(data); err == nil {
				return string(decoded), strings.ToLower(detected), confidence
			}
		}
	}

	// Lossy UTF-8, then a single-byte decode that cannot fail.
	if lossy := strings.ToValidUTF8(string(data), "�"); utf8.ValidString(lossy) {
		return lossy, "utf-8", confidence
	}
	decoded, _ := charmap.ISO8859_1.NewDecoder().Bytes(data)
	return string(decoded), "iso-8859-1", confidence
}

func detectCharset(data []byte) (string, int) {
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil {
		return "", 0
	}
	return result.Charset, result.Confidence
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
