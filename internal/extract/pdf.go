package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/atebit/legaldocs/internal/errs"
)

var (
	pdfStructure = regexp.MustCompile(`(?s)%PDF.*?%%EOF`)
	pdfObjects   = regexp.MustCompile(`(?s)\bobj\b.*?\bendobj\b`)
	pdfStreams   = regexp.MustCompile(`(?s)\bstream\b.*?\bendstream\b`)
	letterRuns   = regexp.MustCompile(`[A-Za-z][A-Za-z\s]{2,}`)
	anyWS        = regexp.MustCompile(`\s+`)
)

// Minimum text the raw-pattern fallback must recover to be considered
// usable.
const pdfFallbackMinChars = 10

// extractPDF walks pages with the pdf reader first and falls back to a
// raw byte-pattern heuristic when the page walk fails or yields nothing.
// When both strategies come up empty the error names both attempts.
func extractPDF(data []byte) (string, map[string]any, error) {
	text, meta, primaryErr := pdfPageWalk(data)
	if primaryErr == nil {
		return text, meta, nil
	}

	text, meta, fallbackErr := pdfRawPattern(data)
	if fallbackErr == nil {
		return text, meta, nil
	}

	return "", nil, errs.Newf(errs.ExtractionFailed,
		"no text extracted from PDF (page walk: %v; raw pattern: %v)", primaryErr, fallbackErr)
}

// pdfPageWalk concatenates per-page text. The underlying library can
// panic on malformed files, so every page visit is recover-guarded.
func pdfPageWalk(data []byte) (text string, meta map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.Newf(errs.ExtractionFailed, "pdf reader panic: %v", r)
		}
	}()

	reader, rerr := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if rerr != nil {
		return "", nil, errs.Wrap(errs.ExtractionFailed, "open pdf", rerr)
	}

	pages := 0
	func() {
		defer func() { _ = recover() }()
		pages = reader.NumPage()
	}()
	if pages <= 0 {
		return "", nil, errs.New(errs.ExtractionFailed, "pdf contains no pages")
	}

	var parts []string
	for i := 1; i <= pages; i++ {
		func() {
			defer func() { _ = recover() }()
			page := reader.Page(i)
			if page.V.IsNull() {
				return
			}
			var b strings.Builder
			for _, item := range page.Content().Text {
				b.WriteString(item.S)
				b.WriteString(" ")
			}
			if s := strings.TrimSpace(b.String()); s != "" {
				parts = append(parts, s)
			}
		}()
	}
	if len(parts) == 0 {
		return "", nil, errs.New(errs.ExtractionFailed, "page walk yielded no text")
	}

	meta = map[string]any{
		"page_count":        pageCount(data, pages),
		"pages_with_text":   len(parts),
		"extraction_method": "page_walk",
	}
	return strings.Join(parts, "\n\n"), meta, nil
}

// pageCount cross-checks the page count with pdfcpu under relaxed
// validation; the reader's own count is kept when pdfcpu disagrees with
// itself or fails.
func pageCount(data []byte, readerCount int) int {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if n, err := api.PageCount(bytes.NewReader(data), cfg); err == nil && n > 0 {
		return n
	}
	return readerCount
}

// pdfRawPattern strips obvious structural tokens from the raw bytes and
// keeps letter runs. A crude last resort for files the reader rejects.
func pdfRawPattern(data []byte) (string, map[string]any, error) {
	content := string(data)
	content = pdfStructure.ReplaceAllString(content, "")
	content = pdfStreams.ReplaceAllString(content, "")
	content = pdfObjects.ReplaceAllString(content, "")

	words := letterRuns.FindAllString(content, -1)
	if len(words) == 0 {
		return "", nil, errs.New(errs.ExtractionFailed, "no readable letter runs found")
	}

	text := strings.TrimSpace(anyWS.ReplaceAllString(strings.Join(words, " "), " "))
	if len(text) < pdfFallbackMinChars {
		return "", nil, errs.New(errs.ExtractionFailed, "insufficient text recovered")
	}

	meta := map[string]any{
		"extraction_method": "raw_pattern",
	}
	return text, meta, nil
}
