package extract

import (
	"bytes"
	"testing"

	"github.com/atebit/legaldocs/internal/errs"
)

func TestDetectPDFSignatureWinsOverFilename(t *testing.T) {
	data := []byte("%PDF-1.7\nsome pdf body")

	for _, name := range []string{"", "contract.pdf", "contract.txt", "contract.docx"} {
		t.Run("name="+name, func(t *testing.T) {
			format, err := Detect(data, name)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if format != FormatPDF {
				t.Errorf("Detect = %s, want %s", format, FormatPDF)
			}
		})
	}
}

func TestDetectZipWithoutWordMarkerIsUnsupported(t *testing.T) {
	data := append([]byte("PK\x03\x04"), bytes.Repeat([]byte{0x5a, 0x00, 0x13}, 64)...)

	_, err := Detect(data, "archive.txt")
	if !errs.IsKind(err, errs.UnsupportedFormat) {
		t.Fatalf("bare zip should be UnsupportedFormat, got %v", err)
	}
}

func TestDetectZipWithWordMarkerIsDocx(t *testing.T) {
	data := append([]byte("PK\x03\x04\x14\x00"), []byte("word/document.xml")...)

	format, err := Detect(data, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if format != FormatDocx {
		t.Errorf("Detect = %s, want %s", format, FormatDocx)
	}
}

func TestDetectImagesAreUnsupported(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"png", []byte("\x89PNG\r\n\x1a\n")},
		{"jpeg", []byte("\xff\xd8\xff\xe0junk")},
		{"gif", []byte("GIF89a...")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Detect(tt.data, "photo.txt")
			if !errs.IsKind(err, errs.UnsupportedFormat) {
				t.Errorf("image should be UnsupportedFormat, got %v", err)
			}
		})
	}
}

func TestDetectExtensionFallback(t *testing.T) {
	// Too short for a signature probe; the extension decides.
	tests := []struct {
		filename string
		want     Format
	}{
		{"a.pdf", FormatPDF},
		{"a.docx", FormatDocx},
		{"a.txt", FormatText},
		{"a.md", FormatText},
		{"a.csv", FormatText},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			format, err := Detect([]byte("ab"), tt.filename)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if format != tt.want {
				t.Errorf("Detect = %s, want %s", format, tt.want)
			}
		})
	}
}

func TestDetectPrintableHeuristic(t *testing.T) {
	format, err := Detect([]byte("This lease agreement is entered into by the parties below.\n"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if format != FormatText {
		t.Errorf("printable buffer should be plain text, got %s", format)
	}
}

func TestDetectBinaryJunkIsUndetermined(t *testing.T) {
	junk := bytes.Repeat([]byte{0x00, 0x01, 0xfe, 0x07}, 200)

	format, err := Detect(junk, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if format != FormatUndetermined {
		t.Errorf("Detect = %s, want %s", format, FormatUndetermined)
	}
}

func TestDetectNeverPanicsOnArbitraryBytes(t *testing.T) {
	inputs := [][]byte{
		nil,
		{},
		{0x00},
		{0xff, 0xfe, 0xfd},
		[]byte("PK\x03\x04"),
		bytes.Repeat([]byte{0x80}, 5000),
	}
	for _, data := range inputs {
		_, _ = Detect(data, "anything.bin")
	}
}
