package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/atebit/legaldocs/internal/errs"
)

const (
	docxDocumentEntry = "word/document.xml"
	docxCoreEntry     = "docProps/core.xml"
)

// docxCoreProperties mirrors the Dublin Core subset of docProps/core.xml.
type docxCoreProperties struct {
	Title    string `xml:"title"`
	Creator  string `xml:"creator"`
	Subject  string `xml:"subject"`
	Created  string `xml:"created"`
	Modified string `xml:"modified"`
}

// extractDocx concatenates the non-empty paragraph text of the main
// document part with newline separators. Document properties are captured
// opportunistically; a properties failure is reported as empty metadata,
// never as an error.
func extractDocx(data []byte) (string, map[string]any, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, errs.Wrap(errs.ExtractionFailed, "open docx archive", err)
	}

	docXML, err := readZipEntry(archive, docxDocumentEntry)
	if err != nil {
		return "", nil, errs.Wrap(errs.ExtractionFailed, "read "+docxDocumentEntry, err)
	}

	paragraphs, total, err := docxParagraphs(docXML)
	if err != nil {
		return "", nil, errs.Wrap(errs.ExtractionFailed, "parse document body", err)
	}
	if len(paragraphs) == 0 {
		return "", nil, errs.New(errs.ExtractionFailed, "no text found in document")
	}

	meta := map[string]any{
		"paragraph_count":      total,
		"paragraphs_with_text": len(paragraphs),
		"core_properties":      docxProperties(archive),
	}
	return strings.Join(paragraphs, "\n"), meta, nil
}

func readZipEntry(archive *zip.Reader, name string) ([]byte, error) {
	for _, f := range archive.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, errs.Newf(errs.ExtractionFailed, "archive entry %s not found", name)
}

// docxParagraphs walks the WordprocessingML token stream collecting the
// character data of w:t runs, flushing one paragraph per w:p element.
func docxParagraphs(docXML []byte) (paragraphs []string, total int, err error) {
	dec := xml.NewDecoder(bytes.NewReader(docXML))

	var (
		current strings.Builder
		inPara  bool
		inText  bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inPara = true
				current.Reset()
			case "t":
				inText = inPara
			case "tab":
				if inPara {
					current.WriteString("\t")
				}
			case "br":
				if inPara {
					current.WriteString("\n")
				}
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inPara {
					total++
					if s := current.String(); strings.TrimSpace(s) != "" {
						paragraphs = append(paragraphs, s)
					}
				}
				inPara = false
			}
		}
	}
	return paragraphs, total, nil
}

// docxProperties returns title/author metadata from docProps/core.xml.
// Any failure yields an empty map.
func docxProperties(archive *zip.Reader) map[string]string {
	raw, err := readZipEntry(archive, docxCoreEntry)
	if err != nil {
		return map[string]string{}
	}
	var props docxCoreProperties
	if err := xml.Unmarshal(raw, &props); err != nil {
		return map[string]string{}
	}

	out := map[string]string{}
	if props.Title != "" {
		out["title"] = props.Title
	}
	if props.Creator != "" {
		out["author"] = props.Creator
	}
	if props.Subject != "" {
		out["subject"] = props.Subject
	}
	if props.Created != "" {
		out["created"] = props.Created
	}
	if props.Modified != "" {
		out["modified"] = props.Modified
	}
	return out
}
