package analysis

import (
	"strings"
	"testing"

	"github.com/atebit/legaldocs/internal/errs"
)

func TestBuildPromptTranslationRequiresTargetLanguage(t *testing.T) {
	_, err := BuildPrompt(KindTranslation, "some contract text", "")
	if !errs.IsKind(err, errs.InvalidRequest) {
		t.Fatalf("expected INVALID_REQUEST, got %v", err)
	}
}

func TestBuildPromptRejectsUnsupportedLanguage(t *testing.T) {
	for _, kind := range []Kind{KindTranslation, KindSummary} {
		_, err := BuildPrompt(kind, "text", "xx")
		if !errs.IsKind(err, errs.InvalidRequest) {
			t.Errorf("%s: expected INVALID_REQUEST for language xx, got %v", kind, err)
		}
	}
}

func TestBuildPromptRejectsUnknownKind(t *testing.T) {
	_, err := BuildPrompt(Kind("sentiment"), "text", "")
	if !errs.IsKind(err, errs.InvalidRequest) {
		t.Fatalf("expected INVALID_REQUEST, got %v", err)
	}
}

func TestBuildPromptTruncatesTranslationInput(t *testing.T) {
	long := strings.Repeat("clause ", 1000)
	prompt, err := BuildPrompt(KindTranslation, long, "es")
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}

	start := strings.Index(prompt, "Document text:\n")
	if start < 0 {
		t.Fatal("prompt is missing the document text block")
	}
	body := prompt[start+len("Document text:\n"):]
	end := strings.Index(body, "\n\nRespond with")
	if end < 0 {
		t.Fatal("prompt is missing the response requirement")
	}
	if got := len(body[:end]); got > translationWindow {
		t.Errorf("translation window not enforced: %d bytes included", got)
	}
}

func TestBuildPromptIncludesSchemaFields(t *testing.T) {
	cases := map[Kind]string{
		KindSummary:     `"summary"`,
		KindKeyPoints:   `"party_benefit"`,
		KindRisks:       `"risk_summary"`,
		KindTranslation: `"translated_content"`,
	}
	for kind, want := range cases {
		prompt, err := BuildPrompt(kind, "short text", "en")
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if !strings.Contains(prompt, want) {
			t.Errorf("%s prompt does not mention %s", kind, want)
		}
		if !strings.Contains(prompt, "single valid JSON object") {
			t.Errorf("%s prompt does not demand JSON output", kind)
		}
	}
}

func TestTruncateNeverSplitsRunes(t *testing.T) {
	s := strings.Repeat("ü", 100)
	for limit := 0; limit <= len(s); limit++ {
		out := truncate(s, limit)
		if len(out) > limit {
			t.Fatalf("limit %d: got %d bytes", limit, len(out))
		}
		if strings.ContainsRune(out, '�') {
			t.Fatalf("limit %d: replacement rune in output", limit)
		}
	}
}

func TestParseKindAcceptsOnlyKnownValues(t *testing.T) {
	for _, s := range []string{"summary", "key_points", "risks", "translation", "all"} {
		if _, err := ParseKind(s); err != nil {
			t.Errorf("ParseKind(%q): %v", s, err)
		}
	}
	if _, err := ParseKind("Summary"); !errs.IsKind(err, errs.InvalidRequest) {
		t.Errorf("expected INVALID_REQUEST for mixed case, got %v", err)
	}
}
