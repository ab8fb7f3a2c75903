// Package analysis builds prompts, invokes the generative text service
// with bounded retries, validates structured model output, and persists
// versioned analysis records.
package analysis

import "github.com/atebit/legaldocs/internal/errs"

// Kind is the closed set of analysis kinds.
type Kind string

const (
	KindSummary     Kind = "summary"
	KindKeyPoints   Kind = "key_points"
	KindRisks       Kind = "risks"
	KindTranslation Kind = "translation"

	// KindAll is the composite request covering every single kind.
	KindAll Kind = "all"
)

// ParseKind maps a request tag to a Kind, erroring on anything outside
// the closed set instead of falling through silently.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindSummary, KindKeyPoints, KindRisks, KindTranslation, KindAll:
		return Kind(s), nil
	}
	return "", errs.Newf(errs.InvalidRequest, "unsupported analysis type %q", s)
}

// SupportedLanguages are the translation target languages accepted by the
// prompt builder, keyed by ISO 639-1 code.
var SupportedLanguages = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"zh": "Chinese",
	"ja": "Japanese",
}

// ValidateLanguage rejects target-language codes outside the supported
// set before any external call is made.
func ValidateLanguage(code string) error {
	if _, ok := SupportedLanguages[code]; !ok {
		return errs.Newf(errs.InvalidRequest, "unsupported target language %q", code)
	}
	return nil
}
