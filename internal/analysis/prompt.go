package analysis

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/atebit/legaldocs/internal/errs"
)

// Per-kind instruction blocks. Kept as package constants so prompt
// changes are reviewable in one place.
const (
	summaryInstructions = `You are a helpful assistant tasked with summarizing legal documents in extremely simple language suitable for a 12-year-old reader. Focus on clarity and brevity. Always maintain factual accuracy while simplifying complex terms.`

	keyPointsInstructions = `Extract 5-10 key points from the legal document. For each point use simple language, provide a brief explanation, say which party the clause benefits, and include the relevant text span as a citation. Focus on material terms and obligations.`

	risksInstructions = `Analyze the legal document for potential legal risks and compliance issues. For each issue found indicate severity (HIGH, MEDIUM, LOW), explain the concern in simple terms, name the risk category, and reference the specific clause and its location where applicable.`

	translationInstructions = `Translate the legal document content into the requested target language. Preserve the meaning, tone, and legal precision of the original. Return both the original and the translated content.`
)

// Character budgets for the data window per kind. Translation gets the
// smallest window to bound external-service cost.
const (
	summaryWindow     = 16000
	keyPointsWindow   = 12000
	risksWindow       = 12000
	translationWindow = 2000
)

// maxOutputTokensFor returns the per-kind response budget.
func maxOutputTokensFor(kind Kind) int32 {
	switch kind {
	case KindSummary:
		return 512
	case KindKeyPoints:
		return 768
	case KindRisks:
		return 1024
	case KindTranslation:
		return 2048
	}
	return 512
}

// BuildPrompt assembles the bounded instruction block for one analysis
// kind: fixed task instructions, a truncated window of the extracted
// text, and the structured-output requirement. For translation the
// target-language code is validated against the supported set before any
// external call can happen; for other kinds a target language is
// optional and only steers the response language.
func BuildPrompt(kind Kind, text, targetLanguage string) (string, error) {
	var instructions string
	var window int
	switch kind {
	case KindSummary:
		instructions, window = summaryInstructions, summaryWindow
	case KindKeyPoints:
		instructions, window = keyPointsInstructions, keyPointsWindow
	case KindRisks:
		instructions, window = risksInstructions, risksWindow
	case KindTranslation:
		if targetLanguage == "" {
			return "", errs.New(errs.InvalidRequest, "target_language is required for translation")
		}
		instructions, window = translationInstructions, translationWindow
	default:
		return "", errs.Newf(errs.InvalidRequest, "unsupported analysis type %q", kind)
	}

	if targetLanguage != "" {
		if err := ValidateLanguage(targetLanguage); err != nil {
			return "", err
		}
	}

	var b strings.Builder
	b.WriteString(instructions)

	if targetLanguage != "" {
		name := SupportedLanguages[targetLanguage]
		if kind == KindTranslation {
			fmt.Fprintf(&b, "\n\nTarget language: %s (%s).", name, targetLanguage)
		} else {
			fmt.Fprintf(&b, "\n\nProvide the response in %s.", name)
		}
	}

	b.WriteString("\n\nDocument text:\n")
	b.WriteString(truncate(text, window))

	b.WriteString("\n\nRespond with a single valid JSON object with exactly these fields: ")
	b.WriteString(schemaHint(kind))
	b.WriteString(" Do not include any text outside the JSON object.")

	return b.String(), nil
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
