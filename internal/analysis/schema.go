package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/atebit/legaldocs/internal/errs"
)

// Typed views of the structured responses. Fields beyond the schema
// minimum are tolerated and ignored.

// SummaryResult is the structured response for the summary kind.
type SummaryResult struct {
	DetectedLanguage string  `json:"detected_language"`
	Summary          string  `json:"summary"`
	Confidence       float64 `json:"confidence"`
}

// KeyPointsResult is the structured response for the key_points kind.
type KeyPointsResult struct {
	DetectedLanguage string  `json:"detected_language"`
	KeyPoints        []struct {
		Text         string  `json:"text"`
		Explanation  string  `json:"explanation"`
		PartyBenefit string  `json:"party_benefit"`
		Citation     string  `json:"citation"`
		Importance   float64 `json:"importance"`
	} `json:"key_points"`
	Confidence float64 `json:"confidence"`
}

// RisksResult is the structured response for the risks kind.
type RisksResult struct {
	DetectedLanguage string `json:"detected_language"`
	Risks            []struct {
		Severity     string `json:"severity"`
		Clause       string `json:"clause"`
		Rationale    string `json:"rationale"`
		Location     string `json:"location"`
		RiskCategory string `json:"risk_category"`
	} `json:"risks"`
	RiskSummary struct {
		HighRisks         int    `json:"high_risks"`
		MediumRisks       int    `json:"medium_risks"`
		LowRisks          int    `json:"low_risks"`
		OverallAssessment string `json:"overall_assessment"`
	} `json:"risk_summary"`
	Confidence float64 `json:"confidence"`
}

// TranslationResult is the structured response for the translation kind.
type TranslationResult struct {
	OriginalLanguage  string  `json:"original_language"`
	TargetLanguage    string  `json:"target_language"`
	OriginalContent   string  `json:"original_content"`
	TranslatedContent string  `json:"translated_content"`
	Confidence        float64 `json:"confidence"`
}

const summarySchema = `{
  "type": "object",
  "required": ["detected_language", "summary", "confidence"],
  "properties": {
    "detected_language": {"type": "string"},
    "summary": {"type": "string"},
    "confidence": {"type": "number"}
  }
}`

const keyPointsSchema = `{
  "type": "object",
  "required": ["detected_language", "key_points", "confidence"],
  "properties": {
    "detected_language": {"type": "string"},
    "key_points": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["text", "explanation", "party_benefit", "citation", "importance"],
        "properties": {
          "text": {"type": "string"},
          "explanation": {"type": "string"},
          "party_benefit": {"enum": ["first_party", "opposing_party", "mutual"]},
          "citation": {"type": "string"},
          "importance": {"type": "number"}
        }
      }
    },
    "confidence": {"type": "number"}
  }
}`

const risksSchema = `{
  "type": "object",
  "required": ["detected_language", "risks", "risk_summary", "confidence"],
  "properties": {
    "detected_language": {"type": "string"},
    "risks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["severity", "clause", "rationale", "location", "risk_category"],
        "properties": {
          "severity": {"enum": ["HIGH", "MEDIUM", "LOW"]},
          "clause": {"type": "string"},
          "rationale": {"type": "string"},
          "location": {"type": "string"},
          "risk_category": {"type": "string"}
        }
      }
    },
    "risk_summary": {
      "type": "object",
      "required": ["high_risks", "medium_risks", "low_risks", "overall_assessment"],
      "properties": {
        "high_risks": {"type": "integer"},
        "medium_risks": {"type": "integer"},
        "low_risks": {"type": "integer"},
        "overall_assessment": {"type": "string"}
      }
    },
    "confidence": {"type": "number"}
  }
}`

const translationSchema = `{
  "type": "object",
  "required": ["original_language", "target_language", "original_content", "translated_content", "confidence"],
  "properties": {
    "original_language": {"type": "string"},
    "target_language": {"type": "string"},
    "original_content": {"type": "string"},
    "translated_content": {"type": "string"},
    "confidence": {"type": "number"}
  }
}`

var schemas = mustCompileSchemas(map[Kind]string{
	KindSummary:     summarySchema,
	KindKeyPoints:   keyPointsSchema,
	KindRisks:       risksSchema,
	KindTranslation: translationSchema,
})

func mustCompileSchemas(sources map[Kind]string) map[Kind]*jsonschema.Schema {
	compiled := make(map[Kind]*jsonschema.Schema, len(sources))
	for kind, src := range sources {
		compiler := jsonschema.NewCompiler()
		name := string(kind) + ".json"
		if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
			panic(fmt.Sprintf("add schema %s: %v", kind, err))
		}
		schema, err := compiler.Compile(name)
		if err != nil {
			panic(fmt.Sprintf("compile schema %s: %v", kind, err))
		}
		compiled[kind] = schema
	}
	return compiled
}

// ValidateStructured parses raw model output and checks it against the
// schema for the kind. Any failure is a MalformedOutput: retrying an
// identical prompt is unlikely to fix non-deterministic model output, so
// the caller must never retry this error.
func ValidateStructured(kind Kind, raw string) (json.RawMessage, error) {
	schema, ok := schemas[kind]
	if !ok {
		return nil, errs.Newf(errs.InvalidRequest, "no schema for analysis type %q", kind)
	}

	cleaned := stripFences(raw)

	var value any
	if err := json.Unmarshal([]byte(cleaned), &value); err != nil {
		return nil, errs.Wrap(errs.MalformedOutput, "model response is not valid JSON", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, errs.Wrap(errs.MalformedOutput, "model response does not match the expected schema", err)
	}
	return json.RawMessage(cleaned), nil
}

// stripFences removes a surrounding markdown code fence if the model
// added one despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// schemaHint is the inline field list appended to prompts.
func schemaHint(kind Kind) string {
	switch kind {
	case KindSummary:
		return `{"detected_language", "summary", "confidence"}.`
	case KindKeyPoints:
		return `{"detected_language", "key_points": [{"text", "explanation", "party_benefit" (one of first_party, opposing_party, mutual), "citation", "importance"}], "confidence"}.`
	case KindRisks:
		return `{"detected_language", "risks": [{"severity" (HIGH, MEDIUM or LOW), "clause", "rationale", "location", "risk_category"}], "risk_summary": {"high_risks", "medium_risks", "low_risks", "overall_assessment"}, "confidence"}.`
	case KindTranslation:
		return `{"original_language", "target_language", "original_content", "translated_content", "confidence"}.`
	}
	return "{}."
}
