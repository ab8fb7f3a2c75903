package models

import "time"

// TokenUsage approximates the cost of one or more generative calls.
// Counts are derived from word counts, not a real tokenizer, so only the
// additive relationship Input+Output=Total is guaranteed.
type TokenUsage struct {
	Input  int `firestore:"inputTokens" json:"input_tokens"`
	Output int `firestore:"outputTokens" json:"output_tokens"`
	Total  int `firestore:"totalTokens" json:"total_tokens"`
}

// Add folds another usage sample into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.Input += other.Input
	u.Output += other.Output
	u.Total += other.Total
}

// KeyPoint is one extracted material term or obligation.
type KeyPoint struct {
	Text         string  `firestore:"text" json:"text"`
	Explanation  string  `firestore:"explanation" json:"explanation"`
	PartyBenefit string  `firestore:"partyBenefit" json:"party_benefit"`
	Citation     string  `firestore:"citation" json:"citation"`
	Importance   float64 `firestore:"importance" json:"importance"`
}

// RiskAlert is one detected legal or compliance concern.
type RiskAlert struct {
	Severity     string `firestore:"severity" json:"severity"`
	Clause       string `firestore:"clause" json:"clause"`
	Rationale    string `firestore:"rationale" json:"rationale"`
	Location     string `firestore:"location" json:"location"`
	RiskCategory string `firestore:"riskCategory" json:"risk_category"`
}

// Analysis is one completed analysis run for a document. Versions are
// strictly monotonic per document and records are immutable once written;
// a new analysis always creates a new version.
type Analysis struct {
	DocumentID     string            `firestore:"documentId" json:"document_id"`
	Version        int               `firestore:"version" json:"version"`
	Kind           string            `firestore:"analysisType" json:"analysis_type"`
	TargetLanguage string            `firestore:"targetLanguage,omitempty" json:"target_language,omitempty"`
	Summary        map[string]string `firestore:"summary" json:"summary"`
	KeyPoints      []KeyPoint        `firestore:"keyPoints" json:"key_points"`
	RiskAlerts     []RiskAlert       `firestore:"riskAlerts" json:"risk_alerts"`
	TokenUsage     TokenUsage        `firestore:"tokenUsage" json:"token_usage"`
	CompletionTime time.Time         `firestore:"completionTime" json:"completion_time"`
}
