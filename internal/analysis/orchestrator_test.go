package analysis

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atebit/legaldocs/internal/errs"
	"github.com/atebit/legaldocs/internal/models"
)

// kindedGenerator answers each prompt with a canned payload chosen by
// the instruction block in the prompt.
type kindedGenerator struct {
	mu       sync.Mutex
	calls    int
	failFor  Kind
	failWith error
	respond  map[Kind]string
}

func defaultResponses() map[Kind]string {
	return map[Kind]string{
		KindSummary:     `{"detected_language": "en", "summary": "Simple rent deal.", "confidence": 0.9}`,
		KindKeyPoints:   `{"detected_language": "en", "key_points": [{"text": "Rent is due monthly.", "explanation": "Pay every month.", "party_benefit": "first_party", "citation": "Section 2", "importance": 0.8}], "confidence": 0.85}`,
		KindRisks:       `{"detected_language": "en", "risks": [{"severity": "MEDIUM", "clause": "Auto renewal", "rationale": "Renews silently.", "location": "Section 7", "risk_category": "renewal"}], "risk_summary": {"high_risks": 0, "medium_risks": 1, "low_risks": 0, "overall_assessment": "Mostly fine."}, "confidence": 0.7}`,
		KindTranslation: `{"original_language": "en", "target_language": "es", "original_content": "Rent is due.", "translated_content": "La renta vence.", "confidence": 0.93}`,
	}
}

func kindOfPrompt(prompt string) Kind {
	switch {
	case strings.Contains(prompt, "summarizing legal documents"):
		return KindSummary
	case strings.Contains(prompt, "key points"):
		return KindKeyPoints
	case strings.Contains(prompt, "legal risks"):
		return KindRisks
	default:
		return KindTranslation
	}
}

func (g *kindedGenerator) GenerateText(_ context.Context, prompt string, _ int32, _ float32) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	kind := kindOfPrompt(prompt)
	if g.failWith != nil && kind == g.failFor {
		return "", g.failWith
	}
	return g.respond[kind], nil
}

func (g *kindedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// memoryStore keeps analyses in a map keyed by version and rejects
// duplicate versions the way the production store does.
type memoryStore struct {
	mu       sync.Mutex
	analyses map[int]*models.Analysis
	history  []*models.History
}

func newMemoryStore() *memoryStore {
	return &memoryStore{analyses: make(map[int]*models.Analysis)}
}

func (s *memoryStore) MaxVersion(_ context.Context, _ string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for v := range s.analyses {
		if v > max {
			max = v
		}
	}
	return max, nil
}

func (s *memoryStore) CreateAnalysis(_ context.Context, _ string, a *models.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.analyses[a.Version]; exists {
		return errs.Newf(errs.VersionConflict, "analysis version %d already exists", a.Version)
	}
	s.analyses[a.Version] = a
	return nil
}

func (s *memoryStore) AppendHistory(_ context.Context, entry *models.History) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, entry)
	return nil
}

func testDocument() *models.Document {
	return &models.Document{
		ID:            "doc-1",
		Owner:         "uid-1",
		Title:         "lease.pdf",
		Status:        models.StatusAnalyzed,
		ExtractedText: "The tenant shall pay rent monthly. The lease renews automatically.",
	}
}

func testOrchestrator(gen Generator, store AnalysisStore) *Orchestrator {
	cfg := fastConfig()
	inv := NewInvoker(gen, cfg, slog.Default())
	return NewOrchestrator(inv, store, nil, slog.Default())
}

func TestAnalyzeRequiresExtractedText(t *testing.T) {
	gen := &kindedGenerator{respond: defaultResponses()}
	o := testOrchestrator(gen, newMemoryStore())

	doc := testDocument()
	doc.ExtractedText = ""

	_, err := o.Analyze(context.Background(), doc, KindSummary, "")
	if !errs.IsKind(err, errs.PreconditionFailed) {
		t.Fatalf("expected PRECONDITION_FAILED, got %v", err)
	}
	if gen.callCount() != 0 {
		t.Errorf("model was called %d times for a text-less document", gen.callCount())
	}
}

func TestAnalyzeSummaryStoresVersionedResult(t *testing.T) {
	gen := &kindedGenerator{respond: defaultResponses()}
	store := newMemoryStore()
	o := testOrchestrator(gen, store)

	got, err := o.Analyze(context.Background(), testDocument(), KindSummary, "")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Version != 1 {
		t.Errorf("first analysis should be version 1, got %d", got.Version)
	}
	if got.Summary["en"] != "Simple rent deal." {
		t.Errorf("unexpected summary map: %v", got.Summary)
	}
	if got.TokenUsage.Total == 0 || got.TokenUsage.Total != got.TokenUsage.Input+got.TokenUsage.Output {
		t.Errorf("inconsistent token usage: %+v", got.TokenUsage)
	}
	if got.CompletionTime.IsZero() {
		t.Error("completion time not set")
	}

	if len(store.history) != 1 || store.history[0].Action != models.ActionAnalyzed {
		t.Errorf("expected one ANALYZED history entry, got %+v", store.history)
	}
}

func TestAnalyzeVersionsAreMonotonic(t *testing.T) {
	gen := &kindedGenerator{respond: defaultResponses()}
	store := newMemoryStore()
	o := testOrchestrator(gen, store)

	for want := 1; want <= 4; want++ {
		got, err := o.Analyze(context.Background(), testDocument(), KindSummary, "")
		if err != nil {
			t.Fatalf("run %d: %v", want, err)
		}
		if got.Version != want {
			t.Fatalf("run %d stored version %d", want, got.Version)
		}
	}
}

func TestAnalyzeTranslationMapsBothLanguages(t *testing.T) {
	gen := &kindedGenerator{respond: defaultResponses()}
	o := testOrchestrator(gen, newMemoryStore())

	got, err := o.Analyze(context.Background(), testDocument(), KindTranslation, "es")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Summary["en"] != "Rent is due." || got.Summary["es"] != "La renta vence." {
		t.Errorf("unexpected translation map: %v", got.Summary)
	}
}

func TestAnalyzeAllCombinesEveryPart(t *testing.T) {
	gen := &kindedGenerator{respond: defaultResponses()}
	store := newMemoryStore()
	o := testOrchestrator(gen, store)

	got, err := o.Analyze(context.Background(), testDocument(), KindAll, "")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got.Summary) == 0 || len(got.KeyPoints) == 0 || len(got.RiskAlerts) == 0 {
		t.Errorf("composite result incomplete: %+v", got)
	}
	if gen.callCount() != 3 {
		t.Errorf("expected 3 model calls, got %d", gen.callCount())
	}
	if got.TokenUsage.Total != got.TokenUsage.Input+got.TokenUsage.Output {
		t.Errorf("token totals do not add up: %+v", got.TokenUsage)
	}
}

func TestAnalyzeAllWithTargetLanguageAddsTranslation(t *testing.T) {
	gen := &kindedGenerator{respond: defaultResponses()}
	o := testOrchestrator(gen, newMemoryStore())

	got, err := o.Analyze(context.Background(), testDocument(), KindAll, "es")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if gen.callCount() != 4 {
		t.Errorf("expected 4 model calls, got %d", gen.callCount())
	}
	if got.Summary["es"] != "La renta vence." {
		t.Errorf("translated content missing: %v", got.Summary)
	}
	if got.Summary["en"] != "Simple rent deal." {
		t.Errorf("summary must survive the translation merge: %v", got.Summary)
	}
}

func TestAnalyzeAllIsAllOrNothing(t *testing.T) {
	gen := &kindedGenerator{
		respond:  defaultResponses(),
		failFor:  KindRisks,
		failWith: errors.New("model overloaded"),
	}
	store := newMemoryStore()
	o := testOrchestrator(gen, store)

	_, err := o.Analyze(context.Background(), testDocument(), KindAll, "")
	if !errs.IsKind(err, errs.ServiceUnavailable) {
		t.Fatalf("expected SERVICE_UNAVAILABLE, got %v", err)
	}
	if len(store.analyses) != 0 {
		t.Errorf("partial composite result persisted: %v", store.analyses)
	}
	if len(store.history) != 0 {
		t.Errorf("history written for failed composite run: %v", store.history)
	}
}

func TestAnalyzeMalformedOutputIsNotRetried(t *testing.T) {
	gen := &kindedGenerator{
		respond: map[Kind]string{KindSummary: "not json at all"},
	}
	o := testOrchestrator(gen, newMemoryStore())

	_, err := o.Analyze(context.Background(), testDocument(), KindSummary, "")
	if !errs.IsKind(err, errs.MalformedOutput) {
		t.Fatalf("expected MALFORMED_OUTPUT, got %v", err)
	}
	if gen.callCount() != 1 {
		t.Errorf("malformed output must not be retried, got %d calls", gen.callCount())
	}
}

func TestAnalyzeVersionConflictSurfaces(t *testing.T) {
	gen := &kindedGenerator{respond: defaultResponses()}
	store := newMemoryStore()
	store.analyses[1] = &models.Analysis{Version: 1}

	// Force MaxVersion to race by reporting stale state.
	stale := &staleStore{memoryStore: store}
	o := testOrchestrator(gen, stale)

	_, err := o.Analyze(context.Background(), testDocument(), KindSummary, "")
	if !errs.IsKind(err, errs.VersionConflict) {
		t.Fatalf("expected VERSION_CONFLICT, got %v", err)
	}
}

// staleStore reports no existing versions, so the next create collides.
type staleStore struct {
	*memoryStore
}

func (s *staleStore) MaxVersion(context.Context, string) (int, error) {
	return 0, nil
}

func TestAnalyzeRunsWithinReasonableTime(t *testing.T) {
	gen := &kindedGenerator{respond: defaultResponses()}
	o := testOrchestrator(gen, newMemoryStore())

	start := time.Now()
	if _, err := o.Analyze(context.Background(), testDocument(), KindAll, ""); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("composite run took %s with an instant fake model", elapsed)
	}
}

var _ AnalysisStore = (*memoryStore)(nil)
