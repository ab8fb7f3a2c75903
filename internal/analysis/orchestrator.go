package analysis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/atebit/legaldocs/internal/errs"
	"github.com/atebit/legaldocs/internal/models"
)

// AnalysisStore persists analysis results and their history trail.
type AnalysisStore interface {
	// MaxVersion returns the highest stored analysis version for the
	// document, or 0 when none exist.
	MaxVersion(ctx context.Context, documentID string) (int, error)
	// CreateAnalysis stores the analysis, failing with VersionConflict
	// when the version is already taken.
	CreateAnalysis(ctx context.Context, documentID string, analysis *models.Analysis) error
	AppendHistory(ctx context.Context, entry *models.History) error
}

// Mirror receives a best-effort secondary copy of each analysis.
type Mirror interface {
	SaveAnalysis(ctx context.Context, analysis *models.Analysis) error
}

// Orchestrator drives a document through a single analysis run:
// precondition check, model invocation per requested type, versioned
// persistence and history.
type Orchestrator struct {
	invoker *Invoker
	store   AnalysisStore
	mirror  Mirror
	logger  *slog.Logger
}

func NewOrchestrator(invoker *Invoker, store AnalysisStore, mirror Mirror, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{invoker: invoker, store: store, mirror: mirror, logger: logger}
}

// Analyze runs the requested analysis against the document's extracted
// text and persists the result under the next free version. The
// document is never touched before its preconditions are checked, so a
// text-less document costs zero model calls.
func (o *Orchestrator) Analyze(ctx context.Context, doc *models.Document, kind Kind, targetLanguage string) (*models.Analysis, error) {
	if doc == nil {
		return nil, errs.New(errs.InvalidRequest, "no document supplied")
	}
	if !doc.HasExtractedText() {
		return nil, errs.Newf(errs.PreconditionFailed,
			"document %s has no extracted text to analyze", doc.ID)
	}
	if kind == KindTranslation || targetLanguage != "" {
		if err := ValidateLanguage(targetLanguage); err != nil {
			return nil, err
		}
	}

	logger := o.logger.With("documentId", doc.ID, "analysisType", string(kind))
	started := time.Now()

	analysis, err := o.run(ctx, doc, kind, targetLanguage, logger)
	if err != nil {
		return nil, err
	}
	analysis.CompletionTime = time.Now().UTC()

	if err := o.persist(ctx, doc, analysis, logger); err != nil {
		return nil, err
	}
	logger.Info("analysis run finished", "duration", time.Since(started).String())
	return analysis, nil
}

func (o *Orchestrator) run(ctx context.Context, doc *models.Document, kind Kind, targetLanguage string, logger *slog.Logger) (*models.Analysis, error) {
	analysis := &models.Analysis{
		DocumentID:     doc.ID,
		Kind:           string(kind),
		TargetLanguage: targetLanguage,
	}

	if kind == KindAll {
		if err := o.runAll(ctx, doc, targetLanguage, analysis); err != nil {
			return nil, err
		}
		return analysis, nil
	}
	if err := o.runOne(ctx, kind, doc.ExtractedText, targetLanguage, analysis); err != nil {
		return nil, err
	}
	logger.Info("analysis complete", "inputTokens", analysis.TokenUsage.Input, "outputTokens", analysis.TokenUsage.Output)
	return analysis, nil
}

// runAll fans the sub-analyses out concurrently. Translation joins the
// fan-out only when a target language was requested. The run is all or
// nothing: the first failure cancels the rest and nothing is persisted.
func (o *Orchestrator) runAll(ctx context.Context, doc *models.Document, targetLanguage string, analysis *models.Analysis) error {
	kinds := []Kind{KindSummary, KindKeyPoints, KindRisks}
	if targetLanguage != "" {
		kinds = append(kinds, KindTranslation)
	}
	parts := make([]*models.Analysis, len(kinds))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, k := range kinds {
		group.Go(func() error {
			part := &models.Analysis{}
			if err := o.runOne(groupCtx, k, doc.ExtractedText, targetLanguage, part); err != nil {
				return err
			}
			parts[i] = part
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	for i, part := range parts {
		for lang, text := range part.Summary {
			// The translation part contributes only the target-language
			// content; its echo of the original would collide with the
			// summary entry for the detected language.
			if kinds[i] == KindTranslation && lang != targetLanguage {
				continue
			}
			if analysis.Summary == nil {
				analysis.Summary = make(map[string]string)
			}
			analysis.Summary[lang] = text
		}
		if len(part.KeyPoints) > 0 {
			analysis.KeyPoints = part.KeyPoints
		}
		if len(part.RiskAlerts) > 0 {
			analysis.RiskAlerts = part.RiskAlerts
		}
		analysis.TokenUsage.Add(part.TokenUsage)
	}
	return nil
}

func (o *Orchestrator) runOne(ctx context.Context, kind Kind, text, targetLanguage string, into *models.Analysis) error {
	prompt, err := BuildPrompt(kind, text, targetLanguage)
	if err != nil {
		return err
	}
	raw, err := o.invoker.Invoke(ctx, prompt, maxOutputTokensFor(kind))
	if err != nil {
		return err
	}
	validated, err := ValidateStructured(kind, raw)
	if err != nil {
		return err
	}

	input, output := CountTokens(prompt, raw)
	into.TokenUsage.Add(models.TokenUsage{Input: input, Output: output, Total: input + output})

	return applyResult(kind, validated, targetLanguage, into)
}

// applyResult maps the validated model response onto the analysis
// record.
func applyResult(kind Kind, raw json.RawMessage, targetLanguage string, into *models.Analysis) error {
	switch kind {
	case KindSummary:
		var res SummaryResult
		if err := json.Unmarshal(raw, &res); err != nil {
			return errs.Wrap(errs.MalformedOutput, "decode summary result", err)
		}
		lang := res.DetectedLanguage
		if lang == "" {
			lang = "und"
		}
		into.Summary = map[string]string{lang: res.Summary}

	case KindKeyPoints:
		var res KeyPointsResult
		if err := json.Unmarshal(raw, &res); err != nil {
			return errs.Wrap(errs.MalformedOutput, "decode key points result", err)
		}
		into.KeyPoints = make([]models.KeyPoint, 0, len(res.KeyPoints))
		for _, kp := range res.KeyPoints {
			into.KeyPoints = append(into.KeyPoints, models.KeyPoint{
				Text:         kp.Text,
				Explanation:  kp.Explanation,
				PartyBenefit: kp.PartyBenefit,
				Citation:     kp.Citation,
				Importance:   kp.Importance,
			})
		}

	case KindRisks:
		var res RisksResult
		if err := json.Unmarshal(raw, &res); err != nil {
			return errs.Wrap(errs.MalformedOutput, "decode risks result", err)
		}
		into.RiskAlerts = make([]models.RiskAlert, 0, len(res.Risks))
		for _, r := range res.Risks {
			into.RiskAlerts = append(into.RiskAlerts, models.RiskAlert{
				Severity:     r.Severity,
				Clause:       r.Clause,
				Rationale:    r.Rationale,
				Location:     r.Location,
				RiskCategory: r.RiskCategory,
			})
		}

	case KindTranslation:
		var res TranslationResult
		if err := json.Unmarshal(raw, &res); err != nil {
			return errs.Wrap(errs.MalformedOutput, "decode translation result", err)
		}
		origLang := res.OriginalLanguage
		if origLang == "" {
			origLang = "und"
		}
		target := res.TargetLanguage
		if target == "" {
			target = targetLanguage
		}
		into.Summary = map[string]string{
			origLang: res.OriginalContent,
			target:   res.TranslatedContent,
		}

	default:
		return errs.Newf(errs.InvalidRequest, "unsupported analysis type %q", kind)
	}
	return nil
}

// persist assigns the next version and stores the analysis. Mirror and
// history writes are best effort and only logged on failure.
func (o *Orchestrator) persist(ctx context.Context, doc *models.Document, analysis *models.Analysis, logger *slog.Logger) error {
	maxVersion, err := o.store.MaxVersion(ctx, doc.ID)
	if err != nil {
		return errs.Wrap(errs.Internal, "determine next analysis version", err)
	}
	analysis.Version = maxVersion + 1

	if err := o.store.CreateAnalysis(ctx, doc.ID, analysis); err != nil {
		return err
	}

	if o.mirror != nil {
		if err := o.mirror.SaveAnalysis(ctx, analysis); err != nil {
			logger.Warn("analysis mirror write failed", "version", analysis.Version, "error", err)
		}
	}

	entry := models.NewHistory(doc.ID, models.ActionAnalyzed, doc.Owner).
		WithVersion(analysis.Version).
		WithPayload(map[string]any{
			"analysisType":   analysis.Kind,
			"targetLanguage": analysis.TargetLanguage,
			"totalTokens":    analysis.TokenUsage.Total,
		})
	if err := o.store.AppendHistory(ctx, entry); err != nil {
		logger.Warn("history append failed", "version", analysis.Version, "error", err)
	}

	logger.Info("analysis stored", "version", analysis.Version)
	return nil
}
