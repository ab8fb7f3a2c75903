// Package service implements the document lifecycle: creation, upload
// and extraction, analysis, download and deletion, all scoped to the
// authenticated owner.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"

	"github.com/atebit/legaldocs/internal/analysis"
	"github.com/atebit/legaldocs/internal/errs"
	"github.com/atebit/legaldocs/internal/extract"
	"github.com/atebit/legaldocs/internal/guard"
	"github.com/atebit/legaldocs/internal/models"
)

// DocumentStore is the persistence surface the service needs. *store.Store
// implements it.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, ownerUID, documentID string) (*models.Document, error)
	UpdateDocument(ctx context.Context, documentID string, updates []firestore.Update) error
	ListDocuments(ctx context.Context, ownerUID string, limit, offset int) ([]*models.Document, error)
	DeleteDocument(ctx context.Context, documentID string) error
	GetAnalysis(ctx context.Context, documentID string, version int) (*models.Analysis, error)
	LatestAnalysis(ctx context.Context, documentID string) (*models.Analysis, error)
	AppendHistory(ctx context.Context, entry *models.History) error
	ListHistory(ctx context.Context, documentID string, limit int) ([]*models.History, error)
}

// BlobStore holds original uploads and extracted-text backups.
type BlobStore interface {
	Put(ctx context.Context, objectName, contentType string, payload []byte) error
	Delete(ctx context.Context, objectName string) error
	SignedURL(objectName string, ttl time.Duration) (string, error)
}

// DocumentMirror receives best-effort copies of document state.
type DocumentMirror interface {
	SaveDocument(ctx context.Context, doc *models.Document) error
	DeleteDocument(ctx context.Context, documentID string) error
}

// LanguageDetector identifies the primary language of extracted text.
type LanguageDetector interface {
	DetectLanguage(ctx context.Context, text string) (string, error)
}

// ObjectPather builds blob object names; store.ObjectPath in production.
type ObjectPather func(ownerUID, documentID, filename string) string

// Service ties the guard, stores, extractor and analyzer together.
type Service struct {
	guard        *guard.Guard
	store        DocumentStore
	blobs        BlobStore
	mirror       DocumentMirror
	extractor    *extract.Extractor
	orchestrator *analysis.Orchestrator
	detector     LanguageDetector
	objectPath   ObjectPather
	logger       *slog.Logger
}

type Config struct {
	Guard        *guard.Guard
	Store        DocumentStore
	Blobs        BlobStore
	Mirror       DocumentMirror
	Extractor    *extract.Extractor
	Orchestrator *analysis.Orchestrator
	Detector     LanguageDetector
	ObjectPath   ObjectPather
	Logger       *slog.Logger
}

func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		guard:        cfg.Guard,
		store:        cfg.Store,
		blobs:        cfg.Blobs,
		mirror:       cfg.Mirror,
		extractor:    cfg.Extractor,
		orchestrator: cfg.Orchestrator,
		detector:     cfg.Detector,
		objectPath:   cfg.ObjectPath,
		logger:       cfg.Logger,
	}
}

// Create registers a new empty document owned by the caller.
func (s *Service) Create(ctx context.Context, token, title string) (*models.Document, error) {
	uid, err := s.guard.Identity(token)
	if err != nil {
		return nil, err
	}
	if title == "" {
		return nil, errs.New(errs.InvalidRequest, "title must not be empty")
	}

	doc := &models.Document{
		ID:     uuid.NewString(),
		Owner:  uid,
		Title:  title,
		Status: models.StatusPending,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	s.mirrorDocument(ctx, doc)
	s.appendHistory(ctx, models.NewHistory(doc.ID, models.ActionCreated, uid))

	s.logger.Info("document created", "documentId", doc.ID)
	return doc, nil
}

// Upload stores the file, extracts its text and moves the document to
// ANALYZED, or to ERROR with details when the pipeline fails.
func (s *Service) Upload(ctx context.Context, token, documentID, filename string, payload []byte) (*models.Document, error) {
	uid, doc, err := s.guard.Authorize(ctx, token, documentID)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With("documentId", documentID)

	// The original file is stored before extraction so a failed pipeline
	// still leaves it retrievable.
	objectName := s.objectPath(uid, documentID, filename)
	if err := s.blobs.Put(ctx, objectName, uploadContentType(filename), payload); err != nil {
		return nil, errs.Wrap(errs.Internal, "store original upload", err)
	}

	if err := s.store.UpdateDocument(ctx, documentID, []firestore.Update{
		{Path: "status", Value: models.StatusProcessing},
		{Path: "storagePath", Value: objectName},
		{Path: "errorDetails", Value: firestore.Delete},
	}); err != nil {
		return nil, err
	}
	doc.StoragePath = objectName

	doc, err = s.runUploadPipeline(ctx, uid, doc, filename, payload, logger)
	if err != nil {
		s.markFailed(ctx, uid, documentID, err, logger)
		return nil, err
	}

	s.mirrorDocument(ctx, doc)
	s.appendHistory(ctx, models.NewHistory(documentID, models.ActionUploaded, uid).
		WithPayload(map[string]any{"filename": filename, "fileType": doc.FileType}))

	logger.Info("upload processed", "fileType", doc.FileType, "language", doc.LanguageCode)
	return doc, nil
}

func (s *Service) runUploadPipeline(ctx context.Context, uid string, doc *models.Document, filename string, payload []byte, logger *slog.Logger) (*models.Document, error) {
	result, err := s.extractor.Extract(payload, filename)
	if err != nil {
		return nil, err
	}

	// The text backup lets the extracted text be re-read without
	// touching Firestore. Losing it is not fatal.
	backupName := s.objectPath(uid, doc.ID, textBackupFilename(filename))
	if err := s.blobs.Put(ctx, backupName, "text/plain; charset=utf-8", []byte(result.Text)); err != nil {
		logger.Warn("text backup write failed", "object", backupName, "error", err)
	}

	language := "en"
	if s.detector != nil {
		if detected, err := s.detector.DetectLanguage(ctx, result.Text); err != nil {
			logger.Warn("language detection failed, defaulting to en", "error", err)
		} else {
			language = detected
		}
	}

	if err := s.store.UpdateDocument(ctx, doc.ID, []firestore.Update{
		{Path: "fileType", Value: string(result.Format)},
		{Path: "extractedText", Value: result.Text},
		{Path: "languageCode", Value: language},
		{Path: "status", Value: models.StatusAnalyzed},
	}); err != nil {
		return nil, err
	}

	updated := *doc
	updated.FileType = string(result.Format)
	updated.ExtractedText = result.Text
	updated.LanguageCode = language
	updated.Status = models.StatusAnalyzed
	updated.UpdatedAt = time.Now().UTC()
	return &updated, nil
}

// markFailed records a pipeline failure on the document and in history.
func (s *Service) markFailed(ctx context.Context, uid, documentID string, cause error, logger *slog.Logger) {
	if err := s.store.UpdateDocument(ctx, documentID, []firestore.Update{
		{Path: "status", Value: models.StatusError},
		{Path: "errorDetails", Value: cause.Error()},
	}); err != nil {
		logger.Error("failed to record error status", "error", err)
	}
	s.appendHistory(ctx, models.NewHistory(documentID, models.ActionError, uid).
		WithPayload(map[string]any{"error": cause.Error()}))
}

// Get returns one of the caller's documents.
func (s *Service) Get(ctx context.Context, token, documentID string) (*models.Document, error) {
	_, doc, err := s.guard.Authorize(ctx, token, documentID)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns a page of the caller's documents, newest first.
func (s *Service) List(ctx context.Context, token string, limit, offset int) ([]*models.Document, error) {
	uid, err := s.guard.Identity(token)
	if err != nil {
		return nil, err
	}
	return s.store.ListDocuments(ctx, uid, limit, offset)
}

// Delete removes the document, its blobs and its mirror row. Blob and
// mirror cleanup is best effort; the master record always goes.
func (s *Service) Delete(ctx context.Context, token, documentID string) error {
	uid, doc, err := s.guard.Authorize(ctx, token, documentID)
	if err != nil {
		return err
	}
	logger := s.logger.With("documentId", documentID)

	if doc.StoragePath != "" {
		if err := s.blobs.Delete(ctx, doc.StoragePath); err != nil {
			logger.Warn("blob delete failed", "object", doc.StoragePath, "error", err)
		}
		backup := path.Join(path.Dir(doc.StoragePath), textBackupFilename(path.Base(doc.StoragePath)))
		if err := s.blobs.Delete(ctx, backup); err != nil {
			logger.Warn("text backup delete failed", "object", backup, "error", err)
		}
	}

	if err := s.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	if s.mirror != nil {
		if err := s.mirror.DeleteDocument(ctx, documentID); err != nil {
			logger.Warn("mirror delete failed", "error", err)
		}
	}
	s.appendHistory(ctx, models.NewHistory(documentID, models.ActionDeleted, uid))

	logger.Info("document deleted")
	return nil
}

// DownloadURL issues a signed URL for the original upload. The TTL is
// clamped by the blob layer.
func (s *Service) DownloadURL(ctx context.Context, token, documentID string, ttl time.Duration) (string, error) {
	uid, doc, err := s.guard.Authorize(ctx, token, documentID)
	if err != nil {
		return "", err
	}
	if doc.StoragePath == "" {
		return "", errs.Newf(errs.PreconditionFailed, "document %s has no uploaded file", documentID)
	}

	url, err := s.blobs.SignedURL(doc.StoragePath, ttl)
	if err != nil {
		return "", errs.Wrap(errs.Internal, "sign download url", err)
	}
	s.appendHistory(ctx, models.NewHistory(documentID, models.ActionDownloaded, uid))
	return url, nil
}

// Analyze runs an analysis of the given kind against the document.
func (s *Service) Analyze(ctx context.Context, token, documentID string, kind analysis.Kind, targetLanguage string) (*models.Analysis, error) {
	_, doc, err := s.guard.Authorize(ctx, token, documentID)
	if err != nil {
		return nil, err
	}
	return s.orchestrator.Analyze(ctx, doc, kind, targetLanguage)
}

// Analysis fetches a stored analysis. Version 0 means the latest.
func (s *Service) Analysis(ctx context.Context, token, documentID string, version int) (*models.Analysis, error) {
	_, _, err := s.guard.Authorize(ctx, token, documentID)
	if err != nil {
		return nil, err
	}

	var a *models.Analysis
	if version <= 0 {
		a, err = s.store.LatestAnalysis(ctx, documentID)
	} else {
		a, err = s.store.GetAnalysis(ctx, documentID, version)
	}
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, errs.Newf(errs.NotFoundOrUnauthorized,
			"no analysis found for document %s", documentID)
	}
	return a, nil
}

// History returns the document's audit trail.
func (s *Service) History(ctx context.Context, token, documentID string, limit int) ([]*models.History, error) {
	_, _, err := s.guard.Authorize(ctx, token, documentID)
	if err != nil {
		return nil, err
	}
	return s.store.ListHistory(ctx, documentID, limit)
}

func (s *Service) mirrorDocument(ctx context.Context, doc *models.Document) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.SaveDocument(ctx, doc); err != nil {
		s.logger.Warn("document mirror write failed", "documentId", doc.ID, "error", err)
	}
}

func (s *Service) appendHistory(ctx context.Context, entry *models.History) {
	if err := s.store.AppendHistory(ctx, entry); err != nil {
		s.logger.Warn("history append failed", "documentId", entry.DocumentID, "action", entry.Action, "error", err)
	}
}

// textBackupFilename derives the backup object name from the uploaded
// filename.
func textBackupFilename(filename string) string {
	ext := path.Ext(filename)
	return fmt.Sprintf("%s.extracted.txt", filename[:len(filename)-len(ext)])
}

func uploadContentType(filename string) string {
	if ct := mime.TypeByExtension(path.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
