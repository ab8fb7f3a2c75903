// Package store persists documents, analyses and history in Firestore,
// with a local SQLite mirror and a GCS blob layer alongside.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/atebit/legaldocs/internal/errs"
	"github.com/atebit/legaldocs/internal/models"
)

const (
	analysesSubcollection = "analyses"
	historySubcollection  = "history"

	// DefaultListLimit caps unbounded listings.
	DefaultListLimit = 100
)

// Store is the Firestore-backed document store. Analyses and history
// live in subcollections under each document.
type Store struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

func NewStore(client *firestore.Client, collection string, logger *slog.Logger) *Store {
	if collection == "" {
		collection = "documents"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, collection: collection, logger: logger}
}

func (s *Store) docRef(documentID string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(documentID)
}

// CreateDocument stores a new master record. The document ID must be
// unused.
func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if _, err := s.docRef(doc.ID).Create(ctx, doc); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errs.Newf(errs.Internal, "document id %s already taken", doc.ID)
		}
		return fmt.Errorf("create document %s: %w", doc.ID, err)
	}
	return nil
}

// GetDocument fetches a document and verifies ownership. Both a missing
// document and an owner mismatch return (nil, nil), so callers cannot
// tell the two cases apart.
func (s *Store) GetDocument(ctx context.Context, ownerUID, documentID string) (*models.Document, error) {
	snap, err := s.docRef(documentID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get document %s: %w", documentID, err)
	}

	var doc models.Document
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", documentID, err)
	}
	if doc.Owner != ownerUID {
		return nil, nil
	}
	return &doc, nil
}

// UpdateDocument applies field updates and bumps updatedAt.
func (s *Store) UpdateDocument(ctx context.Context, documentID string, updates []firestore.Update) error {
	updates = append(updates, firestore.Update{Path: "updatedAt", Value: time.Now().UTC()})
	if _, err := s.docRef(documentID).Update(ctx, updates); err != nil {
		return fmt.Errorf("update document %s: %w", documentID, err)
	}
	return nil
}

// ListDocuments returns a page of the owner's documents, newest first.
// A non-positive or oversized limit is clamped to DefaultListLimit.
func (s *Store) ListDocuments(ctx context.Context, ownerUID string, limit, offset int) ([]*models.Document, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	iter := s.client.Collection(s.collection).
		Where("ownerUid", "==", ownerUID).
		OrderBy("createdAt", firestore.Desc).
		Offset(offset).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var docs []*models.Document
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list documents for %s: %w", ownerUID, err)
		}
		var doc models.Document
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", snap.Ref.ID, err)
		}
		docs = append(docs, &doc)
	}
	return docs, nil
}

// DeleteDocument removes the master record. Subcollections are left for
// the history trail; the caller records the deletion there.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := s.docRef(documentID).Delete(ctx); err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}
	return nil
}

// MaxVersion returns the highest analysis version stored for the
// document, or 0 when there are none.
func (s *Store) MaxVersion(ctx context.Context, documentID string) (int, error) {
	iter := s.docRef(documentID).Collection(analysesSubcollection).
		OrderBy("version", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query max analysis version for %s: %w", documentID, err)
	}

	var a models.Analysis
	if err := snap.DataTo(&a); err != nil {
		return 0, fmt.Errorf("decode analysis %s: %w", snap.Ref.ID, err)
	}
	return a.Version, nil
}

// CreateAnalysis stores an analysis under its version. The version
// doubles as the Firestore document ID, so a concurrent writer that
// claimed the same version surfaces as a VersionConflict.
func (s *Store) CreateAnalysis(ctx context.Context, documentID string, analysis *models.Analysis) error {
	ref := s.docRef(documentID).Collection(analysesSubcollection).Doc(versionID(analysis.Version))
	if _, err := ref.Create(ctx, analysis); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errs.Newf(errs.VersionConflict,
				"analysis version %d for document %s already exists", analysis.Version, documentID)
		}
		return fmt.Errorf("create analysis v%d for %s: %w", analysis.Version, documentID, err)
	}
	return nil
}

// GetAnalysis fetches one stored analysis version, or (nil, nil) when it
// does not exist.
func (s *Store) GetAnalysis(ctx context.Context, documentID string, version int) (*models.Analysis, error) {
	snap, err := s.docRef(documentID).Collection(analysesSubcollection).Doc(versionID(version)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get analysis v%d for %s: %w", version, documentID, err)
	}

	var a models.Analysis
	if err := snap.DataTo(&a); err != nil {
		return nil, fmt.Errorf("decode analysis v%d for %s: %w", version, documentID, err)
	}
	return &a, nil
}

// LatestAnalysis returns the highest stored version, or (nil, nil) when
// the document has no analyses yet.
func (s *Store) LatestAnalysis(ctx context.Context, documentID string) (*models.Analysis, error) {
	version, err := s.MaxVersion(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, nil
	}
	return s.GetAnalysis(ctx, documentID, version)
}

// AppendHistory adds an audit entry. History is append-only.
func (s *Store) AppendHistory(ctx context.Context, entry *models.History) error {
	ref := s.docRef(entry.DocumentID).Collection(historySubcollection).NewDoc()
	if _, err := ref.Create(ctx, entry); err != nil {
		return fmt.Errorf("append history for %s: %w", entry.DocumentID, err)
	}
	return nil
}

// ListHistory returns the document's audit trail, newest first.
func (s *Store) ListHistory(ctx context.Context, documentID string, limit int) ([]*models.History, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}

	iter := s.docRef(documentID).Collection(historySubcollection).
		OrderBy("timestamp", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var entries []*models.History
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list history for %s: %w", documentID, err)
		}
		var h models.History
		if err := snap.DataTo(&h); err != nil {
			return nil, fmt.Errorf("decode history entry %s: %w", snap.Ref.ID, err)
		}
		entries = append(entries, &h)
	}
	return entries, nil
}

func versionID(version int) string {
	return fmt.Sprintf("v%d", version)
}
