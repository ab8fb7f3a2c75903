package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/atebit/legaldocs/internal/models"
)

//go:embed schema.sql
var mirrorSchema string

// SQLiteMirror keeps a local, queryable copy of documents and analyses.
// Firestore stays the source of truth; mirror writes are best effort and
// the mirror can always be rebuilt from it.
type SQLiteMirror struct {
	db *sql.DB
}

// NewSQLiteMirror opens (or creates) the mirror database and applies the
// schema.
func NewSQLiteMirror(path string) (*SQLiteMirror, error) {
	if path == "" {
		return nil, fmt.Errorf("mirror path must be provided")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open mirror database: %w", err)
	}
	if _, err := db.Exec(mirrorSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply mirror schema: %w", err)
	}
	return &SQLiteMirror{db: db}, nil
}

func (m *SQLiteMirror) Close() error {
	return m.db.Close()
}

// SaveDocument upserts the document row. Extracted text is deliberately
// not mirrored; it lives in Firestore and the text backup object.
func (m *SQLiteMirror) SaveDocument(ctx context.Context, doc *models.Document) error {
	const query = `
		INSERT INTO documents
			(document_id, owner_uid, title, file_type, storage_path, language_code, status, error_details, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (document_id) DO UPDATE SET
			title = excluded.title,
			file_type = excluded.file_type,
			storage_path = excluded.storage_path,
			language_code = excluded.language_code,
			status = excluded.status,
			error_details = excluded.error_details,
			updated_at = excluded.updated_at`

	_, err := m.db.ExecContext(ctx, query,
		doc.ID, doc.Owner, doc.Title, doc.FileType, doc.StoragePath,
		doc.LanguageCode, doc.Status, doc.ErrorDetails, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("mirror document %s: %w", doc.ID, err)
	}
	return nil
}

// SaveAnalysis mirrors one analysis version. A row that already exists
// is left untouched since versions are immutable.
func (m *SQLiteMirror) SaveAnalysis(ctx context.Context, analysis *models.Analysis) error {
	summary, err := json.Marshal(analysis.Summary)
	if err != nil {
		return fmt.Errorf("encode summary for %s v%d: %w", analysis.DocumentID, analysis.Version, err)
	}
	keyPoints, err := json.Marshal(analysis.KeyPoints)
	if err != nil {
		return fmt.Errorf("encode key points for %s v%d: %w", analysis.DocumentID, analysis.Version, err)
	}
	riskAlerts, err := json.Marshal(analysis.RiskAlerts)
	if err != nil {
		return fmt.Errorf("encode risk alerts for %s v%d: %w", analysis.DocumentID, analysis.Version, err)
	}

	const query = `
		INSERT INTO analyses
			(document_id, version, analysis_type, target_language, summary, key_points, risk_alerts, input_tokens, output_tokens, total_tokens, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (document_id, version) DO NOTHING`

	_, err = m.db.ExecContext(ctx, query,
		analysis.DocumentID, analysis.Version, analysis.Kind, analysis.TargetLanguage,
		string(summary), string(keyPoints), string(riskAlerts),
		analysis.TokenUsage.Input, analysis.TokenUsage.Output, analysis.TokenUsage.Total,
		analysis.CompletionTime)
	if err != nil {
		return fmt.Errorf("mirror analysis %s v%d: %w", analysis.DocumentID, analysis.Version, err)
	}
	return nil
}

// DeleteDocument removes the document row and its mirrored analyses.
func (m *SQLiteMirror) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM analyses WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("delete mirrored analyses for %s: %w", documentID, err)
	}
	if _, err := m.db.ExecContext(ctx, `DELETE FROM documents WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("delete mirrored document %s: %w", documentID, err)
	}
	return nil
}

// CountDocuments reports how many documents an owner has in the mirror.
func (m *SQLiteMirror) CountDocuments(ctx context.Context, ownerUID string) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE owner_uid = ?`, ownerUID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count mirrored documents for %s: %w", ownerUID, err)
	}
	return n, nil
}

// Analyses returns the mirrored analyses for a document, oldest first.
func (m *SQLiteMirror) Analyses(ctx context.Context, documentID string) ([]*models.Analysis, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT version, analysis_type, target_language, summary, key_points, risk_alerts,
		       input_tokens, output_tokens, total_tokens, completed_at
		FROM analyses WHERE document_id = ? ORDER BY version`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query mirrored analyses for %s: %w", documentID, err)
	}
	defer rows.Close()

	var out []*models.Analysis
	for rows.Next() {
		a := &models.Analysis{DocumentID: documentID}
		var summary, keyPoints, riskAlerts string
		var targetLanguage sql.NullString
		if err := rows.Scan(&a.Version, &a.Kind, &targetLanguage, &summary, &keyPoints, &riskAlerts,
			&a.TokenUsage.Input, &a.TokenUsage.Output, &a.TokenUsage.Total, &a.CompletionTime); err != nil {
			return nil, fmt.Errorf("scan mirrored analysis for %s: %w", documentID, err)
		}
		a.TargetLanguage = targetLanguage.String
		if err := json.Unmarshal([]byte(summary), &a.Summary); err != nil {
			return nil, fmt.Errorf("decode mirrored summary for %s v%d: %w", documentID, a.Version, err)
		}
		if err := json.Unmarshal([]byte(keyPoints), &a.KeyPoints); err != nil {
			return nil, fmt.Errorf("decode mirrored key points for %s v%d: %w", documentID, a.Version, err)
		}
		if err := json.Unmarshal([]byte(riskAlerts), &a.RiskAlerts); err != nil {
			return nil, fmt.Errorf("decode mirrored risk alerts for %s v%d: %w", documentID, a.Version, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
