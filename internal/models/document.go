package models

import "time"

// Document lifecycle statuses.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusAnalyzed   = "ANALYZED"
	StatusError      = "ERROR"
)

// Document is the master record for a legal document in Firestore.
// The owner is set at creation and never changes.
type Document struct {
	ID            string    `firestore:"documentId" json:"document_id"`
	Owner         string    `firestore:"ownerUid" json:"owner_uid"`
	Title         string    `firestore:"title" json:"title"`
	FileType      string    `firestore:"fileType,omitempty" json:"file_type,omitempty"`
	StoragePath   string    `firestore:"storagePath,omitempty" json:"storage_path,omitempty"`
	ExtractedText string    `firestore:"extractedText,omitempty" json:"extracted_text,omitempty"`
	LanguageCode  string    `firestore:"languageCode,omitempty" json:"language_code,omitempty"`
	Status        string    `firestore:"status" json:"status"`
	ErrorDetails  string    `firestore:"errorDetails,omitempty" json:"error_details,omitempty"`
	CreatedAt     time.Time `firestore:"createdAt" json:"created_at"`
	UpdatedAt     time.Time `firestore:"updatedAt" json:"updated_at"`
}

// HasExtractedText reports whether an upload cycle has produced text for
// this document. Analyses are only created when this holds.
func (d *Document) HasExtractedText() bool {
	return d != nil && d.ExtractedText != ""
}
