package models

import "time"

// History action kinds.
const (
	ActionCreated    = "CREATED"
	ActionUploaded   = "UPLOADED"
	ActionAnalyzed   = "ANALYZED"
	ActionDownloaded = "DOWNLOADED"
	ActionDeleted    = "DELETED"
	ActionError      = "ERROR"
)

// History is an append-only audit entry for a document. Entries are never
// updated or deleted.
type History struct {
	DocumentID string         `firestore:"documentId" json:"document_id"`
	Action     string         `firestore:"action" json:"action"`
	ActorUID   string         `firestore:"actorUid" json:"actor_uid"`
	Version    int            `firestore:"version,omitempty" json:"version,omitempty"`
	Payload    map[string]any `firestore:"payload,omitempty" json:"payload,omitempty"`
	Timestamp  time.Time      `firestore:"timestamp" json:"timestamp"`
}

// NewHistory builds an audit entry stamped with the current time.
func NewHistory(documentID, action, actorUID string) *History {
	return &History{
		DocumentID: documentID,
		Action:     action,
		ActorUID:   actorUID,
		Timestamp:  time.Now().UTC(),
	}
}

// WithVersion attaches an analysis version reference.
func (h *History) WithVersion(v int) *History {
	h.Version = v
	return h
}

// WithPayload attaches free-form action data.
func (h *History) WithPayload(payload map[string]any) *History {
	h.Payload = payload
	return h
}
