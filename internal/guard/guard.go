package guard

import (
	"context"

	"github.com/atebit/legaldocs/internal/errs"
	"github.com/atebit/legaldocs/internal/models"
)

// DocumentGetter fetches a document scoped to an owner. It must return
// (nil, nil) both when the document does not exist and when the owner
// does not match, so that Guard cannot leak which case occurred.
type DocumentGetter interface {
	GetDocument(ctx context.Context, ownerUID, documentID string) (*models.Document, error)
}

// Guard authorizes document access. A missing document and a foreign
// document produce the exact same error, so a caller probing IDs learns
// nothing about other users' documents.
type Guard struct {
	verifier *Verifier
	docs     DocumentGetter
}

func New(verifier *Verifier, docs DocumentGetter) *Guard {
	return &Guard{verifier: verifier, docs: docs}
}

// Identity resolves the caller UID from a token.
func (g *Guard) Identity(token string) (string, error) {
	return g.verifier.VerifyToken(token)
}

// Authorize resolves the caller and loads the document they own. The
// returned document is always owned by the returned UID.
func (g *Guard) Authorize(ctx context.Context, token, documentID string) (string, *models.Document, error) {
	uid, err := g.verifier.VerifyToken(token)
	if err != nil {
		return "", nil, err
	}

	doc, err := g.docs.GetDocument(ctx, uid, documentID)
	if err != nil {
		return "", nil, errs.Wrap(errs.Internal, "load document for authorization", err)
	}
	if doc == nil {
		return "", nil, errs.Newf(errs.NotFoundOrUnauthorized, "document %s not found", documentID)
	}
	return uid, doc, nil
}
