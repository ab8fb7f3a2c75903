package guard

import (
	"context"
	"testing"
	"time"

	"github.com/atebit/legaldocs/internal/errs"
	"github.com/atebit/legaldocs/internal/models"
)

// fakeDocs scopes lookups by owner the way the real store does.
type fakeDocs struct {
	docs map[string]*models.Document
}

func (f *fakeDocs) GetDocument(_ context.Context, ownerUID, documentID string) (*models.Document, error) {
	doc, ok := f.docs[documentID]
	if !ok || doc.Owner != ownerUID {
		return nil, nil
	}
	return doc, nil
}

func testGuard(t *testing.T) (*Guard, *Verifier) {
	t.Helper()
	verifier, err := NewVerifier("test-secret")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	docs := &fakeDocs{docs: map[string]*models.Document{
		"doc-alice": {ID: "doc-alice", Owner: "uid-alice", Title: "nda.pdf"},
	}}
	return New(verifier, docs), verifier
}

func TestVerifyTokenRoundTrip(t *testing.T) {
	_, verifier := testGuard(t)

	token, err := verifier.IssueToken("uid-alice", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	uid, err := verifier.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if uid != "uid-alice" {
		t.Errorf("got uid %q", uid)
	}

	// Bearer prefix from a raw Authorization header is tolerated.
	if uid, err = verifier.VerifyToken("Bearer " + token); err != nil || uid != "uid-alice" {
		t.Errorf("bearer-prefixed token rejected: uid=%q err=%v", uid, err)
	}
}

func TestVerifyTokenRejectsExpiredAndGarbage(t *testing.T) {
	_, verifier := testGuard(t)

	expired, err := verifier.IssueToken("uid-alice", -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	for name, token := range map[string]string{
		"expired": expired,
		"garbage": "not.a.token",
		"empty":   "",
	} {
		if _, err := verifier.VerifyToken(token); !errs.IsKind(err, errs.NotFoundOrUnauthorized) {
			t.Errorf("%s: expected NOT_FOUND_OR_UNAUTHORIZED, got %v", name, err)
		}
	}
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	_, verifier := testGuard(t)
	other, err := NewVerifier("different-secret")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	forged, err := other.IssueToken("uid-alice", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := verifier.VerifyToken(forged); !errs.IsKind(err, errs.NotFoundOrUnauthorized) {
		t.Errorf("forged token accepted: %v", err)
	}
}

func TestAuthorizeOwnerGetsDocument(t *testing.T) {
	g, verifier := testGuard(t)
	token, _ := verifier.IssueToken("uid-alice", time.Hour)

	uid, doc, err := g.Authorize(context.Background(), token, "doc-alice")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if uid != "uid-alice" || doc.ID != "doc-alice" {
		t.Errorf("got uid=%q doc=%+v", uid, doc)
	}
}

func TestAuthorizeHidesForeignAndMissingAlike(t *testing.T) {
	g, verifier := testGuard(t)
	token, _ := verifier.IssueToken("uid-mallory", time.Hour)

	_, _, foreignErr := g.Authorize(context.Background(), token, "doc-alice")
	_, _, missingErr := g.Authorize(context.Background(), token, "doc-nonexistent")

	if !errs.IsKind(foreignErr, errs.NotFoundOrUnauthorized) {
		t.Fatalf("foreign document: expected NOT_FOUND_OR_UNAUTHORIZED, got %v", foreignErr)
	}
	if !errs.IsKind(missingErr, errs.NotFoundOrUnauthorized) {
		t.Fatalf("missing document: expected NOT_FOUND_OR_UNAUTHORIZED, got %v", missingErr)
	}
	if errs.KindOf(foreignErr) != errs.KindOf(missingErr) {
		t.Error("the two failure modes must be indistinguishable")
	}
}
