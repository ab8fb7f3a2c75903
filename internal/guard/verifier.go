// Package guard resolves caller identity and enforces document
// ownership. Every read and write on a document passes through it.
package guard

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/atebit/legaldocs/internal/errs"
)

// Claims carried by an access token. The subject is the owner UID used
// for all ownership checks.
type Claims struct {
	jwt.RegisteredClaims
}

// Verifier validates HS256 access tokens and extracts the caller's UID.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errs.New(errs.Internal, "token secret must be configured")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// VerifyToken checks the token signature and expiry and returns the
// subject UID. The bearer prefix is tolerated so callers can pass a raw
// Authorization header value.
func (v *Verifier) VerifyToken(tokenString string) (string, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tokenString), "Bearer "))
	if tokenString == "" {
		return "", errs.New(errs.NotFoundOrUnauthorized, "no access token supplied")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", errs.Wrap(errs.NotFoundOrUnauthorized, "invalid or expired token", err)
	}
	if claims.Subject == "" {
		return "", errs.New(errs.NotFoundOrUnauthorized, "token has no subject")
	}
	return claims.Subject, nil
}

// IssueToken mints a token for the UID. Used by the CLI for local
// development and by tests.
func (v *Verifier) IssueToken(uid string, ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", errs.Wrap(errs.Internal, "sign token", err)
	}
	return signed, nil
}
