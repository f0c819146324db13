package tokenverify

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed        = errors.New("token_malformed")
	ErrSignatureInvalid = errors.New("signature_invalid")
	ErrExpired          = errors.New("token_expired")
	ErrSubjectMissing   = errors.New("subject_missing")
	ErrInvalidToken     = errors.New("invalid_token")
)

// Claims is the payload of a session token.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

type Parser interface {
	Parse(token string) (*jwt.Token, *Claims, error)
}

type Result struct {
	IdentityID string
	Roles      []string
	TokenID    string
	ExpiresAt  time.Time
}

// Verify checks signature first and expiry second. It never consults the
// revocation registry, so it is safe to use where no storage is reachable.
func Verify(parser Parser, token string, nowFn func() time.Time) (*Result, error) {
	if parser == nil {
		return nil, ErrInvalidToken
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if token == "" {
		return nil, ErrMalformed
	}
	tok, claims, err := parser.Parse(token)
	if err != nil {
		return nil, classify(err)
	}
	if tok == nil || !tok.Valid || claims == nil {
		return nil, ErrInvalidToken
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil || !nowFn().Before(exp.Time) {
		return nil, ErrExpired
	}
	if claims.Subject == "" {
		return nil, ErrSubjectMissing
	}
	return &Result{
		IdentityID: claims.Subject,
		Roles:      append([]string(nil), claims.Roles...),
		TokenID:    claims.ID,
		ExpiresAt:  exp.Time,
	}, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrInvalidToken
	}
}
