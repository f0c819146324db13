package usecase

import (
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Jxel117/GastanGO-sub000/config"
	"github.com/Jxel117/GastanGO-sub000/internal/domain"
	"github.com/Jxel117/GastanGO-sub000/internal/tokenverify"
)

var ErrInvalidTTL = errors.New("token ttl must be at least one second")

// JWTSigner mints and parses session tokens.
type JWTSigner interface {
	Issue(identity *domain.Identity, ttl time.Duration) (token string, expiresAt time.Time, err error)
	Parse(token string) (*jwt.Token, *tokenverify.Claims, error)
}

type jwtSigner struct {
	cfg       *config.Config
	hmacKey   []byte
	private   *rsa.PrivateKey
	publicKey *rsa.PublicKey
	now       func() time.Time
}

type SignerOption func(*jwtSigner)

// WithClock replaces time.Now for both issuing and parsing.
func WithClock(now func() time.Time) SignerOption {
	return func(s *jwtSigner) { s.now = now }
}

func NewJWTSigner(cfg *config.Config, opts ...SignerOption) (JWTSigner, error) {
	s := &jwtSigner{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.JWTSecret != "" {
		s.hmacKey = []byte(cfg.JWTSecret)
		return s, nil
	}
	if cfg.JWTPrivateKey != "" && cfg.JWTPublicKey != "" {
		priv, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.JWTPrivateKey))
		if err != nil {
			return nil, err
		}
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.JWTPublicKey))
		if err != nil {
			return nil, err
		}
		s.private = priv
		s.publicKey = pub
		return s, nil
	}
	return nil, errors.New("jwt secret or key pair required")
}

func (s *jwtSigner) Issue(identity *domain.Identity, ttl time.Duration) (string, time.Time, error) {
	if identity == nil || identity.ID == "" {
		return "", time.Time{}, errors.New("identity id required")
	}
	if ttl < time.Second {
		return "", time.Time{}, ErrInvalidTTL
	}
	now := s.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(ttl.Truncate(time.Second))
	claims := tokenverify.Claims{
		Roles: append([]string(nil), identity.Roles...),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			Issuer:    s.cfg.JWTIssuer,
			Audience:  jwt.ClaimStrings{s.cfg.JWTAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(s.method(), claims)
	signed, err := s.sign(token)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *jwtSigner) Parse(tokenStr string) (*jwt.Token, *tokenverify.Claims, error) {
	claims := &tokenverify.Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{s.method().Alg()}),
		jwt.WithAudience(s.cfg.JWTAudience),
		jwt.WithIssuer(s.cfg.JWTIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if s.hmacKey != nil {
			return s.hmacKey, nil
		}
		return s.publicKey, nil
	})
	return token, claims, err
}

func (s *jwtSigner) sign(token *jwt.Token) (string, error) {
	if s.hmacKey != nil {
		return token.SignedString(s.hmacKey)
	}
	if s.private == nil {
		return "", errors.New("private key not configured")
	}
	return token.SignedString(s.private)
}

func (s *jwtSigner) method() jwt.SigningMethod {
	if s.hmacKey != nil {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodRS256
}
