package usecase

import (
	"context"
	"time"

	"github.com/Jxel117/GastanGO-sub000/internal/domain"
)

// IdentityRepository persists identities. Implementations return
// domain.ErrNotFound, domain.ErrDuplicateEmail and domain.ErrDuplicateUsername;
// any other error is treated as an infrastructure failure.
type IdentityRepository interface {
	Create(ctx context.Context, identity *domain.Identity) error
	FindByEmail(ctx context.Context, email string) (*domain.Identity, error)
	FindByID(ctx context.Context, id string) (*domain.Identity, error)
	SetVerificationCode(ctx context.Context, id, codeHash string, expiresAt time.Time) error
	MarkVerified(ctx context.Context, id, codeHash string, now time.Time) (bool, error)
	// ReserveVerificationAttempt increments the attempt counter only while it
	// is below limit, in one conditional update.
	ReserveVerificationAttempt(ctx context.Context, id string, limit int) (bool, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	UpdateUsername(ctx context.Context, id, username string) error
	UpdateAvatarPath(ctx context.Context, id, path string) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

// SessionRepository stores session records keyed by token digest. Revoke must
// be a single atomic conditional update and return domain.ErrSessionNotFound
// for unknown digests.
type SessionRepository interface {
	Create(ctx context.Context, token *domain.SessionToken) error
	FindByHash(ctx context.Context, hash string) (*domain.SessionToken, error)
	Revoke(ctx context.Context, hash string, at time.Time) error
	RevokeAllForIdentity(ctx context.Context, identityID string, at time.Time) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Notifier delivers account emails. Delivery is best effort.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, email, code string) error
	SendWelcomeEmail(ctx context.Context, email, username string) error
}

// PasswordHasher is satisfied by hasher.Bcrypt.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	Burn(password string)
	NeedsRehash(hash string) bool
}
