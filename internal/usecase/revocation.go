package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/Jxel117/GastanGO-sub000/internal/domain"
	"github.com/Jxel117/GastanGO-sub000/internal/hasher"
)

// RevocationRegistry layers server-side state over otherwise stateless
// tokens. Only digests of token strings are stored.
type RevocationRegistry struct {
	repo SessionRepository
	now  func() time.Time
}

func NewRevocationRegistry(repo SessionRepository, now func() time.Time) *RevocationRegistry {
	if now == nil {
		now = time.Now
	}
	return &RevocationRegistry{repo: repo, now: now}
}

func (r *RevocationRegistry) Record(ctx context.Context, identityID, token string, expiresAt time.Time) error {
	return r.repo.Create(ctx, &domain.SessionToken{
		IdentityID: identityID,
		TokenHash:  hasher.Digest(token),
		Active:     true,
		ExpiresAt:  expiresAt.UTC(),
		CreatedAt:  r.now().UTC(),
	})
}

// Revoke is idempotent; it fails only with domain.ErrSessionNotFound or a storage error.
func (r *RevocationRegistry) Revoke(ctx context.Context, token string) error {
	return r.repo.Revoke(ctx, hasher.Digest(token), r.now())
}

func (r *RevocationRegistry) IsActive(ctx context.Context, token string) (bool, error) {
	session, err := r.repo.FindByHash(ctx, hasher.Digest(token))
	if errors.Is(err, domain.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return session.Usable(r.now()), nil
}

func (r *RevocationRegistry) RevokeAll(ctx context.Context, identityID string) (int64, error) {
	return r.repo.RevokeAllForIdentity(ctx, identityID, r.now())
}

// PurgeExpired removes records past their expiry, revoked or not.
func (r *RevocationRegistry) PurgeExpired(ctx context.Context) (int64, error) {
	return r.repo.DeleteExpired(ctx, r.now())
}
