package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/Jxel117/GastanGO-sub000/internal/domain"
)

const pgUniqueViolation = "23505"

type IdentityRepository struct{ db *gorm.DB }

type SessionRepository struct{ db *gorm.DB }

func NewIdentityRepository(db *gorm.DB) *IdentityRepository { return &IdentityRepository{db: db} }
func NewSessionRepository(db *gorm.DB) *SessionRepository   { return &SessionRepository{db: db} }

// Create inserts the identity in a single statement. Uniqueness is left to the
// unique indexes; a violation is reported as ErrDuplicateEmail or
// ErrDuplicateUsername.
func (r *IdentityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	err := r.db.WithContext(ctx).Create(identity).Error
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return r.duplicateKind(ctx, identity.Email, err)
	}
	return err
}

func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *IdentityRepository) FindByID(ctx context.Context, id string) (*domain.Identity, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *IdentityRepository) findOne(ctx context.Context, query string, arg interface{}) (*domain.Identity, error) {
	var identity domain.Identity
	if err := r.db.WithContext(ctx).Where(query, arg).First(&identity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &identity, nil
}

// SetVerificationCode stores a fresh code digest and resets the attempt counter.
func (r *IdentityRepository) SetVerificationCode(ctx context.Context, id, codeHash string, expiresAt time.Time) error {
	return r.update(ctx, r.db.WithContext(ctx).Model(&domain.Identity{}).Where("id = ?", id), map[string]interface{}{
		"verification_code_hash":  codeHash,
		"verification_expires_at": expiresAt.UTC(),
		"verification_attempts":   0,
	})
}

// MarkVerified flips the flag and clears the code only if codeHash still
// matches the stored one and has not expired. A false result means nothing
// was updated.
func (r *IdentityRepository) MarkVerified(ctx context.Context, id, codeHash string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Identity{}).
		Where("id = ? AND verification_code_hash = ? AND verification_expires_at > ?", id, codeHash, now.UTC()).
		Updates(map[string]interface{}{
			"is_verified":             true,
			"verification_code_hash":  nil,
			"verification_expires_at": nil,
			"verification_attempts":   0,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReserveVerificationAttempt bumps the counter only while it is below limit.
// Concurrent callers cannot overshoot because the check and the increment are
// the same statement.
func (r *IdentityRepository) ReserveVerificationAttempt(ctx context.Context, id string, limit int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Identity{}).
		Where("id = ? AND verification_attempts < ?", id, limit).
		Update("verification_attempts", gorm.Expr("verification_attempts + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *IdentityRepository) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	return r.update(ctx, r.db.WithContext(ctx).Model(&domain.Identity{}).Where("id = ?", id), map[string]interface{}{
		"password_hash":       passwordHash,
		"password_updated_at": at.UTC(),
	})
}

func (r *IdentityRepository) UpdateUsername(ctx context.Context, id, username string) error {
	err := r.update(ctx, r.db.WithContext(ctx).Model(&domain.Identity{}).Where("id = ?", id), map[string]interface{}{
		"username": username,
	})
	if err != nil && isUniqueViolation(err) {
		return domain.ErrDuplicateUsername
	}
	return err
}

func (r *IdentityRepository) UpdateAvatarPath(ctx context.Context, id, path string) error {
	return r.update(ctx, r.db.WithContext(ctx).Model(&domain.Identity{}).Where("id = ?", id), map[string]interface{}{
		"avatar_path": path,
	})
}

func (r *IdentityRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, r.db.WithContext(ctx).Model(&domain.Identity{}).Where("id = ?", id), map[string]interface{}{
		"last_login_at": at.UTC(),
	})
}

func (r *IdentityRepository) update(_ context.Context, q *gorm.DB, values map[string]interface{}) error {
	res := q.Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *IdentityRepository) duplicateKind(ctx context.Context, email string, cause error) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Identity{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return errors.Join(cause, err)
	}
	if count > 0 {
		return domain.ErrDuplicateEmail
	}
	return domain.ErrDuplicateUsername
}

func (r *SessionRepository) Create(ctx context.Context, token *domain.SessionToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *SessionRepository) FindByHash(ctx context.Context, hash string) (*domain.SessionToken, error) {
	var token domain.SessionToken
	if err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return &token, nil
}

// Revoke deactivates the session in one conditional update. Revoking an
// already revoked session succeeds without touching revoked_at.
func (r *SessionRepository) Revoke(ctx context.Context, hash string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.SessionToken{}).
		Where("token_hash = ? AND active = ?", hash, true).
		Updates(map[string]interface{}{"active": false, "revoked_at": at.UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.SessionToken{}).Where("token_hash = ?", hash).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) RevokeAllForIdentity(ctx context.Context, identityID string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.SessionToken{}).
		Where("identity_id = ? AND active = ?", identityID, true).
		Updates(map[string]interface{}{"active": false, "revoked_at": at.UTC()})
	return res.RowsAffected, res.Error
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", before.UTC()).Delete(&domain.SessionToken{})
	return res.RowsAffected, res.Error
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
