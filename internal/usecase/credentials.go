package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/Jxel117/GastanGO-sub000/internal/domain"
	"github.com/Jxel117/GastanGO-sub000/internal/hasher"
)

// CredentialStore owns identity records and everything touching passwords
// or verification codes. Raw secrets never leave this type.
type CredentialStore struct {
	repo         IdentityRepository
	hasher       PasswordHasher
	defaultRoles []string
	minPassword  int
	now          func() time.Time
}

func NewCredentialStore(repo IdentityRepository, h PasswordHasher, defaultRole string, minPassword int) *CredentialStore {
	if defaultRole == "" {
		defaultRole = domain.RoleUser
	}
	if minPassword <= 0 {
		minPassword = 8
	}
	return &CredentialStore{repo: repo, hasher: h, defaultRoles: []string{defaultRole}, minPassword: minPassword, now: time.Now}
}

type createOptions struct {
	code      string
	expiresAt time.Time
}

type CreateOption func(*createOptions)

// WithVerificationCode stores the digest of code in the same insert as the identity.
func WithVerificationCode(code string, expiresAt time.Time) CreateOption {
	return func(o *createOptions) {
		o.code = code
		o.expiresAt = expiresAt
	}
}

// Create validates, hashes and inserts a new identity. The insert runs on a
// context detached from cancellation so an abandoned request cannot leave the
// store half written.
func (s *CredentialStore) Create(ctx context.Context, username, email, rawPassword string, opts ...CreateOption) (*domain.Identity, error) {
	username = normalizeUsername(username)
	email = normalizeEmail(email)

	v := domain.NewValidationError()
	validateUsername(v, username)
	validateEmail(v, email)
	validatePassword(v, "password", rawPassword, s.minPassword)
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	var o createOptions
	for _, opt := range opts {
		opt(&o)
	}

	hash, err := s.hasher.Hash(rawPassword)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	identity := &domain.Identity{
		Username:          username,
		Email:             email,
		PasswordHash:      hash,
		Roles:             append([]string(nil), s.defaultRoles...),
		PasswordUpdatedAt: now,
	}
	if o.code != "" {
		digest := hasher.Digest(o.code)
		expiresAt := o.expiresAt.UTC()
		identity.VerificationCodeHash = &digest
		identity.VerificationExpiresAt = &expiresAt
	}
	if err := s.repo.Create(context.WithoutCancel(ctx), identity); err != nil {
		return nil, err
	}
	return identity, nil
}

func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return s.repo.FindByEmail(ctx, normalizeEmail(email))
}

func (s *CredentialStore) FindByID(ctx context.Context, id string) (*domain.Identity, error) {
	return s.repo.FindByID(ctx, id)
}

// VerifyPassword compares in constant time. A nil identity still pays for one
// bcrypt comparison.
func (s *CredentialStore) VerifyPassword(identity *domain.Identity, rawPassword string) bool {
	if identity == nil {
		s.hasher.Burn(rawPassword)
		return false
	}
	return s.hasher.Verify(rawPassword, identity.PasswordHash)
}

func (s *CredentialStore) NeedsRehash(identity *domain.Identity) bool {
	return s.hasher.NeedsRehash(identity.PasswordHash)
}

// Rehash stores rawPassword under the current cost. The password itself is
// unchanged, so PasswordUpdatedAt keeps its value.
func (s *CredentialStore) Rehash(ctx context.Context, identity *domain.Identity, rawPassword string) error {
	hash, err := s.hasher.Hash(rawPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(context.WithoutCancel(ctx), identity.ID, hash, identity.PasswordUpdatedAt); err != nil {
		return err
	}
	identity.PasswordHash = hash
	return nil
}

// MarkVerified consumes code. ErrInvalidCode means the code did not match the
// stored one (or was consumed concurrently).
func (s *CredentialStore) MarkVerified(ctx context.Context, id, code string) error {
	ok, err := s.repo.MarkVerified(ctx, id, hasher.Digest(code), s.now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidCode
	}
	return nil
}

func (s *CredentialStore) SetVerificationCode(ctx context.Context, id, code string, expiresAt time.Time) error {
	return s.repo.SetVerificationCode(ctx, id, hasher.Digest(code), expiresAt)
}

// ReserveVerificationAttempt counts one guess against limit. False means the
// identity has no attempts left.
func (s *CredentialStore) ReserveVerificationAttempt(ctx context.Context, id string, limit int) (bool, error) {
	return s.repo.ReserveVerificationAttempt(ctx, id, limit)
}

// CodeMatches reports whether code is the identity's pending, unexpired code.
func (s *CredentialStore) CodeMatches(identity *domain.Identity, code string) bool {
	if identity.VerificationCodeHash == nil || identity.VerificationExpiresAt == nil {
		return false
	}
	if !s.now().Before(*identity.VerificationExpiresAt) {
		return false
	}
	return hasher.DigestEqual(hasher.Digest(code), *identity.VerificationCodeHash)
}

func (s *CredentialStore) UpdatePassword(ctx context.Context, id, rawPassword string) error {
	v := domain.NewValidationError()
	validatePassword(v, "new_password", rawPassword, s.minPassword)
	if err := v.OrNil(); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(rawPassword)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(context.WithoutCancel(ctx), id, hash, s.now())
}

func (s *CredentialStore) UpdateUsername(ctx context.Context, id, username string) error {
	username = normalizeUsername(username)
	v := domain.NewValidationError()
	validateUsername(v, username)
	if err := v.OrNil(); err != nil {
		return err
	}
	return s.repo.UpdateUsername(ctx, id, username)
}

func (s *CredentialStore) UpdateAvatarPath(ctx context.Context, id, path string) error {
	v := domain.NewValidationError()
	switch {
	case path == "":
		v.Add("avatar_path", "is required")
	case len(path) > 512:
		v.Add("avatar_path", "must not exceed 512 characters")
	}
	if err := v.OrNil(); err != nil {
		return err
	}
	return s.repo.UpdateAvatarPath(ctx, id, path)
}

func (s *CredentialStore) TouchLogin(ctx context.Context, id string) error {
	return s.repo.TouchLogin(ctx, id, s.now())
}

// isDomainError reports whether err is already one of the exported kinds.
func isDomainError(err error) bool {
	for _, kind := range []error{
		domain.ErrValidation,
		domain.ErrDuplicateEmail,
		domain.ErrDuplicateUsername,
		domain.ErrInvalidCredentials,
		domain.ErrUnauthorized,
		domain.ErrInvalidCode,
		domain.ErrNotFound,
		domain.ErrUnexpected,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// WithClock swaps the time source; tests use it to move verification windows.
func (s *CredentialStore) WithClock(now func() time.Time) *CredentialStore {
	s.now = now
	return s
}
