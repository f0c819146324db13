package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Jxel117/GastanGO-sub000/internal/domain"
)

type memIdentityRepo struct {
	mu    sync.Mutex
	byID  map[string]*domain.Identity
	fails error
}

func newMemIdentityRepo() *memIdentityRepo {
	return &memIdentityRepo{byID: map[string]*domain.Identity{}}
}

func (r *memIdentityRepo) Create(_ context.Context, identity *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fails != nil {
		return r.fails
	}
	for _, existing := range r.byID {
		if existing.Email == identity.Email {
			return domain.ErrDuplicateEmail
		}
	}
	for _, existing := range r.byID {
		if existing.Username == identity.Username {
			return domain.ErrDuplicateUsername
		}
	}
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	clone := *identity
	r.byID[identity.ID] = &clone
	return nil
}

func (r *memIdentityRepo) FindByEmail(_ context.Context, email string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fails != nil {
		return nil, r.fails
	}
	for _, identity := range r.byID {
		if identity.Email == email {
			clone := *identity
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memIdentityRepo) FindByID(_ context.Context, id string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if identity, ok := r.byID[id]; ok {
		clone := *identity
		return &clone, nil
	}
	return nil, domain.ErrNotFound
}

func (r *memIdentityRepo) with(id string, fn func(*domain.Identity)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(identity)
	return nil
}

func (r *memIdentityRepo) SetVerificationCode(_ context.Context, id, codeHash string, expiresAt time.Time) error {
	return r.with(id, func(i *domain.Identity) {
		i.VerificationCodeHash = &codeHash
		i.VerificationExpiresAt = &expiresAt
		i.VerificationAttempts = 0
	})
}

func (r *memIdentityRepo) MarkVerified(_ context.Context, id, codeHash string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.byID[id]
	if !ok || i.VerificationCodeHash == nil || *i.VerificationCodeHash != codeHash || !now.Before(*i.VerificationExpiresAt) {
		return false, nil
	}
	i.IsVerified = true
	i.VerificationCodeHash = nil
	i.VerificationExpiresAt = nil
	i.VerificationAttempts = 0
	return true, nil
}

func (r *memIdentityRepo) ReserveVerificationAttempt(_ context.Context, id string, limit int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.byID[id]
	if !ok || i.VerificationAttempts >= limit {
		return false, nil
	}
	i.VerificationAttempts++
	return true, nil
}

func (r *memIdentityRepo) UpdatePassword(_ context.Context, id, passwordHash string, at time.Time) error {
	return r.with(id, func(i *domain.Identity) {
		i.PasswordHash = passwordHash
		i.PasswordUpdatedAt = at
	})
}

func (r *memIdentityRepo) UpdateUsername(_ context.Context, id, username string) error {
	r.mu.Lock()
	for otherID, other := range r.byID {
		if otherID != id && other.Username == username {
			r.mu.Unlock()
			return domain.ErrDuplicateUsername
		}
	}
	r.mu.Unlock()
	return r.with(id, func(i *domain.Identity) { i.Username = username })
}

func (r *memIdentityRepo) UpdateAvatarPath(_ context.Context, id, path string) error {
	return r.with(id, func(i *domain.Identity) { i.AvatarPath = &path })
}

func (r *memIdentityRepo) TouchLogin(_ context.Context, id string, at time.Time) error {
	return r.with(id, func(i *domain.Identity) { i.LastLoginAt = &at })
}

type memSessionRepo struct {
	mu     sync.Mutex
	byHash map[string]*domain.SessionToken
	fails  error
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{byHash: map[string]*domain.SessionToken{}}
}

func (r *memSessionRepo) Create(_ context.Context, token *domain.SessionToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fails != nil {
		return r.fails
	}
	clone := *token
	r.byHash[token.TokenHash] = &clone
	return nil
}

func (r *memSessionRepo) FindByHash(_ context.Context, hash string) (*domain.SessionToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fails != nil {
		return nil, r.fails
	}
	token, ok := r.byHash[hash]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	clone := *token
	return &clone, nil
}

func (r *memSessionRepo) Revoke(_ context.Context, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fails != nil {
		return r.fails
	}
	token, ok := r.byHash[hash]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if token.Active {
		token.Active = false
		token.RevokedAt = &at
	}
	return nil
}

func (r *memSessionRepo) RevokeAllForIdentity(_ context.Context, identityID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, token := range r.byHash {
		if token.IdentityID == identityID && token.Active {
			token.Active = false
			token.RevokedAt = &at
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, token := range r.byHash {
		if !token.ExpiresAt.After(before) {
			delete(r.byHash, hash)
			n++
		}
	}
	return n, nil
}

type sentMail struct {
	kind  string
	email string
	value string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *recordingNotifier) SendVerificationEmail(_ context.Context, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{kind: "verification", email: email, value: code})
	return n.err
}

func (n *recordingNotifier) SendWelcomeEmail(_ context.Context, email, username string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{kind: "welcome", email: email, value: username})
	return n.err
}

// lastCode returns the most recent verification code mailed to email.
func (n *recordingNotifier) lastCode(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].kind == "verification" && n.sent[i].email == email {
			return n.sent[i].value
		}
	}
	return ""
}

// fakeClock is a settable time source shared by signer, registry and service.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
