package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/Jxel117/GastanGO-sub000/config"
	"github.com/Jxel117/GastanGO-sub000/internal/domain"
	"github.com/Jxel117/GastanGO-sub000/internal/tokenverify"
	pkglog "github.com/Jxel117/GastanGO-sub000/pkg/log"
)

const TokenTypeBearer = "Bearer"

type Service interface {
	Register(ctx context.Context, traceID, username, email, password string) (*domain.Identity, error)
	Login(ctx context.Context, traceID, email, password string) (*LoginResult, error)
	Authorize(ctx context.Context, token string) (*Principal, error)
	Logout(ctx context.Context, traceID, token string) error
	VerifyEmail(ctx context.Context, traceID, email, code string) error
	ResendVerification(ctx context.Context, traceID, email string) error
	GetMe(ctx context.Context, identityID string) (*domain.Identity, error)
	UpdateProfile(ctx context.Context, traceID, identityID, username string) (*domain.Identity, error)
	ChangePassword(ctx context.Context, traceID, identityID, oldPassword, newPassword string) error
	UpdateAvatarPath(ctx context.Context, traceID, identityID, path string) (*domain.Identity, error)
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// Principal is what a protected handler learns about its caller.
type Principal struct {
	IdentityID string   `json:"identity_id"`
	Roles      []string `json:"roles"`
}

type LoginResult struct {
	Token     string           `json:"token"`
	TokenType string           `json:"token_type"`
	ExpiresAt time.Time        `json:"expires_at"`
	Identity  *domain.Identity `json:"user"`
}

type authService struct {
	cfg         *config.Config
	logger      pkglog.Logger
	credentials *CredentialStore
	sessions    *RevocationRegistry
	signer      JWTSigner
	notifier    Notifier
	now         func() time.Time
}

type ServiceOption func(*authService)

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *authService) { s.now = now }
}

func NewAuthService(cfg *config.Config, logger pkglog.Logger, credentials *CredentialStore, sessions *RevocationRegistry, signer JWTSigner, notifier Notifier, opts ...ServiceOption) Service {
	s := &authService{cfg: cfg, logger: logger, credentials: credentials, sessions: sessions, signer: signer, notifier: notifier, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *authService) Register(ctx context.Context, traceID, username, email, password string) (*domain.Identity, error) {
	code, err := generateCode()
	if err != nil {
		return nil, s.unexpected(traceID, "register", err)
	}
	identity, err := s.credentials.Create(ctx, username, email, password, WithVerificationCode(code, s.now().Add(s.cfg.VerifyCodeTTL)))
	if err != nil {
		return nil, s.translate(traceID, "register", err)
	}
	logger := s.log(traceID, "register")
	logger.Info().Str("identity_id", identity.ID).Msg("identity registered")

	if err := s.notifier.SendVerificationEmail(ctx, identity.Email, code); err != nil {
		logger.Warn().Err(err).Str("identity_id", identity.ID).Msg("verification email not sent")
	}
	if err := s.notifier.SendWelcomeEmail(ctx, identity.Email, identity.Username); err != nil {
		logger.Warn().Err(err).Str("identity_id", identity.ID).Msg("welcome email not sent")
	}
	return identity, nil
}

// Login fails with the same error whether the email is unknown or the
// password is wrong.
func (s *authService) Login(ctx context.Context, traceID, email, password string) (*LoginResult, error) {
	identity, err := s.credentials.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.credentials.VerifyPassword(nil, password)
		return nil, domain.ErrInvalidCredentials
	case err != nil:
		return nil, s.unexpected(traceID, "login", err)
	}
	logger := s.log(traceID, "login")
	if !s.credentials.VerifyPassword(identity, password) {
		logger.Debug().Str("identity_id", identity.ID).Msg("password mismatch")
		return nil, domain.ErrInvalidCredentials
	}
	if s.credentials.NeedsRehash(identity) {
		if err := s.credentials.Rehash(ctx, identity, password); err != nil {
			logger.Warn().Err(err).Str("identity_id", identity.ID).Msg("password rehash failed")
		}
	}

	token, expiresAt, err := s.signer.Issue(identity, s.cfg.SessionTTL)
	if err != nil {
		return nil, s.unexpected(traceID, "login", err)
	}
	if err := s.sessions.Record(ctx, identity.ID, token, expiresAt); err != nil {
		return nil, s.unexpected(traceID, "login", err)
	}
	if err := s.credentials.TouchLogin(ctx, identity.ID); err != nil {
		logger.Warn().Err(err).Str("identity_id", identity.ID).Msg("last login not updated")
	} else {
		now := s.now().UTC()
		identity.LastLoginAt = &now
	}
	logger.Info().Str("identity_id", identity.ID).Msg("login")
	return &LoginResult{Token: token, TokenType: TokenTypeBearer, ExpiresAt: expiresAt, Identity: identity}, nil
}

// Authorize is the single gate for protected operations: a valid signature and
// expiry are not enough, the session must also still be active.
func (s *authService) Authorize(ctx context.Context, token string) (*Principal, error) {
	logger := s.log("", "authorize")
	result, err := tokenverify.Verify(s.signer, token, s.now)
	if err != nil {
		logger.Debug().Err(err).Msg("token rejected")
		return nil, domain.ErrUnauthorized
	}
	active, err := s.sessions.IsActive(ctx, token)
	if err != nil {
		return nil, s.unexpected("", "authorize", err)
	}
	if !active {
		logger.Debug().Str("identity_id", result.IdentityID).Msg("session inactive")
		return nil, domain.ErrUnauthorized
	}
	return &Principal{IdentityID: result.IdentityID, Roles: result.Roles}, nil
}

// Logout succeeds for unknown, expired and already revoked tokens alike.
func (s *authService) Logout(ctx context.Context, traceID, token string) error {
	err := s.sessions.Revoke(ctx, token)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return s.unexpected(traceID, "logout", err)
	}
	logger := s.log(traceID, "logout")
	logger.Info().Msg("logout")
	return nil
}

func (s *authService) VerifyEmail(ctx context.Context, traceID, email, code string) error {
	identity, err := s.credentials.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.ErrInvalidCode
	case err != nil:
		return s.unexpected(traceID, "verify_email", err)
	}
	if identity.IsVerified {
		return domain.ErrInvalidCode
	}
	logger := s.log(traceID, "verify_email")
	// Every guess, right or wrong, takes an attempt before the code is compared.
	reserved, err := s.credentials.ReserveVerificationAttempt(ctx, identity.ID, s.cfg.VerifyMaxAttempts)
	if err != nil {
		return s.translate(traceID, "verify_email", err)
	}
	if !reserved {
		logger.Warn().Str("identity_id", identity.ID).Msg("verification locked")
		return domain.ErrInvalidCode
	}
	if !s.credentials.CodeMatches(identity, code) {
		return domain.ErrInvalidCode
	}
	if err := s.credentials.MarkVerified(ctx, identity.ID, code); err != nil {
		return s.translate(traceID, "verify_email", err)
	}
	logger.Info().Str("identity_id", identity.ID).Msg("email verified")
	return nil
}

// ResendVerification replaces the pending code. Unknown and already verified
// emails are silently accepted.
func (s *authService) ResendVerification(ctx context.Context, traceID, email string) error {
	identity, err := s.credentials.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return s.unexpected(traceID, "resend_verification", err)
	}
	if identity.IsVerified {
		return nil
	}
	code, err := generateCode()
	if err != nil {
		return s.unexpected(traceID, "resend_verification", err)
	}
	if err := s.credentials.SetVerificationCode(ctx, identity.ID, code, s.now().Add(s.cfg.VerifyCodeTTL)); err != nil {
		return s.translate(traceID, "resend_verification", err)
	}
	if err := s.notifier.SendVerificationEmail(ctx, identity.Email, code); err != nil {
		logger := s.log(traceID, "resend_verification")
		logger.Warn().Err(err).Str("identity_id", identity.ID).Msg("verification email not sent")
	}
	return nil
}

func (s *authService) GetMe(ctx context.Context, identityID string) (*domain.Identity, error) {
	identity, err := s.credentials.FindByID(ctx, identityID)
	if err != nil {
		return nil, s.translate("", "get_me", err)
	}
	return identity, nil
}

func (s *authService) UpdateProfile(ctx context.Context, traceID, identityID, username string) (*domain.Identity, error) {
	if err := s.credentials.UpdateUsername(ctx, identityID, username); err != nil {
		return nil, s.translate(traceID, "update_profile", err)
	}
	logger := s.log(traceID, "update_profile")
	logger.Info().Str("identity_id", identityID).Msg("profile updated")
	return s.GetMe(ctx, identityID)
}

// ChangePassword ends every session of the identity on success.
func (s *authService) ChangePassword(ctx context.Context, traceID, identityID, oldPassword, newPassword string) error {
	identity, err := s.credentials.FindByID(ctx, identityID)
	if err != nil {
		return s.translate(traceID, "change_password", err)
	}
	if !s.credentials.VerifyPassword(identity, oldPassword) {
		return domain.ErrInvalidCredentials
	}
	if err := s.credentials.UpdatePassword(ctx, identityID, newPassword); err != nil {
		return s.translate(traceID, "change_password", err)
	}
	revoked, err := s.sessions.RevokeAll(context.WithoutCancel(ctx), identityID)
	if err != nil {
		return s.unexpected(traceID, "change_password", err)
	}
	logger := s.log(traceID, "change_password")
	logger.Info().Str("identity_id", identityID).Int64("sessions_revoked", revoked).Msg("password changed")
	return nil
}

func (s *authService) UpdateAvatarPath(ctx context.Context, traceID, identityID, path string) (*domain.Identity, error) {
	if err := s.credentials.UpdateAvatarPath(ctx, identityID, path); err != nil {
		return nil, s.translate(traceID, "update_avatar", err)
	}
	logger := s.log(traceID, "update_avatar")
	logger.Info().Str("identity_id", identityID).Msg("avatar updated")
	return s.GetMe(ctx, identityID)
}

func (s *authService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.PurgeExpired(ctx)
	if err != nil {
		return 0, s.unexpected("", "purge_sessions", err)
	}
	if n > 0 {
		logger := s.log("", "purge_sessions")
		logger.Info().Int64("purged", n).Msg("expired sessions purged")
	}
	return n, nil
}

// translate passes known kinds through and hides everything else.
func (s *authService) translate(traceID, op string, err error) error {
	if isDomainError(err) {
		return err
	}
	return s.unexpected(traceID, op, err)
}

func (s *authService) unexpected(traceID, op string, err error) error {
	logger := s.log(traceID, op)
	logger.Error().Err(err).Msg("operation failed")
	return domain.ErrUnexpected
}

// log tags the service logger with the operation and, when known, the trace id.
func (s *authService) log(traceID, op string) pkglog.Logger {
	fields := pkglog.Fields{"op": op}
	if traceID != "" {
		fields["trace_id"] = traceID
	}
	return pkglog.With(s.logger, fields)
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
