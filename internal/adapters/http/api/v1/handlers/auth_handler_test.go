package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/Jxel117/GastanGO-sub000/internal/adapters/http/api/v1"
	"github.com/Jxel117/GastanGO-sub000/internal/adapters/http/api/v1/handlers"
	"github.com/Jxel117/GastanGO-sub000/internal/adapters/http/middleware"
	"github.com/Jxel117/GastanGO-sub000/internal/domain"
	"github.com/Jxel117/GastanGO-sub000/internal/usecase"
	res "github.com/Jxel117/GastanGO-sub000/pkg/http"
)

const validToken = "good-token"

// stubService answers Authorize for validToken and returns err from every
// other method when set.
type stubService struct {
	err         error
	loggedOut   string
	identity    *domain.Identity
	lastRequest []string
}

func (s *stubService) Register(_ context.Context, _, username, email, password string) (*domain.Identity, error) {
	s.lastRequest = []string{username, email, password}
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Identity{ID: "id-1", Username: username, Email: email, PasswordHash: "secret-hash", Roles: []string{"user"}}, nil
}

func (s *stubService) Login(_ context.Context, _, email, _ string) (*usecase.LoginResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &usecase.LoginResult{Token: validToken, TokenType: usecase.TokenTypeBearer, ExpiresAt: time.Now().Add(time.Hour), Identity: &domain.Identity{ID: "id-1", Email: email}}, nil
}

func (s *stubService) Authorize(_ context.Context, token string) (*usecase.Principal, error) {
	if token != validToken {
		return nil, domain.ErrUnauthorized
	}
	return &usecase.Principal{IdentityID: "id-1", Roles: []string{"user"}}, nil
}

func (s *stubService) Logout(_ context.Context, _, token string) error {
	s.loggedOut = token
	return s.err
}

func (s *stubService) VerifyEmail(_ context.Context, _, email, code string) error {
	s.lastRequest = []string{email, code}
	return s.err
}

func (s *stubService) ResendVerification(_ context.Context, _, _ string) error { return s.err }

func (s *stubService) GetMe(_ context.Context, identityID string) (*domain.Identity, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Identity{ID: identityID, Username: "alice"}, nil
}

func (s *stubService) UpdateProfile(_ context.Context, _, identityID, username string) (*domain.Identity, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Identity{ID: identityID, Username: username}, nil
}

func (s *stubService) ChangePassword(_ context.Context, _, identityID, oldPassword, newPassword string) error {
	s.lastRequest = []string{identityID, oldPassword, newPassword}
	return s.err
}

func (s *stubService) UpdateAvatarPath(_ context.Context, _, identityID, path string) (*domain.Identity, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Identity{ID: identityID, AvatarPath: &path}, nil
}

func (s *stubService) PurgeExpiredSessions(context.Context) (int64, error) { return 0, s.err }

func newServer(svc *stubService) *echo.Echo {
	e := echo.New()
	router := v1.NewRouter(handlers.NewAuthHandler(svc), middleware.NewAuthMiddleware(svc).Handler)
	router.Register(e.Group("/api/v1"))
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) res.ErrorResponse {
	t.Helper()
	var body res.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRegisterCreated(t *testing.T) {
	svc := &stubService{}
	rec := do(t, newServer(svc), http.MethodPost, "/api/v1/auth/register", `{"username":"alice","email":"alice@example.com","password":"Passw0rd!"}`, "")

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"alice", "alice@example.com", "Passw0rd!"}, svc.lastRequest)
	assert.NotContains(t, rec.Body.String(), "secret-hash")
	assert.NotContains(t, rec.Body.String(), "Passw0rd!")
}

func TestRegisterBadPayload(t *testing.T) {
	rec := do(t, newServer(&stubService{}), http.MethodPost, "/api/v1/auth/register", `{"username":`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decodeError(t, rec).Error.Code)
}

func TestErrorMapping(t *testing.T) {
	verr := domain.NewValidationError()
	verr.Add("email", "is invalid")

	tests := []struct {
		err    error
		status int
		code   string
	}{
		{err: verr, status: http.StatusBadRequest, code: "validation_failed"},
		{err: domain.ErrDuplicateEmail, status: http.StatusConflict, code: "duplicate_email"},
		{err: domain.ErrDuplicateUsername, status: http.StatusConflict, code: "duplicate_username"},
		{err: domain.ErrInvalidCredentials, status: http.StatusUnauthorized, code: "invalid_credentials"},
		{err: domain.ErrInvalidCode, status: http.StatusBadRequest, code: "invalid_code"},
		{err: domain.ErrNotFound, status: http.StatusNotFound, code: "not_found"},
		{err: domain.ErrUnexpected, status: http.StatusInternalServerError, code: "internal_error"},
		{err: errors.New("pq: something leaked"), status: http.StatusInternalServerError, code: "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := do(t, newServer(&stubService{err: tt.err}), http.MethodPost, "/api/v1/auth/register", `{"username":"alice","email":"a@b.co","password":"x"}`, "")
			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.NotContains(t, rec.Body.String(), "leaked")
		})
	}
}

func TestValidationDetails(t *testing.T) {
	verr := domain.NewValidationError()
	verr.Add("email", "is invalid")
	rec := do(t, newServer(&stubService{err: verr}), http.MethodPost, "/api/v1/auth/register", `{}`, "")

	var body struct {
		Error struct {
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "is invalid", body.Error.Details["email"])
}

func TestLoginReturnsToken(t *testing.T) {
	rec := do(t, newServer(&stubService{}), http.MethodPost, "/api/v1/auth/login", `{"email":"alice@example.com","password":"Passw0rd!"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data usecase.LoginResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, validToken, body.Data.Token)
	assert.Equal(t, "Bearer", body.Data.TokenType)
}

func TestLogoutRequiresBearer(t *testing.T) {
	svc := &stubService{}
	e := newServer(svc)

	rec := do(t, e, http.MethodPost, "/api/v1/auth/logout", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, svc.loggedOut)

	rec = do(t, e, http.MethodPost, "/api/v1/auth/logout", "", validToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, validToken, svc.loggedOut)
}

func TestVerifyTokenEndpoint(t *testing.T) {
	e := newServer(&stubService{})
	rec := do(t, e, http.MethodPost, "/api/v1/auth/verify", `{"token":"good-token"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"identity_id":"id-1"`)

	rec = do(t, e, http.MethodPost, "/api/v1/auth/verify", `{"token":"revoked"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Error.Code)
}

func TestVerifyEmailAndResend(t *testing.T) {
	svc := &stubService{}
	e := newServer(svc)
	rec := do(t, e, http.MethodPost, "/api/v1/auth/verify-email", `{"email":"alice@example.com","code":"123456"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"alice@example.com", "123456"}, svc.lastRequest)

	rec = do(t, e, http.MethodPost, "/api/v1/auth/verify-email/resend", `{"email":"alice@example.com"}`, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestUsersMe(t *testing.T) {
	svc := &stubService{}
	e := newServer(svc)

	rec := do(t, e, http.MethodGet, "/api/v1/users/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, e, http.MethodGet, "/api/v1/users/me", "", validToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"id-1"`)

	rec = do(t, e, http.MethodPatch, "/api/v1/users/me", `{"username":"alice_w"}`, validToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice_w"`)

	rec = do(t, e, http.MethodPost, "/api/v1/users/me/password", `{"old_password":"a","new_password":"b"}`, validToken)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"id-1", "a", "b"}, svc.lastRequest)

	rec = do(t, e, http.MethodPut, "/api/v1/users/me/avatar", `{"path":"avatars/a.png"}`, validToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"avatar_path":"avatars/a.png"`)
}
