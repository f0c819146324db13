package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Jxel117/GastanGO-sub000/internal/adapters/http/middleware"
	"github.com/Jxel117/GastanGO-sub000/internal/domain"
	"github.com/Jxel117/GastanGO-sub000/internal/usecase"
	res "github.com/Jxel117/GastanGO-sub000/pkg/http"
)

type AuthHandler struct {
	service usecase.Service
}

func NewAuthHandler(s usecase.Service) *AuthHandler { return &AuthHandler{service: s} }

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type resendVerificationRequest struct {
	Email string `json:"email"`
}

type verifyTokenRequest struct {
	Token string `json:"token"`
}

type updateProfileRequest struct {
	Username string `json:"username"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type avatarRequest struct {
	Path string `json:"path"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	req := new(registerRequest)
	if err := c.Bind(req); err != nil {
		return badPayload(c)
	}
	identity, err := h.service.Register(c.Request().Context(), res.RequestID(c), req.Username, req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return res.JSON(c, http.StatusCreated, identity)
}

func (h *AuthHandler) Login(c echo.Context) error {
	req := new(loginRequest)
	if err := c.Bind(req); err != nil {
		return badPayload(c)
	}
	result, err := h.service.Login(c.Request().Context(), res.RequestID(c), req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return res.JSON(c, http.StatusOK, result)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.service.Logout(c.Request().Context(), res.RequestID(c), middleware.Token(c)); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	req := new(verifyEmailRequest)
	if err := c.Bind(req); err != nil {
		return badPayload(c)
	}
	if err := h.service.VerifyEmail(c.Request().Context(), res.RequestID(c), req.Email, req.Code); err != nil {
		return writeError(c, err)
	}
	return res.JSON(c, http.StatusOK, map[string]string{"status": "verified"})
}

func (h *AuthHandler) ResendVerification(c echo.Context) error {
	req := new(resendVerificationRequest)
	if err := c.Bind(req); err != nil {
		return badPayload(c)
	}
	if err := h.service.ResendVerification(c.Request().Context(), res.RequestID(c), req.Email); err != nil {
		return writeError(c, err)
	}
	return res.JSON(c, http.StatusAccepted, map[string]string{"message": "if the account exists a new code was sent"})
}

// VerifyToken lets other services check a token they were handed.
func (h *AuthHandler) VerifyToken(c echo.Context) error {
	req := new(verifyTokenRequest)
	if err := c.Bind(req); err != nil {
		return badPayload(c)
	}
	principal, err := h.service.Authorize(c.Request().Context(), req.Token)
	if err != nil {
		return writeError(c, err)
	}
	return res.JSON(c, http.StatusOK, principal)
}

func (h *AuthHandler) GetMe(c echo.Context) error {
	identity, err := h.service.GetMe(c.Request().Context(), middleware.IdentityID(c))
	if err != nil {
		return writeError(c, err)
	}
	return res.JSON(c, http.StatusOK, identity)
}

func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	req := new(updateProfileRequest)
	if err := c.Bind(req); err != nil {
		return badPayload(c)
	}
	identity, err := h.service.UpdateProfile(c.Request().Context(), res.RequestID(c), middleware.IdentityID(c), req.Username)
	if err != nil {
		return writeError(c, err)
	}
	return res.JSON(c, http.StatusOK, identity)
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	req := new(changePasswordRequest)
	if err := c.Bind(req); err != nil {
		return badPayload(c)
	}
	if err := h.service.ChangePassword(c.Request().Context(), res.RequestID(c), middleware.IdentityID(c), req.OldPassword, req.NewPassword); err != nil {
		return writeError(c, err)
	}
	return res.JSON(c, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) UpdateAvatar(c echo.Context) error {
	req := new(avatarRequest)
	if err := c.Bind(req); err != nil {
		return badPayload(c)
	}
	identity, err := h.service.UpdateAvatarPath(c.Request().Context(), res.RequestID(c), middleware.IdentityID(c), req.Path)
	if err != nil {
		return writeError(c, err)
	}
	return res.JSON(c, http.StatusOK, identity)
}

func badPayload(c echo.Context) error {
	return res.ErrorJSON(c, http.StatusBadRequest, "bad_request", "invalid payload", res.RequestID(c), nil)
}

// writeError is the only place error kinds become status codes.
func writeError(c echo.Context, err error) error {
	traceID := res.RequestID(c)
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return res.ErrorJSON(c, http.StatusBadRequest, "validation_failed", "validation failed", traceID, verr.Fields)
	case errors.Is(err, domain.ErrDuplicateEmail):
		return res.ErrorJSON(c, http.StatusConflict, "duplicate_email", domain.ErrDuplicateEmail.Error(), traceID, nil)
	case errors.Is(err, domain.ErrDuplicateUsername):
		return res.ErrorJSON(c, http.StatusConflict, "duplicate_username", domain.ErrDuplicateUsername.Error(), traceID, nil)
	case errors.Is(err, domain.ErrInvalidCredentials):
		return res.ErrorJSON(c, http.StatusUnauthorized, "invalid_credentials", domain.ErrInvalidCredentials.Error(), traceID, nil)
	case errors.Is(err, domain.ErrUnauthorized):
		return res.ErrorJSON(c, http.StatusUnauthorized, "unauthorized", "unauthorized", traceID, nil)
	case errors.Is(err, domain.ErrInvalidCode):
		return res.ErrorJSON(c, http.StatusBadRequest, "invalid_code", domain.ErrInvalidCode.Error(), traceID, nil)
	case errors.Is(err, domain.ErrNotFound):
		return res.ErrorJSON(c, http.StatusNotFound, "not_found", "not found", traceID, nil)
	default:
		return res.ErrorJSON(c, http.StatusInternalServerError, "internal_error", "internal server error", traceID, nil)
	}
}
