package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Jxel117/GastanGO-sub000/internal/domain"
	"github.com/Jxel117/GastanGO-sub000/internal/usecase"
	res "github.com/Jxel117/GastanGO-sub000/pkg/http"
)

// Keys under which the middleware stores the caller in echo.Context.
const (
	ContextIdentityID = "identity_id"
	ContextRoles      = "roles"
	ContextToken      = "token"
)

type Authorizer interface {
	Authorize(ctx context.Context, token string) (*usecase.Principal, error)
}

// AuthMiddleware accepts only "Authorization: Bearer <token>". Every rejection
// gets the same body so callers cannot tell missing, expired and revoked apart.
type AuthMiddleware struct {
	auth Authorizer
}

func NewAuthMiddleware(auth Authorizer) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

func (m *AuthMiddleware) Handler(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := BearerToken(c.Request())
		if !ok {
			return unauthorized(c)
		}
		principal, err := m.auth.Authorize(c.Request().Context(), token)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				return unauthorized(c)
			}
			return res.ErrorJSON(c, http.StatusInternalServerError, "internal_error", "internal server error", res.RequestID(c), nil)
		}
		c.Set(ContextIdentityID, principal.IdentityID)
		c.Set(ContextRoles, principal.Roles)
		c.Set(ContextToken, token)
		return next(c)
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get(echo.HeaderAuthorization)
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func IdentityID(c echo.Context) string {
	id, _ := c.Get(ContextIdentityID).(string)
	return id
}

func Token(c echo.Context) string {
	token, _ := c.Get(ContextToken).(string)
	return token
}

func unauthorized(c echo.Context) error {
	return res.ErrorJSON(c, http.StatusUnauthorized, "unauthorized", "unauthorized", res.RequestID(c), nil)
}
