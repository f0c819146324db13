package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/Jxel117/GastanGO-sub000/internal/adapters/http/api/v1/handlers"
)

type Router struct {
	handlers *handlers.AuthHandler
	authMW   echo.MiddlewareFunc
}

func NewRouter(h *handlers.AuthHandler, authMW echo.MiddlewareFunc) *Router {
	return &Router{handlers: h, authMW: authMW}
}

func (r *Router) Register(g *echo.Group) {
	auth := g.Group("/auth")
	auth.POST("/register", r.handlers.Register)
	auth.POST("/login", r.handlers.Login)
	auth.POST("/verify-email", r.handlers.VerifyEmail)
	auth.POST("/verify-email/resend", r.handlers.ResendVerification)
	auth.POST("/verify", r.handlers.VerifyToken)
	auth.POST("/logout", r.handlers.Logout, r.authMW)

	me := g.Group("/users/me", r.authMW)
	me.GET("", r.handlers.GetMe)
	me.PATCH("", r.handlers.UpdateProfile)
	me.POST("/password", r.handlers.ChangePassword)
	me.PUT("/avatar", r.handlers.UpdateAvatar)
}
