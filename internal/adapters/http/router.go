package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Jxel117/GastanGO-sub000/config"
	v1 "github.com/Jxel117/GastanGO-sub000/internal/adapters/http/api/v1"
	internalhttp "github.com/Jxel117/GastanGO-sub000/internal/adapters/http/internal"
	pkglog "github.com/Jxel117/GastanGO-sub000/pkg/log"
)

type Router struct {
	cfg       *config.Config
	logger    pkglog.Logger
	apiRouter *v1.Router
	checks    []internalhttp.Check
}

func NewRouter(cfg *config.Config, logger pkglog.Logger, apiRouter *v1.Router, checks ...internalhttp.Check) *Router {
	return &Router{cfg: cfg, logger: logger, apiRouter: apiRouter, checks: checks}
}

func (r *Router) Setup(e *echo.Echo) {
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			r.logger.Info().
				Str("trace_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))

	internalhttp.Register(e.Group(""), r.checks...)
	apiGroup := e.Group(r.cfg.HTTPBasePath)
	r.apiRouter.Register(apiGroup)
}
