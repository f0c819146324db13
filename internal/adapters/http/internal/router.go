package internalhttp

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// Register attaches liveness and readiness endpoints under provided group.
func Register(g *echo.Group, checks ...Check) {
	g.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	g.GET("/ready", func(c echo.Context) error {
		for _, check := range checks {
			if err := check(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}
