// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/handler"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints. Register and
// login live under /v1/auth and need no token; /v1/me requires one
// and is wired in RegisterCustomer's group instead, since the whole
// protected surface shares a single middleware chain.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
}

// RegisterPublic registers the unauthenticated trip-browse endpoints.
// The caller may pass cache middleware (Redis response cache) that
// applies to these GET routes only; booking and ticket endpoints are
// never cached.
func RegisterPublic(e *echo.Echo, t *handler.TripHandler, cache ...echo.MiddlewareFunc) {
	g := e.Group("/v1", cache...)
	g.GET("/trips", t.Search)
	g.GET("/trips/:id", t.Get)
	g.GET("/trips/:id/seats", t.Availability)
}
