package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/handler"
	"github.com/iliyamo/bus-seat-reservation/internal/middleware"
)

// RegisterCustomer registers the customer-scoped endpoints under /v1.
// All routes require a valid JWT and the CUSTOMER role. The optional
// extra middleware (rate limiting) runs after authentication so the
// limiter can key on the user.
func RegisterCustomer(e *echo.Echo, jwtSecret string,
	a *handler.AuthHandler,
	b *handler.BookingHandler,
	cx *handler.CancellationHandler,
	t *handler.TicketHandler,
	r *handler.RouteHandler,
	extra ...echo.MiddlewareFunc) {

	mws := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("CUSTOMER"),
	}
	mws = append(mws, extra...)
	g := e.Group("/v1", mws...)

	g.GET("/me", a.Me)

	// Two-phase booking: hold seats, then one payment decision.
	g.POST("/bookings", b.Create)
	g.POST("/bookings/:id/pay", b.Pay)

	// Ticket history and details.
	g.GET("/my-tickets", t.ListMine)
	g.GET("/tickets/:ticket", t.Get)
	g.GET("/tickets/:ticket/receipt", t.Receipt)

	// Cancellation with confirmation gate (?confirm=true).
	g.DELETE("/tickets/:ticket", cx.Cancel)

	// Previously booked routes.
	g.GET("/my-routes", r.ListMine)
}
