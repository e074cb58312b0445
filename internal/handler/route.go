package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/middleware"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
)

// RouteHandler lists the routes a user has booked before, for
// one-tap rebooking in the client.
type RouteHandler struct {
	Routes *repository.FrequentRouteRepo
}

func NewRouteHandler(routes *repository.FrequentRouteRepo) *RouteHandler {
	if routes == nil {
		panic("nil repository passed to NewRouteHandler")
	}
	return &RouteHandler{Routes: routes}
}

// ListMine handles GET /v1/my-routes.
func (h *RouteHandler) ListMine(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	routes, err := h.Routes.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load routes"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": routes})
}
