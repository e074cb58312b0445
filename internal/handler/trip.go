package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
)

// TripHandler exposes the public trip catalog: route search and
// per-trip seat availability. These endpoints require no
// authentication so travellers can browse before registering, and the
// GET responses sit behind the Redis response cache.
type TripHandler struct {
	Trips *repository.TripRepo
	Seats *repository.SeatRepo
}

func NewTripHandler(trips *repository.TripRepo, seats *repository.SeatRepo) *TripHandler {
	if trips == nil || seats == nil {
		panic("nil repository passed to NewTripHandler")
	}
	return &TripHandler{Trips: trips, Seats: seats}
}

type tripView struct {
	ID             uint64 `json:"id"`
	Plate          string `json:"plate"`
	Source         string `json:"source"`
	Destination    string `json:"destination"`
	TravelDate     string `json:"travel_date"`
	DepartureTime  string `json:"departure_time"`
	ArrivalTime    string `json:"arrival_time"`
	TotalSeats     uint32 `json:"total_seats"`
	AvailableSeats uint32 `json:"available_seats"`
	FareCents      uint32 `json:"fare_cents"`
}

func toTripView(t *model.Trip) tripView {
	return tripView{
		ID:             t.ID,
		Plate:          t.Plate,
		Source:         t.Source,
		Destination:    t.Destination,
		TravelDate:     t.TravelDate,
		DepartureTime:  t.DepartureTime,
		ArrivalTime:    t.ArrivalTime,
		TotalSeats:     t.TotalSeats,
		AvailableSeats: t.AvailableSeats,
		FareCents:      t.FareCents,
	}
}

func toTripViews(trips []model.Trip) []tripView {
	out := make([]tripView, 0, len(trips))
	for i := range trips {
		out = append(out, toTripView(&trips[i]))
	}
	return out
}

// Search handles GET /v1/trips. Query parameters source, destination
// and date filter the catalog; empty filters match everything. With
// round_trip=true the handler additionally searches the reverse
// direction (optionally on return_date) so a traveller planning both
// legs gets them in one response.
func (h *TripHandler) Search(c echo.Context) error {
	source := strings.TrimSpace(c.QueryParam("source"))
	destination := strings.TrimSpace(c.QueryParam("destination"))
	date := strings.TrimSpace(c.QueryParam("date"))

	ctx := c.Request().Context()
	outbound, err := h.Trips.Search(ctx, source, destination, date)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "search failed"})
	}

	roundTrip := strings.EqualFold(c.QueryParam("round_trip"), "true")
	if !roundTrip {
		return c.JSON(http.StatusOK, echo.Map{"outbound": toTripViews(outbound)})
	}
	if source == "" || destination == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "round_trip search requires source and destination"})
	}
	returnDate := strings.TrimSpace(c.QueryParam("return_date"))
	inbound, err := h.Trips.Search(ctx, destination, source, returnDate)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "search failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"outbound": toTripViews(outbound),
		"return":   toTripViews(inbound),
	})
}

// Get handles GET /v1/trips/:id and returns a single trip.
func (h *TripHandler) Get(c echo.Context) error {
	tripID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || tripID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid trip id"})
	}
	t, err := h.Trips.GetByID(c.Request().Context(), tripID)
	if err != nil {
		if errors.Is(err, repository.ErrTripNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "trip not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"trip": toTripView(t)})
}

// Availability handles GET /v1/trips/:id/seats. It returns the full
// occupancy map of the trip so clients can render the seat picker.
// HELD seats may free up when their hold expires; clients should
// treat anything but FREE as taken.
func (h *TripHandler) Availability(c echo.Context) error {
	tripID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || tripID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid trip id"})
	}
	ctx := c.Request().Context()
	t, err := h.Trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, repository.ErrTripNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "trip not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	seats, err := h.Seats.Availability(ctx, tripID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load seat availability"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"trip_id":         t.ID,
		"total_seats":     t.TotalSeats,
		"available_seats": t.AvailableSeats,
		"seats":           seats,
	})
}
