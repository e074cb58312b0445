package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/phpdave11/gofpdf"

	"github.com/iliyamo/bus-seat-reservation/internal/booking"
	"github.com/iliyamo/bus-seat-reservation/internal/middleware"
	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
)

// TicketHandler serves read access to committed tickets: details of a
// single ticket, the caller's full history and a printable PDF
// receipt. All endpoints operate on the caller's own tickets only.
type TicketHandler struct {
	Trips  *repository.TripRepo
	Ledger *repository.LedgerRepo
}

func NewTicketHandler(trips *repository.TripRepo, ledger *repository.LedgerRepo) *TicketHandler {
	if trips == nil || ledger == nil {
		panic("nil repository passed to NewTicketHandler")
	}
	return &TicketHandler{Trips: trips, Ledger: ledger}
}

func parseTicketParam(c echo.Context) (uint32, bool) {
	t, err := strconv.ParseUint(c.Param("ticket"), 10, 32)
	if err != nil || t < model.TicketIDMin || t > model.TicketIDMax {
		return 0, false
	}
	return uint32(t), true
}

type ticketDetail struct {
	TicketID    uint32   `json:"ticket_id"`
	TripID      uint64   `json:"trip_id"`
	Plate       string   `json:"plate"`
	TravelDate  string   `json:"travel_date"`
	SeatNos     []uint32 `json:"seat_nos"`
	SeatCount   int      `json:"seat_count"`
	BookingDate string   `json:"booking_date"`
	AmountCents uint32   `json:"amount_cents"`
	Amount      string   `json:"amount"`
}

func toTicketDetail(e *model.LedgerEntry) ticketDetail {
	return ticketDetail{
		TicketID:    e.TicketID,
		TripID:      e.TripID,
		Plate:       e.Plate,
		TravelDate:  e.TravelDate,
		SeatNos:     e.SeatNos,
		SeatCount:   len(e.SeatNos),
		BookingDate: e.BookingDate,
		AmountCents: e.AmountCents,
		Amount:      booking.FormatCents(e.AmountCents),
	}
}

// Get handles GET /v1/tickets/:ticket. Unknown tickets and tickets
// owned by another user both return 404.
func (h *TicketHandler) Get(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ticketID, ok := parseTicketParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket number"})
	}
	e, err := h.Ledger.GetByTicketForUser(c.Request().Context(), ticketID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ticket": toTicketDetail(e)})
}

// ListMine handles GET /v1/my-tickets and returns the caller's active
// tickets, newest first. An empty array means no active bookings.
func (h *TicketHandler) ListMine(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	entries, err := h.Ledger.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load tickets"})
	}
	items := make([]ticketDetail, 0, len(entries))
	for i := range entries {
		items = append(items, toTicketDetail(&entries[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Receipt handles GET /v1/tickets/:ticket/receipt and streams a PDF
// receipt for the ticket.
func (h *TicketHandler) Receipt(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ticketID, ok := parseTicketParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket number"})
	}
	ctx := c.Request().Context()
	e, err := h.Ledger.GetByTicketForUser(ctx, ticketID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	var trip *model.Trip
	if t, err := h.Trips.GetByID(ctx, e.TripID); err == nil {
		trip = t
	}

	pdfBytes, err := buildReceiptPDF(e, trip)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to render receipt"})
	}
	c.Response().Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="receipt_%d.pdf"`, e.TicketID))
	return c.Blob(http.StatusOK, "application/pdf", pdfBytes)
}

func buildReceiptPDF(e *model.LedgerEntry, trip *model.Trip) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Bus Ticket Receipt", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "BUS TICKET RECEIPT")
	pdf.Ln(12)

	route := "-"
	departure := "-"
	if trip != nil {
		route = fmt.Sprintf("%s -> %s", trip.Source, trip.Destination)
		departure = trip.DepartureTime
	}

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Ticket No    : %d", e.TicketID),
		fmt.Sprintf("Passenger    : %s", e.Username),
		fmt.Sprintf("Route        : %s", route),
		fmt.Sprintf("Travel Date  : %s", e.TravelDate),
		fmt.Sprintf("Departure    : %s", departure),
		fmt.Sprintf("Bus Plate    : %s", e.Plate),
		fmt.Sprintf("Seats        : %s (%d)", repository.JoinSeatNos(e.SeatNos), len(e.SeatNos)),
		fmt.Sprintf("Booked On    : %s", e.BookingDate),
	}
	for _, line := range lines {
		pdf.Cell(0, 7, line)
		pdf.Ln(7)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Total Paid   : "+booking.FormatCents(e.AmountCents)+" (incl. 6% SST)")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Present this receipt together with a valid ID when boarding. Cancellations refund the full amount paid.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
