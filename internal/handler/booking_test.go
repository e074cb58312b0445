package handler

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/booking"
	"github.com/iliyamo/bus-seat-reservation/internal/payment"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
	"github.com/iliyamo/bus-seat-reservation/internal/store"
)

func newBookingHandler(t *testing.T) (*BookingHandler, sqlmock.Sqlmock, *booking.Registry, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	trips := repository.NewTripRepo(db)
	seats := repository.NewSeatRepo(db)
	holds := repository.NewSeatHoldRepo(db)
	ledger := repository.NewLedgerRepo(db)
	users := repository.NewUserRepo(db)
	routes := repository.NewFrequentRouteRepo(db)
	sync := store.New(db, t.TempDir(), trips, seats, ledger)
	registry := booking.NewRegistry(5 * time.Minute)
	h := NewBookingHandler(trips, seats, holds, ledger, users, routes, sync, registry, payment.NewSimulated())
	return h, mock, registry, func() { db.Close() }
}

func payContext(e *echo.Echo, bookingID, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings/"+bookingID+"/pay", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/bookings/:id/pay")
	c.SetParamNames("id")
	c.SetParamValues(bookingID)
	c.Set("user_id", float64(42))
	c.Set("username", "amir")
	return c, rec
}

// A declined charge must abort every leg of the transaction: both
// trips' holds removed, both trips' seats released, booking token
// spent. No ledger writes happen.
func TestPayDeclinedAbortsAllLegs(t *testing.T) {
	h, mock, registry, done := newBookingHandler(t)
	defer done()

	tr := registry.Create("tok-rt", 42)
	tr.Legs = []*booking.Leg{
		{TripID: 1, SeatNos: []uint32{5, 6}, Status: booking.LegProvisionallyReserved,
			Fare: booking.ComputeQuote(2, 5000)},
		{TripID: 2, SeatNos: []uint32{9}, Status: booking.LegProvisionallyReserved,
			Fare: booking.ComputeQuote(1, 5000)},
	}
	tr.Status = booking.StatusAwaitingPayment

	// Abort path: delete the holds, release seats per trip. Trip
	// iteration order is not deterministic, so match unordered.
	mock.MatchExpectationsInOrder(false)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT trip_id, seat_no FROM seat_holds WHERE booking_id").
		WithArgs("tok-rt").
		WillReturnRows(sqlmock.NewRows([]string{"trip_id", "seat_no"}).
			AddRow(1, 5).AddRow(1, 6).AddRow(2, 9))
	mock.ExpectExec("DELETE FROM seat_holds WHERE booking_id").
		WithArgs("tok-rt").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("UPDATE trip_seats SET status").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("UPDATE trips SET available_seats").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE trip_seats SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE trips SET available_seats").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	e := echo.New()
	c, rec := payContext(e, "tok-rt", `{"method":"card","card_number":"1111"}`)
	if err := h.Pay(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status: got %d want %d (%s)", rec.Code, http.StatusPaymentRequired, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "payment declined" {
		t.Fatalf("error: got %v", resp["error"])
	}
	if resp["status"] != string(booking.StatusAborted) {
		t.Fatalf("status field: got %v want %s", resp["status"], booking.StatusAborted)
	}

	// The booking token is spent either way.
	if _, ok := registry.Get("tok-rt", 42); ok {
		t.Fatalf("aborted transaction still in registry")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// An accepted charge commits the whole leg inside one transaction:
// trip locked, holds verified, ticket allocated, ledger entry and
// seats written, holds deleted. The response carries the ticket and
// the tax-inclusive amount.
func TestPayAcceptedCommitsLeg(t *testing.T) {
	h, mock, registry, done := newBookingHandler(t)
	defer done()
	h.Ledger.Draw = func() (uint32, error) { return 654321, nil }

	tr := registry.Create("tok-pay", 42)
	tr.Legs = []*booking.Leg{
		{TripID: 1, Plate: "WXY1234", Source: "Kuala Lumpur", Destination: "Penang",
			TravelDate: "2026-03-10", SeatNos: []uint32{1, 2, 3},
			Status: booking.LegProvisionallyReserved, Fare: booking.ComputeQuote(3, 5000)},
	}
	tr.Status = booking.StatusAwaitingPayment

	tripCols := []string{"id", "plate", "source", "destination", "travel_date", "departure_time",
		"arrival_time", "total_seats", "available_seats", "fare_cents", "created_at", "updated_at"}
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM trips WHERE id").
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows(tripCols).
			AddRow(1, "WXY1234", "Kuala Lumpur", "Penang", "2026-03-10", "08:30", "12:45", 40, 37, 5000, now, now))
	mock.ExpectQuery("SELECT trip_id, seat_no FROM seat_holds").
		WithArgs("tok-pay").
		WillReturnRows(sqlmock.NewRows([]string{"trip_id", "seat_no"}).
			AddRow(1, 1).AddRow(1, 2).AddRow(1, 3))
	mock.ExpectQuery("SELECT 1 FROM reservations WHERE ticket_id").
		WithArgs(uint32(654321)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO reservations").
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectExec("INSERT INTO reservation_seats").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("UPDATE trip_seats SET status").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery("SELECT trip_id, seat_no FROM seat_holds WHERE booking_id").
		WithArgs("tok-pay").
		WillReturnRows(sqlmock.NewRows([]string{"trip_id", "seat_no"}).
			AddRow(1, 1).AddRow(1, 2).AddRow(1, 3))
	mock.ExpectExec("DELETE FROM seat_holds WHERE booking_id").
		WithArgs("tok-pay").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	e := echo.New()
	c, rec := payContext(e, "tok-pay", `{"method":"card","card_number":"4111111111111111"}`)
	if err := h.Pay(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d want %d (%s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var resp struct {
		Status     string `json:"status"`
		PaymentRef string `json:"payment_ref"`
		Tickets    []struct {
			TicketID uint32 `json:"ticket_id"`
			Amount   string `json:"amount"`
		} `json:"tickets"`
		Total string `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != string(booking.StatusCommitted) {
		t.Fatalf("status field: got %s want %s", resp.Status, booking.StatusCommitted)
	}
	if !strings.HasPrefix(resp.PaymentRef, "pay_") {
		t.Fatalf("payment ref: got %q", resp.PaymentRef)
	}
	if len(resp.Tickets) != 1 || resp.Tickets[0].TicketID != 654321 {
		t.Fatalf("tickets: got %+v want one ticket 654321", resp.Tickets)
	}
	if resp.Tickets[0].Amount != "159.00" || resp.Total != "159.00" {
		t.Fatalf("amount: got %s / total %s want 159.00", resp.Tickets[0].Amount, resp.Total)
	}

	if _, ok := registry.Get("tok-pay", 42); ok {
		t.Fatalf("committed transaction still in registry")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// A second Pay on the same token, racing or repeated, is rejected
// without touching the gateway or the database.
func TestPaySecondSettlerIsRejected(t *testing.T) {
	h, _, registry, done := newBookingHandler(t)
	defer done()

	tr := registry.Create("tok-race", 42)
	tr.Legs = []*booking.Leg{
		{TripID: 1, SeatNos: []uint32{5}, Status: booking.LegProvisionallyReserved,
			Fare: booking.ComputeQuote(1, 5000)},
	}
	tr.Status = booking.StatusAwaitingPayment

	// First caller claims the settlement.
	if _, ok := registry.Claim("tok-race", 42); !ok {
		t.Fatalf("first claim should succeed")
	}

	e := echo.New()
	c, rec := payContext(e, "tok-race", `{"method":"card","card_number":"4111111111111111"}`)
	if err := h.Pay(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("status: got %d want %d (%s)", rec.Code, http.StatusConflict, rec.Body.String())
	}
}

func TestPayUnknownBookingIs404(t *testing.T) {
	h, _, _, done := newBookingHandler(t)
	defer done()

	e := echo.New()
	c, rec := payContext(e, "missing", `{"method":"card","card_number":"4111111111111111"}`)
	if err := h.Pay(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusNotFound)
	}
}

func TestCreateRejectsBadSeatSets(t *testing.T) {
	h, _, _, done := newBookingHandler(t)
	defer done()

	e := echo.New()
	for _, body := range []string{
		`{"legs":[]}`,
		`{"legs":[{"trip_id":1,"seat_nos":[]}]}`,
		`{"legs":[{"trip_id":1,"seat_nos":[4,4]}]}`,
		`{"legs":[{"trip_id":1,"seat_nos":[0]}]}`,
		`{"legs":[{"trip_id":1,"seat_nos":[1]},{"trip_id":2,"seat_nos":[1]},{"trip_id":3,"seat_nos":[1]}]}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/v1/bookings", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set("user_id", float64(42))
		if err := h.Create(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status got %d want 400", body, rec.Code)
		}
	}
}
