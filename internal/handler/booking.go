package handler

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/booking"
	"github.com/iliyamo/bus-seat-reservation/internal/middleware"
	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/payment"
	"github.com/iliyamo/bus-seat-reservation/internal/queue"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
	queue_publisher "github.com/iliyamo/bus-seat-reservation/internal/service"
	"github.com/iliyamo/bus-seat-reservation/internal/store"
)

// BookingHandler drives the two-phase booking flow: POST /v1/bookings
// places provisional holds for one or two legs and quotes the total,
// POST /v1/bookings/:id/pay settles the whole transaction with a
// single payment decision. Either every leg becomes a ticket or every
// hold is released; there is no per-leg settlement.
type BookingHandler struct {
	Trips    *repository.TripRepo
	Seats    *repository.SeatRepo
	Holds    *repository.SeatHoldRepo
	Ledger   *repository.LedgerRepo
	Users    *repository.UserRepo
	Routes   *repository.FrequentRouteRepo
	Sync     *store.Synchronizer
	Registry *booking.Registry
	Gateway  payment.Gateway
}

func NewBookingHandler(trips *repository.TripRepo, seats *repository.SeatRepo, holds *repository.SeatHoldRepo,
	ledger *repository.LedgerRepo, users *repository.UserRepo, routes *repository.FrequentRouteRepo,
	sync *store.Synchronizer, registry *booking.Registry, gw payment.Gateway) *BookingHandler {
	if trips == nil || seats == nil || holds == nil || ledger == nil || sync == nil || registry == nil || gw == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{
		Trips: trips, Seats: seats, Holds: holds, Ledger: ledger,
		Users: users, Routes: routes, Sync: sync, Registry: registry, Gateway: gw,
	}
}

// ----- DTOs -----

type legReq struct {
	TripID  uint64   `json:"trip_id"`
	SeatNos []uint32 `json:"seat_nos"`
}
type createBookingReq struct {
	Legs []legReq `json:"legs"`
}

type notifyReq struct {
	Kind    string `json:"kind"` // "email" | "sms"
	Address string `json:"address"`
}
type payReq struct {
	Method     string    `json:"method"` // "card" | "wallet"
	CardNumber string    `json:"card_number,omitempty"`
	Wallet     string    `json:"wallet,omitempty"`
	Notify     notifyReq `json:"notify"`
}

type ticketPart struct {
	TicketID    uint32   `json:"ticket_id"`
	TripID      uint64   `json:"trip_id"`
	Plate       string   `json:"plate"`
	TravelDate  string   `json:"travel_date"`
	SeatNos     []uint32 `json:"seat_nos"`
	AmountCents uint32   `json:"amount_cents"`
	Amount      string   `json:"amount"`
}

// Create handles POST /v1/bookings. It validates the requested legs,
// provisionally reserves every seat (status HELD plus a seat_holds
// row carrying the booking token) in one database transaction, and
// returns the quoted fares. The booking then awaits exactly one call
// to Pay before the hold TTL runs out.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(req.Legs) == 0 || len(req.Legs) > booking.MaxLegs {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "a booking needs 1 or 2 legs"})
	}

	// Validate seat sets locally before touching the inventory.
	normalized := make([][]uint32, len(req.Legs))
	for i, leg := range req.Legs {
		if leg.TripID == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid trip id"})
		}
		nos, err := booking.NormalizeSeats(leg.SeatNos)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		normalized[i] = nos
	}

	bookingID, err := repository.NewBookingID()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create booking token"})
	}

	ctx := c.Request().Context()
	expiresAt := time.Now().UTC().Add(h.Registry.TTL())
	legs := make([]*booking.Leg, 0, len(req.Legs))

	err = h.Sync.WithinTx(ctx, func(tx *sql.Tx) error {
		for i, lr := range req.Legs {
			// Lazily reclaim lapsed holds on the trip first, so seats
			// from abandoned bookings count as FREE again.
			expired, err := h.Holds.ExpireHoldsTx(ctx, tx, lr.TripID)
			if err != nil {
				return err
			}
			if len(expired) > 0 {
				if _, err := h.Seats.ReleaseTx(ctx, tx, lr.TripID, expired); err != nil {
					return err
				}
			}
			trip, err := h.Trips.GetForUpdateTx(ctx, tx, lr.TripID)
			if err != nil {
				return err
			}
			if err := h.Seats.ReserveTx(ctx, tx, trip, normalized[i], model.SeatHeld); err != nil {
				return err
			}
			if err := h.Holds.CreateMultipleTx(ctx, tx,
				repository.BuildHolds(userID, trip.ID, normalized[i], bookingID, expiresAt)); err != nil {
				return err
			}
			legs = append(legs, &booking.Leg{
				TripID:      trip.ID,
				Plate:       trip.Plate,
				Source:      trip.Source,
				Destination: trip.Destination,
				TravelDate:  trip.TravelDate,
				SeatNos:     normalized[i],
				Status:      booking.LegProvisionallyReserved,
				Fare:        booking.ComputeQuote(len(normalized[i]), trip.FareCents),
			})
		}
		return nil
	})
	if err != nil {
		return bookingError(c, err)
	}

	t := h.Registry.Create(bookingID, userID)
	t.Legs = legs
	t.Status = booking.StatusAwaitingPayment
	t.ExpiresAt = expiresAt

	if err := h.Sync.Flush(ctx); err != nil {
		log.Printf("booking: snapshot flush after hold failed: %v", err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"booking_id":  t.ID,
		"status":      t.Status,
		"legs":        t.Legs,
		"total_cents": t.TotalCents(),
		"total":       booking.FormatCents(t.TotalCents()),
		"expires_at":  t.ExpiresAt.Format(time.RFC3339),
	})
}

// errHoldsLapsed signals that the provisional holds disappeared (or
// partially expired) between Create and Pay.
var errHoldsLapsed = errors.New("provisional holds no longer intact")

// Pay handles POST /v1/bookings/:id/pay, the single payment decision
// of a booking transaction. An accepted charge commits every leg:
// ticket numbers are allocated, ledger entries written and held seats
// promoted to RESERVED, all in one transaction. A declined charge (or
// lapsed holds) aborts every leg and releases the seats. Either way
// the booking token is spent.
func (h *BookingHandler) Pay(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID := c.Param("id")
	// Claim is the settlement gate: of any concurrent Pay calls on the
	// same token, exactly one proceeds past this point.
	t, ok := h.Registry.Claim(bookingID, userID)
	if !ok {
		if _, pending := h.Registry.Get(bookingID, userID); pending {
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not awaiting payment"})
		}
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found or expired"})
	}

	var req payReq
	if err := c.Bind(&req); err != nil {
		h.Registry.Unclaim(t.ID)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx := c.Request().Context()
	decision, err := h.Gateway.Charge(ctx, payment.Request{
		AmountCents: t.TotalCents(),
		Method:      req.Method,
		CardNumber:  req.CardNumber,
		Wallet:      req.Wallet,
	})
	if err != nil {
		h.Registry.Unclaim(t.ID)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "payment gateway error"})
	}
	if !decision.Accepted {
		if err := h.abort(ctx, t); err != nil {
			log.Printf("booking %s: abort after decline failed: %v", t.ID, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to release seats"})
		}
		return c.JSON(http.StatusPaymentRequired, echo.Map{
			"error":  "payment declined",
			"reason": decision.Reason,
			"status": booking.StatusAborted,
		})
	}

	entries, err := h.commit(ctx, t)
	if errors.Is(err, errHoldsLapsed) {
		if abortErr := h.abort(ctx, t); abortErr != nil {
			log.Printf("booking %s: abort after lapsed holds failed: %v", t.ID, abortErr)
		}
		return c.JSON(http.StatusConflict, echo.Map{
			"error":  "seat holds expired before payment completed",
			"status": booking.StatusAborted,
		})
	}
	if err != nil {
		return bookingError(c, err)
	}

	t.Status = booking.StatusCommitted
	h.Registry.Remove(t.ID)

	if err := h.Sync.Flush(ctx); err != nil {
		log.Printf("booking %s: snapshot flush after commit failed: %v", t.ID, err)
	}
	h.afterCommit(ctx, t, entries, req.Notify)

	tickets := make([]ticketPart, 0, len(entries))
	for _, e := range entries {
		tickets = append(tickets, ticketPart{
			TicketID:    e.TicketID,
			TripID:      e.TripID,
			Plate:       e.Plate,
			TravelDate:  e.TravelDate,
			SeatNos:     e.SeatNos,
			AmountCents: e.AmountCents,
			Amount:      booking.FormatCents(e.AmountCents),
		})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"status":      booking.StatusCommitted,
		"payment_ref": decision.Reference,
		"tickets":     tickets,
		"total_cents": t.TotalCents(),
		"total":       booking.FormatCents(t.TotalCents()),
	})
}

// commit settles an accepted booking: lock every trip row, verify the
// holds are intact under those locks, then allocate a ticket per leg,
// append the ledger entries and promote the seats. Everything happens
// inside one transaction, so a failure on the second leg rolls back
// the first leg's ticket as well. The trip locks come first so a
// concurrent settlement of the same trip cannot delete the holds
// between our verification and our writes.
func (h *BookingHandler) commit(ctx context.Context, t *booking.Transaction) ([]*model.LedgerEntry, error) {
	username := ""
	if h.Users != nil {
		if u, err := h.Users.GetByID(ctx, t.UserID); err == nil {
			username = u.Username
		}
	}
	bookingDate := time.Now().UTC().Format("2006-01-02")
	entries := make([]*model.LedgerEntry, 0, len(t.Legs))

	err := h.Sync.WithinTx(ctx, func(tx *sql.Tx) error {
		for _, leg := range t.Legs {
			if _, err := h.Trips.GetForUpdateTx(ctx, tx, leg.TripID); err != nil {
				return err
			}
		}
		active, err := h.Holds.ActiveByBookingTx(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		for _, leg := range t.Legs {
			if !coversSeats(active[leg.TripID], leg.SeatNos) {
				return errHoldsLapsed
			}
		}
		for _, leg := range t.Legs {
			ticketID, err := h.Ledger.AllocateTicketTx(ctx, tx)
			if err != nil {
				return err
			}
			entry := &model.LedgerEntry{
				TicketID:    ticketID,
				UserID:      t.UserID,
				Username:    username,
				TripID:      leg.TripID,
				Plate:       leg.Plate,
				TravelDate:  leg.TravelDate,
				SeatNos:     leg.SeatNos,
				BookingDate: bookingDate,
				AmountCents: leg.Fare.TotalCents,
			}
			if err := h.Ledger.CreateTx(ctx, tx, entry); err != nil {
				return err
			}
			if err := h.Seats.CommitHeldTx(ctx, tx, leg.TripID, leg.SeatNos); err != nil {
				return err
			}
			leg.TicketID = ticketID
			leg.Status = booking.LegCommitted
			entries = append(entries, entry)
		}
		_, err = h.Holds.DeleteByBookingTx(ctx, tx, t.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// abort releases every seat the transaction holds and marks it
// aborted. Safe to call when some holds already expired: releasing is
// idempotent.
func (h *BookingHandler) abort(ctx context.Context, t *booking.Transaction) error {
	err := h.Sync.WithinTx(ctx, func(tx *sql.Tx) error {
		byTrip, err := h.Holds.DeleteByBookingTx(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		for tripID, seatNos := range byTrip {
			if _, err := h.Seats.ReleaseTx(ctx, tx, tripID, seatNos); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, leg := range t.Legs {
		leg.Status = booking.LegReleased
	}
	t.Status = booking.StatusAborted
	h.Registry.Remove(t.ID)
	if err := h.Sync.Flush(ctx); err != nil {
		log.Printf("booking %s: snapshot flush after abort failed: %v", t.ID, err)
	}
	return nil
}

// afterCommit runs the non-critical tail of a committed booking:
// frequent-route bookkeeping and confirmation notifications. Failures
// are logged and swallowed; the tickets are already committed.
func (h *BookingHandler) afterCommit(ctx context.Context, t *booking.Transaction, entries []*model.LedgerEntry, notify notifyReq) {
	recipient := model.Recipient{Kind: model.RecipientKind(notify.Kind), Address: notify.Address}
	if recipient.Address == "" && h.Users != nil {
		if u, err := h.Users.GetByID(ctx, t.UserID); err == nil {
			recipient = queue.FallbackRecipient(&u)
		}
	}
	issuedAt := time.Now().UTC().Format(time.RFC3339)

	for i, e := range entries {
		if h.Routes != nil {
			if trip, err := h.Trips.GetByID(ctx, e.TripID); err == nil {
				if err := h.Routes.Record(ctx, t.UserID, trip); err != nil {
					log.Printf("booking %s: record frequent route failed: %v", t.ID, err)
				}
			}
		}
		leg := t.Legs[i]
		ev := queue.TicketIssuedEvent{
			TicketID:    e.TicketID,
			UserID:      e.UserID,
			Username:    e.Username,
			TripID:      e.TripID,
			Plate:       e.Plate,
			Source:      leg.Source,
			Destination: leg.Destination,
			TravelDate:  e.TravelDate,
			SeatNos:     e.SeatNos,
			AmountCents: e.AmountCents,
			Recipient:   recipient,
			Category:    model.CategoryConfirmation,
			IssuedAt:    issuedAt,
		}
		if err := queue_publisher.PublishTicketIssued(ctx, ev); err != nil {
			log.Printf("booking %s: publish ticket issued failed: %v", t.ID, err)
		}
	}
}

// coversSeats reports whether have contains every seat in want.
func coversSeats(have, want []uint32) bool {
	set := make(map[uint32]struct{}, len(have))
	for _, no := range have {
		set[no] = struct{}{}
	}
	for _, no := range want {
		if _, ok := set[no]; !ok {
			return false
		}
	}
	return true
}

// bookingError maps repository sentinels onto HTTP responses.
func bookingError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrTripNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "trip not found"})
	case errors.Is(err, repository.ErrInvalidSeat):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrSeatUnavailable),
		errors.Is(err, repository.ErrInsufficientSeats):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrTicketSpaceExhausted):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "no ticket numbers available, try again later"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
}
