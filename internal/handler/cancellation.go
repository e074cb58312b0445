package handler

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/booking"
	"github.com/iliyamo/bus-seat-reservation/internal/middleware"
	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/queue"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
	queue_publisher "github.com/iliyamo/bus-seat-reservation/internal/service"
	"github.com/iliyamo/bus-seat-reservation/internal/store"
)

// CancellationHandler settles ticket cancellations: ownership check,
// explicit confirmation gate, full refund, seat release and the
// atomic migration of the ledger entry into the cancellation ledger.
type CancellationHandler struct {
	Trips  *repository.TripRepo
	Seats  *repository.SeatRepo
	Ledger *repository.LedgerRepo
	Users  *repository.UserRepo
	Sync   *store.Synchronizer
}

func NewCancellationHandler(trips *repository.TripRepo, seats *repository.SeatRepo,
	ledger *repository.LedgerRepo, users *repository.UserRepo, sync *store.Synchronizer) *CancellationHandler {
	if trips == nil || seats == nil || ledger == nil || sync == nil {
		panic("nil dependency passed to NewCancellationHandler")
	}
	return &CancellationHandler{Trips: trips, Seats: seats, Ledger: ledger, Users: users, Sync: sync}
}

// Cancel handles DELETE /v1/tickets/:ticket. The caller must own the
// ticket and pass confirm=true; without confirmation the handler
// reports what would be refunded and changes nothing. On confirm the
// seats are freed, the availability counter restored and the ledger
// entry migrated to the cancellation ledger with a full refund, all
// in one transaction. A foreign or unknown ticket is a 404 either
// way; the handler never reveals whether someone else's ticket
// exists.
func (h *CancellationHandler) Cancel(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ticket64, err := strconv.ParseUint(c.Param("ticket"), 10, 32)
	if err != nil || ticket64 < model.TicketIDMin || ticket64 > model.TicketIDMax {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket number"})
	}
	ticketID := uint32(ticket64)
	ctx := c.Request().Context()

	if !strings.EqualFold(c.QueryParam("confirm"), "true") {
		// Preview only: show the refund the confirmation would trigger.
		e, err := h.Ledger.GetByTicketForUser(ctx, ticketID, userID)
		if err != nil {
			if errors.Is(err, repository.ErrTicketNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		return c.JSON(http.StatusConflict, echo.Map{
			"error":        "confirmation required",
			"hint":         "repeat the request with ?confirm=true to cancel",
			"ticket_id":    e.TicketID,
			"refund_cents": e.AmountCents,
			"refund":       booking.FormatCents(e.AmountCents),
		})
	}

	var cancelled *model.CancellationEntry
	err = h.Sync.WithinTx(ctx, func(tx *sql.Tx) error {
		e, err := h.Ledger.GetByTicketForUserTx(ctx, tx, ticketID, userID)
		if err != nil {
			return err
		}
		if _, err := h.Trips.GetForUpdateTx(ctx, tx, e.TripID); err != nil {
			return err
		}
		if _, err := h.Seats.ReleaseTx(ctx, tx, e.TripID, e.SeatNos); err != nil {
			return err
		}
		cancelled, err = h.Ledger.MigrateTx(ctx, tx, e, e.AmountCents)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		if errors.Is(err, repository.ErrTripNotFound) {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "ledger references unknown trip"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancellation failed"})
	}

	if err := h.Sync.AppendCancellation(cancelled); err != nil {
		log.Printf("cancel %d: append cancellation ledger failed: %v", ticketID, err)
	}
	if err := h.Sync.Flush(ctx); err != nil {
		log.Printf("cancel %d: snapshot flush failed: %v", ticketID, err)
	}
	h.notify(c, cancelled)

	return c.JSON(http.StatusOK, echo.Map{
		"ticket_id":    cancelled.TicketID,
		"refund_cents": cancelled.RefundCents,
		"refund":       booking.FormatCents(cancelled.RefundCents),
		"status":       "CANCELLED",
	})
}

func (h *CancellationHandler) notify(c echo.Context, cancelled *model.CancellationEntry) {
	ctx := c.Request().Context()
	var recipient model.Recipient
	if h.Users != nil {
		if u, err := h.Users.GetByID(ctx, cancelled.UserID); err == nil {
			recipient = queue.FallbackRecipient(&u)
		}
	}
	ev := queue.TicketCancelledEvent{
		TicketID:    cancelled.TicketID,
		UserID:      cancelled.UserID,
		Username:    cancelled.Username,
		TripID:      cancelled.TripID,
		SeatCount:   len(cancelled.SeatNos),
		RefundCents: cancelled.RefundCents,
		Recipient:   recipient,
		Category:    model.CategoryCancellation,
		CancelledAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := queue_publisher.PublishTicketCancelled(ctx, ev); err != nil {
		log.Printf("cancel %d: publish cancellation event failed: %v", cancelled.TicketID, err)
	}
}
