package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// maxTicketAttempts bounds the collision-retry loop of the ticket
// allocator. Exceeding it surfaces ErrTicketSpaceExhausted instead
// of spinning on a saturated number space.
const maxTicketAttempts = 32

// LedgerRepo provides access to the two reservation ledgers: the
// active ledger (`reservations` + `reservation_seats`) and the
// cancellation ledger (`cancellations`). It also allocates ticket
// numbers, since uniqueness is defined against the active ledger
// only: a cancelled ticket's number may legally be reassigned later.
type LedgerRepo struct {
	db *sql.DB

	// Draw produces one candidate ticket number. It defaults to a
	// uniform crypto/rand draw over [100000, 999999] and is a field
	// so tests can script the sequence of candidates.
	Draw func() (uint32, error)
}

// NewLedgerRepo returns a new LedgerRepo bound to the given database.
func NewLedgerRepo(db *sql.DB) *LedgerRepo {
	return &LedgerRepo{db: db, Draw: drawTicketID}
}

func drawTicketID() (uint32, error) {
	span := big.NewInt(model.TicketIDMax - model.TicketIDMin + 1)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return 0, err
	}
	return uint32(n.Int64()) + model.TicketIDMin, nil
}

// AllocateTicketTx draws ticket numbers until one is absent from the
// active ledger, checking inside the transaction so two commits
// cannot race to the same number. It gives up with
// ErrTicketSpaceExhausted after a bounded number of attempts.
func (r *LedgerRepo) AllocateTicketTx(ctx context.Context, tx *sql.Tx) (uint32, error) {
	for attempt := 0; attempt < maxTicketAttempts; attempt++ {
		candidate, err := r.Draw()
		if err != nil {
			return 0, err
		}
		var one int
		err = tx.QueryRowContext(ctx,
			`SELECT 1 FROM reservations WHERE ticket_id = ? FOR UPDATE`, candidate).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return candidate, nil
		}
		if err != nil {
			return 0, err
		}
	}
	return 0, ErrTicketSpaceExhausted
}

// CreateTx appends a new entry to the active ledger within the
// transaction: one reservations row plus one reservation_seats row
// per seat. The generated row ID is written back to the entry.
func (r *LedgerRepo) CreateTx(ctx context.Context, tx *sql.Tx, e *model.LedgerEntry) error {
	const q = `INSERT INTO reservations
               (ticket_id, user_id, username, trip_id, plate, travel_date, booking_date, amount_cents)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		e.TicketID, e.UserID, e.Username, e.TripID, e.Plate, e.TravelDate, e.BookingDate, e.AmountCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	if len(e.SeatNos) == 0 {
		return nil
	}
	sq := `INSERT INTO reservation_seats (reservation_id, seat_no) VALUES `
	args := make([]any, 0, len(e.SeatNos)*2)
	for i, no := range e.SeatNos {
		if i > 0 {
			sq += ","
		}
		sq += "(?, ?)"
		args = append(args, e.ID, no)
	}
	_, err = tx.ExecContext(ctx, sq, args...)
	return err
}

const ledgerColumns = `r.id, r.ticket_id, r.user_id, r.username, r.trip_id, r.plate,
                       r.travel_date, r.booking_date, r.amount_cents, r.created_at`

func scanLedgerEntry(row interface{ Scan(...any) error }) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	err := row.Scan(&e.ID, &e.TicketID, &e.UserID, &e.Username, &e.TripID, &e.Plate,
		&e.TravelDate, &e.BookingDate, &e.AmountCents, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *LedgerRepo) seatNos(ctx context.Context, q interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}, reservationID uint64) ([]uint32, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT seat_no FROM reservation_seats WHERE reservation_id = ? ORDER BY seat_no`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	nos := make([]uint32, 0)
	for rows.Next() {
		var no uint32
		if err := rows.Scan(&no); err != nil {
			return nil, err
		}
		nos = append(nos, no)
	}
	return nos, rows.Err()
}

// GetByTicketForUserTx loads the active ledger entry for a ticket
// number inside the transaction, locking the row, and verifies the
// requester owns it. Both a missing entry and an ownership mismatch
// return ErrTicketNotFound so callers cannot distinguish foreign
// tickets from absent ones.
func (r *LedgerRepo) GetByTicketForUserTx(ctx context.Context, tx *sql.Tx, ticketID uint32, userID uint64) (*model.LedgerEntry, error) {
	const q = `SELECT ` + ledgerColumns + ` FROM reservations r WHERE r.ticket_id = ? FOR UPDATE`
	e, err := scanLedgerEntry(tx.QueryRowContext(ctx, q, ticketID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	if e.UserID != userID {
		return nil, ErrTicketNotFound
	}
	e.SeatNos, err = r.seatNos(ctx, tx, e.ID)
	return e, err
}

// GetByTicketForUser is the read-only variant used for ticket
// details display.
func (r *LedgerRepo) GetByTicketForUser(ctx context.Context, ticketID uint32, userID uint64) (*model.LedgerEntry, error) {
	const q = `SELECT ` + ledgerColumns + ` FROM reservations r WHERE r.ticket_id = ?`
	e, err := scanLedgerEntry(r.db.QueryRowContext(ctx, q, ticketID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	if e.UserID != userID {
		return nil, ErrTicketNotFound
	}
	e.SeatNos, err = r.seatNos(ctx, r.db, e.ID)
	return e, err
}

// ListByUser returns the user's active ledger entries, newest first,
// with their seat numbers populated.
func (r *LedgerRepo) ListByUser(ctx context.Context, userID uint64) ([]model.LedgerEntry, error) {
	const q = `SELECT ` + ledgerColumns + ` FROM reservations r WHERE r.user_id = ? ORDER BY r.created_at DESC, r.id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]model.LedgerEntry, 0)
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].SeatNos, err = r.seatNos(ctx, r.db, entries[i].ID); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// ListAllTx returns the whole active ledger within the transaction,
// ordered by row id, seats included. The snapshot exporter rewrites
// the ledger file from this view.
func (r *LedgerRepo) ListAllTx(ctx context.Context, tx *sql.Tx) ([]model.LedgerEntry, error) {
	const q = `SELECT ` + ledgerColumns + ` FROM reservations r ORDER BY r.id`
	rows, err := tx.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	entries := make([]model.LedgerEntry, 0)
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].SeatNos, err = r.seatNos(ctx, tx, entries[i].ID); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// MigrateTx atomically moves an active entry to the cancellation
// ledger: insert the cancellation row recording the refund, then
// delete the reservation (reservation_seats rows cascade). Both
// writes share the transaction, so a crash can never leave the
// ticket in both ledgers or in neither.
func (r *LedgerRepo) MigrateTx(ctx context.Context, tx *sql.Tx, e *model.LedgerEntry, refundCents uint32) (*model.CancellationEntry, error) {
	c := &model.CancellationEntry{
		TicketID:    e.TicketID,
		UserID:      e.UserID,
		Username:    e.Username,
		TripID:      e.TripID,
		Plate:       e.Plate,
		TravelDate:  e.TravelDate,
		SeatNos:     e.SeatNos,
		BookingDate: e.BookingDate,
		AmountCents: e.AmountCents,
		RefundCents: refundCents,
	}
	const ins = `INSERT INTO cancellations
                 (ticket_id, user_id, username, trip_id, plate, travel_date, seat_nos, booking_date, amount_cents, refund_cents)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, ins,
		c.TicketID, c.UserID, c.Username, c.TripID, c.Plate, c.TravelDate,
		JoinSeatNos(c.SeatNos), c.BookingDate, c.AmountCents, c.RefundCents)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	c.ID = uint64(id)
	if _, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, e.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// JoinSeatNos renders seat numbers as the space-separated string the
// ledger files use ("5 6 12").
func JoinSeatNos(nos []uint32) string {
	out := ""
	for i, no := range nos {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%d", no)
	}
	return out
}
