package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// SeatRepo is the seat-inventory layer. It owns the trip_seats
// occupancy store and keeps trips.available_seats in step with it:
// every status flip that changes the number of FREE seats adjusts the
// counter in the same statement batch, inside the caller's
// transaction. The capacity invariant (available + occupied ==
// total) therefore holds at every commit point.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo returns a new SeatRepo bound to the given database.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

// SeatView is a single seat with its occupancy status, returned by
// Availability for display.
type SeatView struct {
	SeatNo uint32 `json:"seat_no"`
	Status string `json:"status"`
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// statusesTx loads the current status of the given seats with a row
// lock, so concurrent reservations on the same seats serialize.
func (r *SeatRepo) statusesTx(ctx context.Context, tx *sql.Tx, tripID uint64, seatNos []uint32) (map[uint32]string, error) {
	q := `SELECT seat_no, status FROM trip_seats WHERE trip_id = ? AND seat_no IN (` +
		placeholders(len(seatNos)) + `) FOR UPDATE`
	args := make([]any, 0, len(seatNos)+1)
	args = append(args, tripID)
	for _, s := range seatNos {
		args = append(args, s)
	}
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	statuses := make(map[uint32]string, len(seatNos))
	for rows.Next() {
		var no uint32
		var st string
		if err := rows.Scan(&no, &st); err != nil {
			return nil, err
		}
		statuses[no] = st
	}
	return statuses, rows.Err()
}

// bulkUpdateStatusTx flips the given seats to status within the
// transaction.
func (r *SeatRepo) bulkUpdateStatusTx(ctx context.Context, tx *sql.Tx, tripID uint64, seatNos []uint32, status string) error {
	if len(seatNos) == 0 {
		return nil
	}
	q := `UPDATE trip_seats SET status = ? WHERE trip_id = ? AND seat_no IN (` +
		placeholders(len(seatNos)) + `)`
	args := make([]any, 0, len(seatNos)+2)
	args = append(args, status, tripID)
	for _, s := range seatNos {
		args = append(args, s)
	}
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

// ReserveTx places an all-or-nothing reservation on the given seats:
// every seat must be in [1, totalSeats] and currently FREE, and the
// trip must have enough availability. On success all seats move to
// the requested target status (HELD for a provisional hold,
// RESERVED when committing directly) and available_seats drops by
// len(seatNos). On any failure the transaction is left for the
// caller to roll back and a typed error describes the first problem:
// ErrInvalidSeat, ErrSeatUnavailable or ErrInsufficientSeats.
//
// The caller must have locked the trip row via
// TripRepo.GetForUpdateTx and pass its totalSeats / availableSeats.
func (r *SeatRepo) ReserveTx(ctx context.Context, tx *sql.Tx, trip *model.Trip, seatNos []uint32, target string) error {
	if len(seatNos) == 0 {
		return fmt.Errorf("%w: empty seat set", ErrInvalidSeat)
	}
	for _, no := range seatNos {
		if no < 1 || no > trip.TotalSeats {
			return fmt.Errorf("%w: seat %d out of [1,%d]", ErrInvalidSeat, no, trip.TotalSeats)
		}
	}
	if uint32(len(seatNos)) > trip.AvailableSeats {
		return fmt.Errorf("%w: want %d, have %d", ErrInsufficientSeats, len(seatNos), trip.AvailableSeats)
	}
	statuses, err := r.statusesTx(ctx, tx, trip.ID, seatNos)
	if err != nil {
		return err
	}
	for _, no := range seatNos {
		st, ok := statuses[no]
		if !ok {
			return fmt.Errorf("%w: seat %d has no occupancy row", ErrInvalidSeat, no)
		}
		if st != model.SeatFree {
			return fmt.Errorf("%w: seat %d is %s", ErrSeatUnavailable, no, st)
		}
	}
	if err := r.bulkUpdateStatusTx(ctx, tx, trip.ID, seatNos, target); err != nil {
		return err
	}
	const dec = `UPDATE trips SET available_seats = available_seats - ? WHERE id = ?`
	_, err = tx.ExecContext(ctx, dec, len(seatNos), trip.ID)
	return err
}

// CommitHeldTx promotes seats from HELD to RESERVED at booking
// commit. Availability does not change; the seats were already
// counted out when the hold was placed.
func (r *SeatRepo) CommitHeldTx(ctx context.Context, tx *sql.Tx, tripID uint64, seatNos []uint32) error {
	return r.bulkUpdateStatusTx(ctx, tx, tripID, seatNos, model.SeatReserved)
}

// ReleaseTx idempotently frees the given seats: seats that are
// already FREE (or unknown to the trip) are silently ignored, and
// available_seats grows by exactly the number of seats that actually
// changed state. Used for both cancellation and hold rollback.
func (r *SeatRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, tripID uint64, seatNos []uint32) (int64, error) {
	if len(seatNos) == 0 {
		return 0, nil
	}
	q := `UPDATE trip_seats SET status = ? WHERE trip_id = ? AND status <> ? AND seat_no IN (` +
		placeholders(len(seatNos)) + `)`
	args := make([]any, 0, len(seatNos)+3)
	args = append(args, model.SeatFree, tripID, model.SeatFree)
	for _, s := range seatNos {
		args = append(args, s)
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	freed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if freed > 0 {
		const inc = `UPDATE trips SET available_seats = available_seats + ? WHERE id = ?`
		if _, err := tx.ExecContext(ctx, inc, freed, tripID); err != nil {
			return 0, err
		}
	}
	return freed, nil
}

// Availability returns the full occupancy snapshot of a trip,
// ordered by seat number. Seats covered by an active hold report
// HELD even though the hold may expire later.
func (r *SeatRepo) Availability(ctx context.Context, tripID uint64) ([]SeatView, error) {
	const q = `SELECT seat_no, status FROM trip_seats WHERE trip_id = ? ORDER BY seat_no`
	rows, err := r.db.QueryContext(ctx, q, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := make([]SeatView, 0)
	for rows.Next() {
		var v SeatView
		if err := rows.Scan(&v.SeatNo, &v.Status); err != nil {
			return nil, err
		}
		seats = append(seats, v)
	}
	return seats, rows.Err()
}

// OccupiedByTripTx returns every non-FREE seat grouped by trip,
// ordered by trip then seat number. The snapshot exporter rewrites
// the seat-occupancy file from this view.
func (r *SeatRepo) OccupiedByTripTx(ctx context.Context, tx *sql.Tx) (map[uint64][]uint32, []uint64, error) {
	const q = `SELECT trip_id, seat_no FROM trip_seats WHERE status <> ? ORDER BY trip_id, seat_no`
	rows, err := tx.QueryContext(ctx, q, model.SeatFree)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	occupied := make(map[uint64][]uint32)
	order := make([]uint64, 0)
	for rows.Next() {
		var tripID uint64
		var no uint32
		if err := rows.Scan(&tripID, &no); err != nil {
			return nil, nil, err
		}
		if _, seen := occupied[tripID]; !seen {
			order = append(order, tripID)
		}
		occupied[tripID] = append(occupied[tripID], no)
	}
	return occupied, order, rows.Err()
}
