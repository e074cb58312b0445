package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// SeatHoldRepo provides data access to the seat_holds table. A hold
// row exists for every provisionally reserved seat; deleting the
// rows and freeing the seats is what turns a provisional reservation
// back into open inventory. All timestamps are UTC.
type SeatHoldRepo struct {
	db *sql.DB
}

// NewSeatHoldRepo returns a new SeatHoldRepo bound to the provided database.
func NewSeatHoldRepo(db *sql.DB) *SeatHoldRepo { return &SeatHoldRepo{db: db} }

// NewBookingID returns a random token identifying one in-flight
// booking transaction. Holds created for the transaction's legs all
// carry this token so commit and rollback can find exactly the seats
// the transaction placed.
func NewBookingID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CreateMultipleTx inserts one seat_holds row per held seat within
// the provided transaction. Passing an empty slice has no effect.
func (r *SeatHoldRepo) CreateMultipleTx(ctx context.Context, tx *sql.Tx, holds []model.SeatHold) error {
	if len(holds) == 0 {
		return nil
	}
	q := `INSERT INTO seat_holds (user_id, trip_id, seat_no, booking_id, expires_at) VALUES `
	args := make([]any, 0, len(holds)*5)
	for i, h := range holds {
		if i > 0 {
			q += ","
		}
		q += "(?, ?, ?, ?, ?)"
		args = append(args, h.UserID, h.TripID, h.SeatNo, h.BookingID, h.ExpiresAt.UTC().Format("2006-01-02 15:04:05"))
	}
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

// DeleteByBookingTx removes every hold carrying the given booking
// token and returns the released seat numbers grouped by trip, so
// the caller can flip the corresponding trip_seats rows.
func (r *SeatHoldRepo) DeleteByBookingTx(ctx context.Context, tx *sql.Tx, bookingID string) (map[uint64][]uint32, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT trip_id, seat_no FROM seat_holds WHERE booking_id = ?`, bookingID)
	if err != nil {
		return nil, err
	}
	byTrip := make(map[uint64][]uint32)
	for rows.Next() {
		var tripID uint64
		var no uint32
		if scanErr := rows.Scan(&tripID, &no); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		byTrip[tripID] = append(byTrip[tripID], no)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if len(byTrip) == 0 {
		return byTrip, nil
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM seat_holds WHERE booking_id = ?`, bookingID); err != nil {
		return nil, err
	}
	return byTrip, nil
}

// ExpireHoldsTx removes all holds on the given trip whose expires_at
// has passed and returns the seat numbers whose holds were removed.
// Callers must flip the returned seats back to FREE (and restore the
// availability counter) within the same transaction.
func (r *SeatHoldRepo) ExpireHoldsTx(ctx context.Context, tx *sql.Tx, tripID uint64) ([]uint32, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT seat_no FROM seat_holds WHERE trip_id = ? AND expires_at <= UTC_TIMESTAMP()`, tripID)
	if err != nil {
		return nil, err
	}
	var expired []uint32
	for rows.Next() {
		var no uint32
		if scanErr := rows.Scan(&no); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		expired = append(expired, no)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return []uint32{}, nil
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM seat_holds WHERE trip_id = ? AND expires_at <= UTC_TIMESTAMP()`, tripID)
	if err != nil {
		return nil, err
	}
	return expired, nil
}

// ActiveByBookingTx returns every non-expired hold for the booking
// token, grouped by trip, locking the rows. Commit uses it to verify
// the provisional reservation is still intact before writing ledger
// entries; the lock keeps the holds pinned until the commit point so
// they cannot be expired or deleted out from under the verification.
func (r *SeatHoldRepo) ActiveByBookingTx(ctx context.Context, tx *sql.Tx, bookingID string) (map[uint64][]uint32, error) {
	const q = `SELECT trip_id, seat_no FROM seat_holds
               WHERE booking_id = ? AND expires_at > UTC_TIMESTAMP()
               ORDER BY trip_id, seat_no FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byTrip := make(map[uint64][]uint32)
	for rows.Next() {
		var tripID uint64
		var no uint32
		if err := rows.Scan(&tripID, &no); err != nil {
			return nil, err
		}
		byTrip[tripID] = append(byTrip[tripID], no)
	}
	return byTrip, rows.Err()
}

// BuildHolds assembles hold records for one leg of a booking
// transaction. Every hold shares the booking token and expiry.
func BuildHolds(userID, tripID uint64, seatNos []uint32, bookingID string, expiresAt time.Time) []model.SeatHold {
	holds := make([]model.SeatHold, 0, len(seatNos))
	for _, no := range seatNos {
		holds = append(holds, model.SeatHold{
			UserID:    userID,
			TripID:    tripID,
			SeatNo:    no,
			BookingID: bookingID,
			ExpiresAt: expiresAt,
		})
	}
	return holds
}
