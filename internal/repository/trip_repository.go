package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// TripRepo provides read access to the trip catalog and controlled
// updates to the per-trip availability counter. Trip rows are created
// by the schedule administration tooling; this service never inserts
// or deletes them, it only adjusts available_seats in step with the
// seat-occupancy store.
type TripRepo struct {
	db *sql.DB
}

// NewTripRepo returns a new TripRepo bound to the given database.
func NewTripRepo(db *sql.DB) *TripRepo { return &TripRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions
// spanning multiple repositories.
func (r *TripRepo) DB() *sql.DB { return r.db }

const tripColumns = `id, plate, source, destination, travel_date, departure_time, arrival_time,
                     total_seats, available_seats, fare_cents, created_at, updated_at`

func scanTrip(row interface{ Scan(...any) error }) (*model.Trip, error) {
	var t model.Trip
	err := row.Scan(
		&t.ID, &t.Plate, &t.Source, &t.Destination, &t.TravelDate, &t.DepartureTime,
		&t.ArrivalTime, &t.TotalSeats, &t.AvailableSeats, &t.FareCents, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByID returns the trip with the given identifier. It returns
// ErrTripNotFound when no such trip exists.
func (r *TripRepo) GetByID(ctx context.Context, tripID uint64) (*model.Trip, error) {
	const q = `SELECT ` + tripColumns + ` FROM trips WHERE id = ?`
	t, err := scanTrip(r.db.QueryRowContext(ctx, q, tripID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTripNotFound
	}
	return t, err
}

// GetForUpdateTx loads a trip inside the given transaction with a row
// lock, serializing concurrent reservations and cancellations on the
// same trip. Returns ErrTripNotFound when the trip does not exist.
func (r *TripRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, tripID uint64) (*model.Trip, error) {
	const q = `SELECT ` + tripColumns + ` FROM trips WHERE id = ? FOR UPDATE`
	t, err := scanTrip(tx.QueryRowContext(ctx, q, tripID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTripNotFound
	}
	return t, err
}

// Search returns trips matching the given source, destination and
// optional travel date, ordered by date and departure time. Empty
// filter values match everything, so Search("", "", "") lists the
// whole catalog.
func (r *TripRepo) Search(ctx context.Context, source, destination, date string) ([]model.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips WHERE 1=1`
	args := make([]any, 0, 3)
	if source != "" {
		q += ` AND source = ?`
		args = append(args, source)
	}
	if destination != "" {
		q += ` AND destination = ?`
		args = append(args, destination)
	}
	if date != "" {
		q += ` AND travel_date = ?`
		args = append(args, date)
	}
	q += ` ORDER BY travel_date, departure_time, id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	trips := make([]model.Trip, 0)
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, *t)
	}
	return trips, rows.Err()
}

// ListAllTx returns every trip within the transaction, ordered by id.
// The snapshot exporter uses it to rewrite the trip store file from
// the committed state.
func (r *TripRepo) ListAllTx(ctx context.Context, tx *sql.Tx) ([]model.Trip, error) {
	const q = `SELECT ` + tripColumns + ` FROM trips ORDER BY id`
	rows, err := tx.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	trips := make([]model.Trip, 0)
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, *t)
	}
	return trips, rows.Err()
}
