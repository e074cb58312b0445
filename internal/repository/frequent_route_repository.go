package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// FrequentRoute is a route a user has booked before, kept so the
// client can offer one-tap rebooking. One row per (user, source,
// destination); LastTripID points at the most recent trip booked on
// the route.
type FrequentRoute struct {
	ID          uint64    `json:"id"`
	UserID      uint64    `json:"-"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Plate       string    `json:"plate"`
	LastTripID  uint64    `json:"last_trip_id"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FrequentRouteRepo tracks booked routes per user in the
// frequent_routes table.
type FrequentRouteRepo struct {
	db *sql.DB
}

// NewFrequentRouteRepo returns a new FrequentRouteRepo bound to the
// given database.
func NewFrequentRouteRepo(db *sql.DB) *FrequentRouteRepo { return &FrequentRouteRepo{db: db} }

// Record upserts the route of a committed booking. Called once per
// committed leg, after the commit point; failures here must not fail
// the booking, so the caller logs and continues.
func (r *FrequentRouteRepo) Record(ctx context.Context, userID uint64, trip *model.Trip) error {
	const q = `INSERT INTO frequent_routes (user_id, source, destination, plate, last_trip_id)
               VALUES (?, ?, ?, ?, ?)
               ON DUPLICATE KEY UPDATE plate = VALUES(plate), last_trip_id = VALUES(last_trip_id)`
	_, err := r.db.ExecContext(ctx, q, userID, trip.Source, trip.Destination, trip.Plate, trip.ID)
	return err
}

// ListByUser returns the user's saved routes, most recently used
// first.
func (r *FrequentRouteRepo) ListByUser(ctx context.Context, userID uint64) ([]FrequentRoute, error) {
	const q = `SELECT id, user_id, source, destination, plate, last_trip_id, updated_at
               FROM frequent_routes WHERE user_id = ? ORDER BY updated_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	routes := make([]FrequentRoute, 0)
	for rows.Next() {
		var fr FrequentRoute
		if err := rows.Scan(&fr.ID, &fr.UserID, &fr.Source, &fr.Destination, &fr.Plate, &fr.LastTripID, &fr.UpdatedAt); err != nil {
			return nil, err
		}
		routes = append(routes, fr)
	}
	return routes, rows.Err()
}
