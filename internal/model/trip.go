package model

import "time"

// Trip represents one scheduled bus departure as stored in the
// `trips` table. Trips are created and maintained by the schedule
// administration tooling; this service only mutates the seat
// counters through the inventory layer.
//
// Fields:
//  ID             – primary key identifier.
//  Plate          – registration plate of the assigned bus.
//  Source         – departure city.
//  Destination    – arrival city.
//  TravelDate     – calendar date of the trip (YYYY-MM-DD).
//  DepartureTime  – scheduled departure (HH:MM).
//  ArrivalTime    – scheduled arrival (HH:MM).
//  TotalSeats     – seating capacity of the bus.
//  AvailableSeats – seats currently open for booking.
//  FareCents      – price of a single seat in cents, tax excluded.
//  CreatedAt      – timestamp when the trip was created.
//  UpdatedAt      – timestamp of last update.
//
// Invariant: AvailableSeats plus the number of HELD/RESERVED rows in
// trip_seats always equals TotalSeats.
type Trip struct {
	ID             uint64    // trips.id
	Plate          string    // trips.plate
	Source         string    // trips.source
	Destination    string    // trips.destination
	TravelDate     string    // trips.travel_date
	DepartureTime  string    // trips.departure_time
	ArrivalTime    string    // trips.arrival_time
	TotalSeats     uint32    // trips.total_seats
	AvailableSeats uint32    // trips.available_seats
	FareCents      uint32    // trips.fare_cents
	CreatedAt      time.Time // trips.created_at
	UpdatedAt      time.Time // trips.updated_at
}

// SeatHold represents a provisional reservation placed on a seat
// before payment is confirmed. Holds keep a seat away from other
// transactions while the buyer decides; they expire automatically
// at ExpiresAt and are swept inside booking transactions.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – user who holds the seat.
//  TripID    – trip on which the seat is held.
//  SeatNo    – held seat number.
//  BookingID – opaque token tying the hold to its in-memory booking
//              transaction.
//  ExpiresAt – when the hold lapses.
//  CreatedAt – when the hold was created.
type SeatHold struct {
	ID        uint64    // seat_holds.id
	UserID    uint64    // seat_holds.user_id
	TripID    uint64    // seat_holds.trip_id
	SeatNo    uint32    // seat_holds.seat_no
	BookingID string    // seat_holds.booking_id
	ExpiresAt time.Time // seat_holds.expires_at
	CreatedAt time.Time // seat_holds.created_at
}

// Seat occupancy status values used in trip_seats.status.
const (
	SeatFree     = "FREE"
	SeatHeld     = "HELD"
	SeatReserved = "RESERVED"
)
