package model

import "time"

// LedgerEntry is a committed reservation as stored in the
// `reservations` table, the active ticket ledger. An entry is
// written once at booking commit and removed only by migrating it
// to the cancellation ledger. Ticket IDs are unique among the
// entries currently present in this table.
//
// Fields:
//  ID          – primary key identifier.
//  TicketID    – 6-digit ticket number in [100000, 999999].
//  UserID      – owner of the reservation.
//  Username    – owner's username, denormalized for the ledger file.
//  TripID      – trip the seats belong to.
//  Plate       – bus plate, denormalized from the trip.
//  TravelDate  – trip date, denormalized from the trip.
//  SeatNos     – ordered seat numbers booked under this ticket.
//  BookingDate – date the booking was committed (YYYY-MM-DD).
//  AmountCents – final amount paid, tax inclusive.
//  CreatedAt   – timestamp of commit.
type LedgerEntry struct {
	ID          uint64    // reservations.id
	TicketID    uint32    // reservations.ticket_id
	UserID      uint64    // reservations.user_id
	Username    string    // reservations.username
	TripID      uint64    // reservations.trip_id
	Plate       string    // reservations.plate
	TravelDate  string    // reservations.travel_date
	SeatNos     []uint32  // reservation_seats.seat_no, ordered
	BookingDate string    // reservations.booking_date
	AmountCents uint32    // reservations.amount_cents
	CreatedAt   time.Time // reservations.created_at
}

// CancellationEntry is a row in the `cancellations` ledger. It is
// created exclusively by migrating a LedgerEntry out of the active
// ledger and additionally records the refunded amount. Refunds are
// always the full amount paid.
//
// Fields mirror LedgerEntry plus:
//  RefundCents – amount refunded to the user.
//  CancelledAt – timestamp of the cancellation commit.
type CancellationEntry struct {
	ID          uint64    // cancellations.id
	TicketID    uint32    // cancellations.ticket_id
	UserID      uint64    // cancellations.user_id
	Username    string    // cancellations.username
	TripID      uint64    // cancellations.trip_id
	Plate       string    // cancellations.plate
	TravelDate  string    // cancellations.travel_date
	SeatNos     []uint32  // cancellations.seat_nos, ordered
	BookingDate string    // cancellations.booking_date
	AmountCents uint32    // cancellations.amount_cents
	RefundCents uint32    // cancellations.refund_cents
	CancelledAt time.Time // cancellations.cancelled_at
}

// Ticket number space boundaries. The allocator draws uniformly
// from [TicketIDMin, TicketIDMax] and retries on collision against
// the active ledger.
const (
	TicketIDMin = 100000
	TicketIDMax = 999999
)
