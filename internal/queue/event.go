// Package queue defines message payloads exchanged over the message broker.
package queue

import "github.com/iliyamo/bus-seat-reservation/internal/model"

// TicketIssuedEvent is published once per leg when a booking commits.
// It carries enough for downstream consumers to notify the passenger
// or feed analytics without querying the primary database.
type TicketIssuedEvent struct {
	TicketID    uint32          `json:"ticket_id"`
	UserID      uint64          `json:"user_id"`
	Username    string          `json:"username"`
	TripID      uint64          `json:"trip_id"`
	Plate       string          `json:"plate"`
	Source      string          `json:"source"`
	Destination string          `json:"destination"`
	TravelDate  string          `json:"travel_date"`
	SeatNos     []uint32        `json:"seats"`
	AmountCents uint32          `json:"amount_cents"`
	Recipient   model.Recipient `json:"recipient"`
	Category    string          `json:"category"` // model.CategoryConfirmation
	IssuedAt    string          `json:"issued_at"`
}

// TicketCancelledEvent is published when a confirmed cancellation
// migrates a ticket to the cancellation ledger.
type TicketCancelledEvent struct {
	TicketID    uint32          `json:"ticket_id"`
	UserID      uint64          `json:"user_id"`
	Username    string          `json:"username"`
	TripID      uint64          `json:"trip_id"`
	SeatCount   int             `json:"seat_count"`
	RefundCents uint32          `json:"refund_cents"`
	Recipient   model.Recipient `json:"recipient"`
	Category    string          `json:"category"` // model.CategoryCancellation
	CancelledAt string          `json:"cancelled_at"`
}
