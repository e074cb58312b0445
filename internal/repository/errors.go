// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting error strings. For example, ErrSeatUnavailable signals
// that a requested seat is already held or reserved, while
// ErrTicketNotFound covers both an absent ticket and one owned by
// someone else.
package repository

import "errors"

// ErrTripNotFound is returned when a trip lookup matches no row.
// Handlers should translate this into an HTTP 404 response.
var ErrTripNotFound = errors.New("trip not found")

// ErrTicketNotFound is returned when no active ledger entry matches
// the requested ticket number, or when the entry belongs to a
// different user. Ownership mismatches deliberately look identical
// to absence so that ticket numbers cannot be probed.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrInvalidSeat is returned when a seat number lies outside
// [1, totalSeats] for the target trip.
var ErrInvalidSeat = errors.New("invalid seat number")

// ErrSeatUnavailable is returned when a requested seat is already
// held or reserved. The reservation attempt leaves no state behind.
var ErrSeatUnavailable = errors.New("seat unavailable")

// ErrInsufficientSeats is returned when a trip does not have enough
// free seats to satisfy a reservation request.
var ErrInsufficientSeats = errors.New("insufficient seats")

// ErrTicketSpaceExhausted is returned when the allocator cannot find
// an unused 6-digit ticket number within its retry limit.
var ErrTicketSpaceExhausted = errors.New("ticket number space exhausted")
