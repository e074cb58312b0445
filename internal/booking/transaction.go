// Package booking models the transient state of an in-flight booking
// transaction: one or two legs, their provisional holds and computed
// fares, and the overall progress from seat collection to the payment
// decision. Transactions live only in memory for the duration of one
// user interaction; the durable record of a committed booking is the
// reservation ledger, not this package.
package booking

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// LegStatus tracks one leg through its lifecycle:
// Selecting -> ProvisionallyReserved -> Committed | Released.
type LegStatus string

// Leg states.
const (
	LegSelecting             LegStatus = "SELECTING"
	LegProvisionallyReserved LegStatus = "PROVISIONALLY_RESERVED"
	LegCommitted             LegStatus = "COMMITTED"
	LegReleased              LegStatus = "RELEASED"
)

// Status tracks the whole transaction:
// Collecting -> AwaitingPayment -> Committed | Aborted.
type Status string

// Transaction states. Settling is the claimed window between the
// payment decision being requested and the outcome being recorded;
// only one caller can hold it.
const (
	StatusCollecting      Status = "COLLECTING"
	StatusAwaitingPayment Status = "AWAITING_PAYMENT"
	StatusSettling        Status = "SETTLING"
	StatusCommitted       Status = "COMMITTED"
	StatusAborted         Status = "ABORTED"
)

// MaxLegs caps a transaction at a round trip: one outbound and one
// return leg.
const MaxLegs = 2

// ErrBadSeatSet is returned by NormalizeSeats for locally recoverable
// input problems: an empty set, a zero seat number or a duplicate in
// the same request. Callers re-prompt instead of aborting.
var ErrBadSeatSet = errors.New("invalid seat selection")

// NormalizeSeats validates a requested seat set locally (before any
// inventory call) and returns it sorted ascending. It rejects empty
// sets, seat number zero and duplicates within the request. Range
// checks against the trip's capacity happen later in the inventory
// layer, which knows totalSeats.
func NormalizeSeats(seatNos []uint32) ([]uint32, error) {
	if len(seatNos) == 0 {
		return nil, fmt.Errorf("seat set is empty: %w", ErrBadSeatSet)
	}
	seen := make(map[uint32]struct{}, len(seatNos))
	out := make([]uint32, 0, len(seatNos))
	for _, no := range seatNos {
		if no == 0 {
			return nil, fmt.Errorf("seat number must be positive: %w", ErrBadSeatSet)
		}
		if _, dup := seen[no]; dup {
			return nil, fmt.Errorf("duplicate seat in request: %w", ErrBadSeatSet)
		}
		seen[no] = struct{}{}
		out = append(out, no)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Leg is one directional trip reservation inside a transaction.
type Leg struct {
	TripID      uint64    `json:"trip_id"`
	Plate       string    `json:"plate"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	TravelDate  string    `json:"travel_date"`
	SeatNos     []uint32  `json:"seat_nos"`
	Status      LegStatus `json:"status"`
	Fare        Quote     `json:"fare"`
	TicketID    uint32    `json:"ticket_id,omitempty"` // set at commit
}

// Transaction groups the legs of a one-way or round-trip booking
// together with the single payment decision that commits or aborts
// them all. The ID doubles as the booking token stamped on every
// seat hold the transaction placed.
type Transaction struct {
	ID        string    `json:"booking_id"`
	UserID    uint64    `json:"-"`
	Legs      []*Leg    `json:"legs"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TotalCents sums the tax-inclusive amounts of all legs.
func (t *Transaction) TotalCents() uint32 {
	var total uint32
	for _, l := range t.Legs {
		total += l.Fare.TotalCents
	}
	return total
}

// AllProvisioned reports whether every leg holds its seats.
func (t *Transaction) AllProvisioned() bool {
	for _, l := range t.Legs {
		if l.Status != LegProvisionallyReserved {
			return false
		}
	}
	return len(t.Legs) > 0
}

// Registry keeps in-flight transactions keyed by booking token. It
// is purely in-memory: a process restart discards every pending
// transaction, and the corresponding seat holds lapse on their own
// once their TTL passes.
type Registry struct {
	mu   sync.Mutex
	byID map[string]*Transaction
	ttl  time.Duration
	now  func() time.Time
}

// NewRegistry returns a Registry whose transactions expire after
// ttl, the same TTL the seat holds carry.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		byID: make(map[string]*Transaction),
		ttl:  ttl,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// TTL returns the hold/transaction lifetime.
func (r *Registry) TTL() time.Duration { return r.ttl }

// Create registers a new transaction for the user and returns it in
// the Collecting state.
func (r *Registry) Create(id string, userID uint64) *Transaction {
	now := r.now()
	t := &Transaction{
		ID:        id,
		UserID:    userID,
		Status:    StatusCollecting,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}
	r.mu.Lock()
	r.byID[id] = t
	r.mu.Unlock()
	return t
}

// Get returns the caller's pending transaction, or false when the
// token is unknown, expired, owned by someone else, or already
// settled. Expired entries are dropped on access.
func (r *Registry) Get(id string, userID uint64) (*Transaction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	if r.now().After(t.ExpiresAt) {
		delete(r.byID, id)
		return nil, false
	}
	if t.UserID != userID {
		return nil, false
	}
	return t, true
}

// Claim atomically moves the caller's transaction from
// AwaitingPayment to Settling and returns it. Exactly one of any
// number of concurrent claimers succeeds; the rest see false, as do
// callers with an unknown, expired or foreign token and callers whose
// transaction is in any other state. This is the settlement gate: a
// booking token can only be charged and committed (or aborted) once.
func (r *Registry) Claim(id string, userID uint64) (*Transaction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	if r.now().After(t.ExpiresAt) {
		delete(r.byID, id)
		return nil, false
	}
	if t.UserID != userID {
		return nil, false
	}
	if t.Status != StatusAwaitingPayment || !t.AllProvisioned() {
		return nil, false
	}
	t.Status = StatusSettling
	return t, true
}

// Unclaim returns a claimed transaction to AwaitingPayment, used when
// settlement could not reach a decision (bad request body, gateway
// error) and the caller may retry.
func (r *Registry) Unclaim(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.byID[id]; ok && t.Status == StatusSettling {
		t.Status = StatusAwaitingPayment
	}
}

// Remove drops a settled transaction from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.byID, id)
	r.mu.Unlock()
}

// Sweep removes every expired transaction and returns how many were
// dropped. The seat holds behind them expire independently in the
// database.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for id, t := range r.byID {
		if now.After(t.ExpiresAt) {
			delete(r.byID, id)
			n++
		}
	}
	return n
}
