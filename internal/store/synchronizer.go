// Package store keeps the persisted record sets in agreement. The
// database is the transactional source of truth; the Synchronizer
// provides the commit-point discipline around it and exports the
// four flat-file record sets (trip capacity, seat occupancy, active
// ledger, cancellation ledger) that downstream operator tooling
// reads. Snapshot files are always derived from committed state, so
// they can lag during a crash but can never disagree with each other
// about which seats are occupied.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/iliyamo/bus-seat-reservation/internal/booking"
	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
)

// Snapshot file names inside the data directory.
const (
	TripsFile         = "trips.txt"
	SeatsFile         = "seats.txt"
	ReservationsFile  = "reservations.txt"
	CancellationsFile = "cancellations.txt"
)

// Synchronizer coordinates the commit point across the stores. All
// seat and ledger mutations go through WithinTx; after a successful
// commit the caller flushes the affected snapshot files. Flushes are
// serialized by a mutex so concurrent commits cannot interleave
// partial file contents.
type Synchronizer struct {
	db     *sql.DB
	dir    string
	trips  *repository.TripRepo
	seats  *repository.SeatRepo
	ledger *repository.LedgerRepo

	mu sync.Mutex
}

// New returns a Synchronizer writing snapshots under dir. The
// directory is created on first flush if missing.
func New(db *sql.DB, dir string, trips *repository.TripRepo, seats *repository.SeatRepo, ledger *repository.LedgerRepo) *Synchronizer {
	return &Synchronizer{db: db, dir: dir, trips: trips, seats: seats, ledger: ledger}
}

// WithinTx runs fn inside a database transaction and commits only if
// fn returns nil; any error rolls everything back. This is the
// single commit point: either every store reflects the mutation or
// none does.
func (s *Synchronizer) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Flush rewrites the trip, seat-occupancy and active-ledger snapshot
// files from the current committed state. Each file is written to a
// temp location and atomically swapped into place, so a crash mid
// rewrite leaves the previous complete snapshot rather than a
// truncated one. Rewriting the ledger this way is exactly the
// read-all/filter/replace the cancellation flow needs: the entry
// being cancelled is simply no longer in the committed state.
func (s *Synchronizer) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tripLines, seatLines, ledgerLines []string
	err := s.WithinTx(ctx, func(tx *sql.Tx) error {
		trips, err := s.trips.ListAllTx(ctx, tx)
		if err != nil {
			return fmt.Errorf("list trips: %w", err)
		}
		for i := range trips {
			tripLines = append(tripLines, TripLine(&trips[i]))
		}
		occupied, order, err := s.seats.OccupiedByTripTx(ctx, tx)
		if err != nil {
			return fmt.Errorf("list seat occupancy: %w", err)
		}
		for _, tripID := range order {
			seatLines = append(seatLines, SeatLine(tripID, occupied[tripID]))
		}
		entries, err := s.ledger.ListAllTx(ctx, tx)
		if err != nil {
			return fmt.Errorf("list ledger: %w", err)
		}
		for i := range entries {
			ledgerLines = append(ledgerLines, LedgerLine(&entries[i]))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.writeAtomic(TripsFile, tripLines); err != nil {
		return fmt.Errorf("flush trip store: %w", err)
	}
	if err := s.writeAtomic(SeatsFile, seatLines); err != nil {
		return fmt.Errorf("flush seat store: %w", err)
	}
	if err := s.writeAtomic(ReservationsFile, ledgerLines); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	return nil
}

// AppendCancellation adds one line to the cancellation ledger file.
// Cancellations are append-only history, so no rewrite is needed.
func (s *Synchronizer) AppendCancellation(c *model.CancellationEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir data dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(s.dir, CancellationsFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open cancellation ledger: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(CancellationLine(c) + "\n"); err != nil {
		return fmt.Errorf("append cancellation: %w", err)
	}
	return nil
}

// writeAtomic writes lines to name via a temp file in the same
// directory followed by a rename, which is atomic on POSIX systems.
func (s *Synchronizer) writeAtomic(name string, lines []string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	for _, line := range lines {
		if _, err := tmp.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	path := tmp.Name()
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(path, filepath.Join(s.dir, name)); err != nil {
		return err
	}
	tmp = nil
	return nil
}

// TripLine renders one trip-store record:
// tripID,plate,date,source,destination,departure,arrival,totalSeats,availableSeats,fare
func TripLine(t *model.Trip) string {
	return fmt.Sprintf("%d,%s,%s,%s,%s,%s,%s,%d,%d,%s",
		t.ID, t.Plate, t.TravelDate, t.Source, t.Destination,
		t.DepartureTime, t.ArrivalTime, t.TotalSeats, t.AvailableSeats,
		booking.FormatCents(t.FareCents))
}

// SeatLine renders one seat-occupancy record:
// tripID,reservedCount,seat1,seat2,...
func SeatLine(tripID uint64, seatNos []uint32) string {
	line := fmt.Sprintf("%d,%d", tripID, len(seatNos))
	for _, no := range seatNos {
		line += fmt.Sprintf(",%d", no)
	}
	return line
}

// LedgerLine renders one active-ledger record:
// username,ticketID,tripID,plate,bookingDate,seatCount,seats,amount
func LedgerLine(e *model.LedgerEntry) string {
	return fmt.Sprintf("%s,%d,%d,%s,%s,%d,%s,%s",
		e.Username, e.TicketID, e.TripID, e.Plate, e.BookingDate,
		len(e.SeatNos), repository.JoinSeatNos(e.SeatNos),
		booking.FormatCents(e.AmountCents))
}

// CancellationLine renders one cancellation-ledger record: the
// ledger shape with the refund amount appended.
func CancellationLine(c *model.CancellationEntry) string {
	return fmt.Sprintf("%s,%d,%d,%s,%s,%d,%s,%s,%s",
		c.Username, c.TicketID, c.TripID, c.Plate, c.BookingDate,
		len(c.SeatNos), repository.JoinSeatNos(c.SeatNos),
		booking.FormatCents(c.AmountCents), booking.FormatCents(c.RefundCents))
}
