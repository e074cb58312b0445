package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

func newLedgerMock(t *testing.T) (*LedgerRepo, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	return NewLedgerRepo(db), mock, func() { db.Close() }
}

func TestAllocateTicketTxRetriesOnCollision(t *testing.T) {
	repo, mock, done := newLedgerMock(t)
	defer done()

	// First draw collides with an active ticket, second is free.
	draws := []uint32{111111, 222222}
	repo.Draw = func() (uint32, error) {
		d := draws[0]
		draws = draws[1:]
		return d, nil
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1 FROM reservations WHERE ticket_id").
		WithArgs(uint32(111111)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery("SELECT 1 FROM reservations WHERE ticket_id").
		WithArgs(uint32(222222)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, _ := repo.db.BeginTx(ctx, nil)
	got, err := repo.AllocateTicketTx(ctx, tx)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if got != 222222 {
		t.Fatalf("ticket: got %d want 222222", got)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAllocateTicketTxGivesUpOnSaturatedSpace(t *testing.T) {
	repo, mock, done := newLedgerMock(t)
	defer done()

	repo.Draw = func() (uint32, error) { return 333333, nil }

	mock.ExpectBegin()
	for i := 0; i < maxTicketAttempts; i++ {
		mock.ExpectQuery("SELECT 1 FROM reservations WHERE ticket_id").
			WithArgs(uint32(333333)).
			WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	}
	mock.ExpectRollback()

	ctx := context.Background()
	tx, _ := repo.db.BeginTx(ctx, nil)
	_, err := repo.AllocateTicketTx(ctx, tx)
	if !errors.Is(err, ErrTicketSpaceExhausted) {
		t.Fatalf("got %v want ErrTicketSpaceExhausted", err)
	}
	_ = tx.Rollback()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateTxWritesEntryAndSeats(t *testing.T) {
	repo, mock, done := newLedgerMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reservations").
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectExec("INSERT INTO reservation_seats").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	e := &model.LedgerEntry{
		TicketID:    654321,
		UserID:      42,
		Username:    "amir",
		TripID:      1,
		Plate:       "WXY1234",
		TravelDate:  "2026-03-10",
		SeatNos:     []uint32{5, 6},
		BookingDate: "2026-03-01",
		AmountCents: 10600,
	}

	ctx := context.Background()
	tx, _ := repo.db.BeginTx(ctx, nil)
	if err := repo.CreateTx(ctx, tx, e); err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.ID != 3 {
		t.Fatalf("entry id: got %d want 3", e.ID)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByTicketForUserTxHidesForeignTickets(t *testing.T) {
	repo, mock, done := newLedgerMock(t)
	defer done()

	cols := []string{"id", "ticket_id", "user_id", "username", "trip_id", "plate",
		"travel_date", "booking_date", "amount_cents", "created_at"}
	mock.ExpectBegin()
	mock.ExpectQuery("FROM reservations r WHERE r.ticket_id").
		WithArgs(uint32(123456)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(3, 123456, 99, "other", 1, "WXY1234", "2026-03-10", "2026-03-01", 10600, time.Now()))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, _ := repo.db.BeginTx(ctx, nil)
	_, err := repo.GetByTicketForUserTx(ctx, tx, 123456, 42)
	if !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("got %v want ErrTicketNotFound for foreign ticket", err)
	}
	_ = tx.Rollback()
}

func TestMigrateTxMovesEntryToCancellationLedger(t *testing.T) {
	repo, mock, done := newLedgerMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cancellations").
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectExec("DELETE FROM reservations").
		WithArgs(uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	e := &model.LedgerEntry{
		ID:          3,
		TicketID:    654321,
		UserID:      42,
		Username:    "amir",
		TripID:      1,
		Plate:       "WXY1234",
		TravelDate:  "2026-03-10",
		SeatNos:     []uint32{5, 6},
		BookingDate: "2026-03-01",
		AmountCents: 10600,
	}

	ctx := context.Background()
	tx, _ := repo.db.BeginTx(ctx, nil)
	c, err := repo.MigrateTx(ctx, tx, e, e.AmountCents)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if c.ID != 9 {
		t.Fatalf("cancellation id: got %d want 9", c.ID)
	}
	if c.RefundCents != e.AmountCents {
		t.Fatalf("refund: got %d want full amount %d", c.RefundCents, e.AmountCents)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestJoinSeatNos(t *testing.T) {
	if got := JoinSeatNos([]uint32{5, 6, 12}); got != "5 6 12" {
		t.Fatalf("got %q want %q", got, "5 6 12")
	}
	if got := JoinSeatNos(nil); got != "" {
		t.Fatalf("got %q want empty", got)
	}
}
