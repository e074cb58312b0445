package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

func newMock(t *testing.T) (*SeatRepo, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	return NewSeatRepo(db), mock, func() { db.Close() }
}

func testTrip() *model.Trip {
	return &model.Trip{ID: 1, TotalSeats: 40, AvailableSeats: 10, FareCents: 5000}
}

func TestReserveTxHoldsSeatsAndDecrementsCounter(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT seat_no, status FROM trip_seats").
		WillReturnRows(sqlmock.NewRows([]string{"seat_no", "status"}).
			AddRow(5, "FREE").AddRow(6, "FREE"))
	mock.ExpectExec("UPDATE trip_seats SET status").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("UPDATE trips SET available_seats").
		WithArgs(2, uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := repo.ReserveTx(ctx, tx, testTrip(), []uint32{5, 6}, model.SeatHeld); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReserveTxRejectsOccupiedSeat(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT seat_no, status FROM trip_seats").
		WillReturnRows(sqlmock.NewRows([]string{"seat_no", "status"}).
			AddRow(5, "FREE").AddRow(6, "HELD"))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, _ := repo.db.BeginTx(ctx, nil)
	err := repo.ReserveTx(ctx, tx, testTrip(), []uint32{5, 6}, model.SeatHeld)
	if !errors.Is(err, ErrSeatUnavailable) {
		t.Fatalf("got %v want ErrSeatUnavailable", err)
	}
	_ = tx.Rollback()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReserveTxRejectsOutOfRangeSeat(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	// No seat query happens: the range check fails first.
	mock.ExpectBegin()
	mock.ExpectRollback()

	ctx := context.Background()
	tx, _ := repo.db.BeginTx(ctx, nil)
	err := repo.ReserveTx(ctx, tx, testTrip(), []uint32{41}, model.SeatHeld)
	if !errors.Is(err, ErrInvalidSeat) {
		t.Fatalf("got %v want ErrInvalidSeat", err)
	}
	_ = tx.Rollback()
}

func TestReserveTxRejectsWhenNotEnoughAvailability(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectRollback()

	trip := testTrip()
	trip.AvailableSeats = 1

	ctx := context.Background()
	tx, _ := repo.db.BeginTx(ctx, nil)
	err := repo.ReserveTx(ctx, tx, trip, []uint32{5, 6}, model.SeatHeld)
	if !errors.Is(err, ErrInsufficientSeats) {
		t.Fatalf("got %v want ErrInsufficientSeats", err)
	}
	_ = tx.Rollback()
}

func TestReleaseTxRestoresCounterByFreedSeats(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE trip_seats SET status").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("UPDATE trips SET available_seats").
		WithArgs(int64(2), uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, _ := repo.db.BeginTx(ctx, nil)
	freed, err := repo.ReleaseTx(ctx, tx, 1, []uint32{5, 6})
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if freed != 2 {
		t.Fatalf("freed: got %d want 2", freed)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReleaseTxIsIdempotent(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	// All seats already FREE: no rows change, no counter update.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE trip_seats SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, _ := repo.db.BeginTx(ctx, nil)
	freed, err := repo.ReleaseTx(ctx, tx, 1, []uint32{5, 6})
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if freed != 0 {
		t.Fatalf("freed: got %d want 0", freed)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
