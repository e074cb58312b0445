package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
)

func sampleTrip() *model.Trip {
	return &model.Trip{
		ID: 1, Plate: "WXY1234", Source: "Kuala Lumpur", Destination: "Penang",
		TravelDate: "2026-03-10", DepartureTime: "08:30", ArrivalTime: "12:45",
		TotalSeats: 40, AvailableSeats: 38, FareCents: 5000,
	}
}

func sampleEntry() *model.LedgerEntry {
	return &model.LedgerEntry{
		ID: 3, TicketID: 654321, UserID: 42, Username: "amir", TripID: 1,
		Plate: "WXY1234", TravelDate: "2026-03-10", SeatNos: []uint32{5, 6},
		BookingDate: "2026-03-01", AmountCents: 10600,
	}
}

func TestTripLineFormat(t *testing.T) {
	got := TripLine(sampleTrip())
	want := "1,WXY1234,2026-03-10,Kuala Lumpur,Penang,08:30,12:45,40,38,50.00"
	if got != want {
		t.Fatalf("trip line:\n got %q\nwant %q", got, want)
	}
}

func TestSeatLineFormat(t *testing.T) {
	if got := SeatLine(1, []uint32{5, 6}); got != "1,2,5,6" {
		t.Fatalf("seat line: got %q want %q", got, "1,2,5,6")
	}
	if got := SeatLine(7, nil); got != "7,0" {
		t.Fatalf("empty seat line: got %q want %q", got, "7,0")
	}
}

func TestLedgerLineFormat(t *testing.T) {
	got := LedgerLine(sampleEntry())
	want := "amir,654321,1,WXY1234,2026-03-01,2,5 6,106.00"
	if got != want {
		t.Fatalf("ledger line:\n got %q\nwant %q", got, want)
	}
}

func TestCancellationLineAppendsRefund(t *testing.T) {
	e := sampleEntry()
	c := &model.CancellationEntry{
		TicketID: e.TicketID, UserID: e.UserID, Username: e.Username, TripID: e.TripID,
		Plate: e.Plate, TravelDate: e.TravelDate, SeatNos: e.SeatNos,
		BookingDate: e.BookingDate, AmountCents: e.AmountCents, RefundCents: e.AmountCents,
	}
	got := CancellationLine(c)
	want := "amir,654321,1,WXY1234,2026-03-01,2,5 6,106.00,106.00"
	if got != want {
		t.Fatalf("cancellation line:\n got %q\nwant %q", got, want)
	}
}

func TestFlushWritesSnapshotsAtomically(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	tripCols := []string{"id", "plate", "source", "destination", "travel_date",
		"departure_time", "arrival_time", "total_seats", "available_seats",
		"fare_cents", "created_at", "updated_at"}
	ledgerCols := []string{"id", "ticket_id", "user_id", "username", "trip_id",
		"plate", "travel_date", "booking_date", "amount_cents", "created_at"}
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM trips ORDER BY id").
		WillReturnRows(sqlmock.NewRows(tripCols).
			AddRow(1, "WXY1234", "Kuala Lumpur", "Penang", "2026-03-10",
				"08:30", "12:45", 40, 38, 5000, now, now))
	mock.ExpectQuery("FROM trip_seats WHERE status").
		WillReturnRows(sqlmock.NewRows([]string{"trip_id", "seat_no"}).
			AddRow(1, 5).AddRow(1, 6))
	mock.ExpectQuery("FROM reservations r ORDER BY r.id").
		WillReturnRows(sqlmock.NewRows(ledgerCols).
			AddRow(3, 654321, 42, "amir", 1, "WXY1234", "2026-03-10", "2026-03-01", 10600, now))
	mock.ExpectQuery("FROM reservation_seats WHERE reservation_id").
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"seat_no"}).AddRow(5).AddRow(6))
	mock.ExpectCommit()

	dir := t.TempDir()
	s := New(db, dir,
		repository.NewTripRepo(db), repository.NewSeatRepo(db), repository.NewLedgerRepo(db))

	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}

	checks := map[string]string{
		TripsFile:        "1,WXY1234,2026-03-10,Kuala Lumpur,Penang,08:30,12:45,40,38,50.00\n",
		SeatsFile:        "1,2,5,6\n",
		ReservationsFile: "amir,654321,1,WXY1234,2026-03-01,2,5 6,106.00\n",
	}
	for name, want := range checks {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(data) != want {
			t.Errorf("%s:\n got %q\nwant %q", name, string(data), want)
		}
	}

	// The temp files used for the atomic swap must be gone.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestAppendCancellationIsAppendOnly(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	dir := t.TempDir()
	s := New(db, dir,
		repository.NewTripRepo(db), repository.NewSeatRepo(db), repository.NewLedgerRepo(db))

	c := &model.CancellationEntry{
		TicketID: 654321, Username: "amir", TripID: 1, Plate: "WXY1234",
		TravelDate: "2026-03-10", SeatNos: []uint32{5, 6},
		BookingDate: "2026-03-01", AmountCents: 10600, RefundCents: 10600,
	}
	if err := s.AppendCancellation(c); err != nil {
		t.Fatalf("append: %v", err)
	}
	c2 := *c
	c2.TicketID = 111222
	if err := s.AppendCancellation(&c2); err != nil {
		t.Fatalf("append second: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, CancellationsFile))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines: got %d want 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], "amir,654321,") {
		t.Errorf("first line: got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "amir,111222,") {
		t.Errorf("second line: got %q", lines[1])
	}
}
