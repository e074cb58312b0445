package booking

import "testing"

func TestComputeQuoteAppliesSixPercentTax(t *testing.T) {
	// 3 seats at 50.00 each: base 150.00, tax 9.00, total 159.00.
	q := ComputeQuote(3, 5000)
	if q.BaseCents != 15000 {
		t.Fatalf("base: got %d want 15000", q.BaseCents)
	}
	if q.TaxCents != 900 {
		t.Fatalf("tax: got %d want 900", q.TaxCents)
	}
	if q.TotalCents != 15900 {
		t.Fatalf("total: got %d want 15900", q.TotalCents)
	}
	if got := FormatCents(q.TotalCents); got != "159.00" {
		t.Fatalf("formatted total: got %q want %q", got, "159.00")
	}
}

func TestComputeQuoteRoundsTaxToNearestCent(t *testing.T) {
	cases := []struct {
		seats int
		fare  uint32
		tax   uint32
	}{
		{1, 999, 60},   // 59.94 cents -> 60
		{1, 100, 6},    // exactly 6
		{1, 1, 0},      // 0.06 cents -> 0
		{2, 4175, 501}, // 501.0 exactly
		{1, 5008, 300}, // 300.48 -> 300
		{1, 5092, 306}, // 305.52 -> 306
	}
	for _, tc := range cases {
		q := ComputeQuote(tc.seats, tc.fare)
		if q.TaxCents != tc.tax {
			t.Errorf("ComputeQuote(%d, %d): tax got %d want %d", tc.seats, tc.fare, q.TaxCents, tc.tax)
		}
		if q.TotalCents != q.BaseCents+q.TaxCents {
			t.Errorf("ComputeQuote(%d, %d): total %d != base %d + tax %d",
				tc.seats, tc.fare, q.TotalCents, q.BaseCents, q.TaxCents)
		}
	}
}

func TestFormatCentsPadsFraction(t *testing.T) {
	cases := map[uint32]string{
		0:     "0.00",
		5:     "0.05",
		100:   "1.00",
		15900: "159.00",
		10001: "100.01",
	}
	for cents, want := range cases {
		if got := FormatCents(cents); got != want {
			t.Errorf("FormatCents(%d): got %q want %q", cents, got, want)
		}
	}
}
