package booking

import "fmt"

// TaxRateBasisPoints is the fixed sales-and-service tax applied to
// every base fare, expressed in basis points (6%).
const TaxRateBasisPoints = 600

// Quote is the computed price of one leg: base fare, tax surcharge
// and the payable total, all in cents.
type Quote struct {
	BaseCents  uint32 `json:"base_cents"`
	TaxCents   uint32 `json:"tax_cents"`
	TotalCents uint32 `json:"total_cents"`
}

// ComputeQuote prices a leg: base = seats x unit fare, tax = 6% of
// the base (rounded to the nearest cent), total = base + tax.
func ComputeQuote(seatCount int, fareCents uint32) Quote {
	base := uint32(seatCount) * fareCents
	tax := uint32((uint64(base)*TaxRateBasisPoints + 5000) / 10000)
	return Quote{
		BaseCents:  base,
		TaxCents:   tax,
		TotalCents: base + tax,
	}
}

// FormatCents renders a cent amount as a decimal string with two
// fraction digits (15900 -> "159.00"), the format used in the ledger
// files and responses.
func FormatCents(cents uint32) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
