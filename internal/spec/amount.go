package spec

import "github.com/cockroachdb/apd/v3"

// CentsOf converts a decimal amount to cents exactly. It reports false when
// the value carries more than two fractional digits or overflows int64.
//
// Amounts live in the ledger as integer cents; keeping the conversion exact
// means bound comparisons never suffer float rounding at the boundary.
func CentsOf(d *apd.Decimal) (int64, bool) {
	var r apd.Decimal
	r.Set(d)
	r.Reduce(&r)
	if r.Exponent < -2 {
		return 0, false
	}
	r.Exponent += 2
	n, err := r.Int64()
	if err != nil {
		return 0, false
	}
	return n, true
}
