package integration

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

var hundred = decimal.NewFromInt(100)

// round2 rounds a monetary amount to cents.
func round2(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}

func monetary(qty, unitCost decimal.Decimal) decimal.Decimal {
	return round2(qty.Mul(unitCost))
}

// compact drops zero-amount lines and turns negative amounts into the
// opposite side.
func compact(lines []accounting.PostingLine) []accounting.PostingLine {
	out := make([]accounting.PostingLine, 0, len(lines))
	for _, line := range lines {
		if line.Debit.IsNegative() {
			line.Credit, line.Debit = line.Credit.Add(line.Debit.Neg()), decimal.Zero
		}
		if line.Credit.IsNegative() {
			line.Debit, line.Credit = line.Debit.Add(line.Credit.Neg()), decimal.Zero
		}
		if line.Debit.IsZero() && line.Credit.IsZero() {
			continue
		}
		out = append(out, line)
	}
	return out
}
