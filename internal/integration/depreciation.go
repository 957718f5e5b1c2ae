package integration

import "github.com/shopspring/decimal"

// DefaultDecliningRate is the annual declining-balance rate in percent.
var DefaultDecliningRate = decimal.NewFromInt(20)

var twelve = decimal.NewFromInt(12)

// StraightLine returns one year of straight-line depreciation, capped so the
// book value never drops below salvage.
func StraightLine(cost, salvage decimal.Decimal, lifeYears int, accumulated decimal.Decimal) decimal.Decimal {
	if lifeYears <= 0 {
		return decimal.Zero
	}
	base := cost.Sub(salvage)
	remaining := base.Sub(accumulated)
	if !remaining.IsPositive() {
		return decimal.Zero
	}
	annual := round2(base.Div(decimal.NewFromInt(int64(lifeYears))))
	return decimal.Min(annual, remaining)
}

// DecliningBalance returns one year of declining-balance depreciation on the
// current book value. A non-positive rate uses DefaultDecliningRate.
func DecliningBalance(bookValue, salvage, ratePercent decimal.Decimal) decimal.Decimal {
	if !ratePercent.IsPositive() {
		ratePercent = DefaultDecliningRate
	}
	remaining := bookValue.Sub(salvage)
	if !remaining.IsPositive() {
		return decimal.Zero
	}
	charge := round2(bookValue.Mul(ratePercent).Div(hundred))
	return decimal.Min(charge, remaining)
}

// Monthly spreads an annual charge over twelve months.
func Monthly(annual decimal.Decimal) decimal.Decimal {
	return round2(annual.Div(twelve))
}
