package inventory

import "github.com/shopspring/decimal"

// Average is the weighted-average view of a product history.
type Average struct {
	PurchasedQuantity decimal.Decimal
	PurchasedCost     decimal.Decimal
	SoldQuantity      decimal.Decimal
	UnitCost          decimal.Decimal
}

// WeightedAverage blends every purchase with a positive net quantity into a
// single unit rate. Sales only reduce the quantity on hand.
func WeightedAverage(h History) Average {
	avg := Average{PurchasedQuantity: decimal.Zero, PurchasedCost: decimal.Zero, SoldQuantity: decimal.Zero}
	for _, p := range h.Purchases {
		net := p.Net()
		if !net.IsPositive() {
			continue
		}
		avg.PurchasedQuantity = avg.PurchasedQuantity.Add(net)
		avg.PurchasedCost = avg.PurchasedCost.Add(net.Mul(p.UnitCost))
	}
	for _, s := range h.Sales {
		avg.SoldQuantity = avg.SoldQuantity.Add(s.Net())
	}
	avg.UnitCost = unitCost(avg.PurchasedCost, avg.PurchasedQuantity)
	return avg
}

// OnHand is purchased minus sold quantity. It goes negative when sales
// outran purchases.
func (a Average) OnHand() decimal.Decimal {
	return a.PurchasedQuantity.Sub(a.SoldQuantity)
}

// Value prices the quantity on hand at the blended rate.
func (a Average) Value() decimal.Decimal {
	return a.OnHand().Mul(a.UnitCost)
}
