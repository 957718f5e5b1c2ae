package inventory

import (
	"github.com/shopspring/decimal"
)

// FIFOState is the result of replaying a product history: the layers still
// holding stock and the cost charged to every sale line.
type FIFOState struct {
	Layers []CostLayer `json:"layers"`
	Sales  []SaleCost  `json:"sales"`
}

// consumption remembers which layer a sale drew from so a later negative
// sale line can put the quantity back. Layer -1 marks an uncosted shortfall.
type consumption struct {
	layer    int
	quantity decimal.Decimal
}

// ReplayFIFO rebuilds cost layers from every purchase with a positive net
// quantity, then consumes them in order with every sale line. A sale larger
// than the remaining layers exhausts them and the excess costs nothing. A
// negative sale line undoes the most recent consumption first.
func ReplayFIFO(h History) FIFOState {
	layers := make([]CostLayer, 0, len(h.Purchases))
	for _, p := range h.Purchases {
		net := p.Net()
		if !net.IsPositive() {
			continue
		}
		layers = append(layers, CostLayer{Date: p.Date, Reference: p.Reference, Quantity: net, UnitCost: p.UnitCost})
	}

	var (
		stack []consumption
		sales = make([]SaleCost, 0, len(h.Sales))
	)
	for _, s := range h.Sales {
		net := s.Net()
		if net.IsZero() {
			continue
		}
		sc := SaleCost{SaleID: s.ID, Date: s.Date, Reference: s.Reference, Quantity: net, Cost: decimal.Zero, Shortfall: decimal.Zero}
		if net.IsPositive() {
			remaining := net
			for i := range layers {
				if !remaining.IsPositive() {
					break
				}
				if !layers[i].Quantity.IsPositive() {
					continue
				}
				take := decimal.Min(layers[i].Quantity, remaining)
				layers[i].Quantity = layers[i].Quantity.Sub(take)
				remaining = remaining.Sub(take)
				sc.Cost = sc.Cost.Add(take.Mul(layers[i].UnitCost))
				stack = append(stack, consumption{layer: i, quantity: take})
			}
			if remaining.IsPositive() {
				sc.Shortfall = remaining
				stack = append(stack, consumption{layer: -1, quantity: remaining})
			}
		} else {
			restore := net.Neg()
			for restore.IsPositive() && len(stack) > 0 {
				top := &stack[len(stack)-1]
				give := decimal.Min(top.quantity, restore)
				if top.layer >= 0 {
					layers[top.layer].Quantity = layers[top.layer].Quantity.Add(give)
					sc.Cost = sc.Cost.Sub(give.Mul(layers[top.layer].UnitCost))
				}
				top.quantity = top.quantity.Sub(give)
				restore = restore.Sub(give)
				if top.quantity.IsZero() {
					stack = stack[:len(stack)-1]
				}
			}
			sc.Shortfall = restore.Neg()
		}
		sc.UnitCost = unitCost(sc.Cost, sc.Quantity.Sub(sc.Shortfall))
		sales = append(sales, sc)
	}

	remaining := make([]CostLayer, 0, len(layers))
	for _, l := range layers {
		if l.Quantity.IsPositive() {
			remaining = append(remaining, l)
		}
	}
	return FIFOState{Layers: remaining, Sales: sales}
}

// Quantity sums the remaining layers.
func (s FIFOState) Quantity() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Layers {
		total = total.Add(l.Quantity)
	}
	return total
}

// Value sums quantity times cost over the remaining layers.
func (s FIFOState) Value() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Layers {
		total = total.Add(l.Value())
	}
	return total
}

// UnitCost is the quantity-weighted cost of the remaining layers.
func (s FIFOState) UnitCost() decimal.Decimal {
	return unitCost(s.Value(), s.Quantity())
}

// Cost prices the next quantity drawn from the remaining layers without
// consuming them.
func (s FIFOState) Cost(quantity decimal.Decimal) SaleCost {
	sc := SaleCost{Quantity: quantity, Cost: decimal.Zero, Shortfall: decimal.Zero}
	remaining := quantity
	for _, l := range s.Layers {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(l.Quantity, remaining)
		sc.Cost = sc.Cost.Add(take.Mul(l.UnitCost))
		remaining = remaining.Sub(take)
	}
	if remaining.IsPositive() {
		sc.Shortfall = remaining
	}
	sc.UnitCost = unitCost(sc.Cost, quantity.Sub(sc.Shortfall))
	return sc
}

// CostOf returns the replayed cost of one sale line.
func (s FIFOState) CostOf(saleID int64) (SaleCost, bool) {
	for _, sc := range s.Sales {
		if sc.SaleID == saleID {
			return sc, true
		}
	}
	return SaleCost{}, false
}

func unitCost(value, quantity decimal.Decimal) decimal.Decimal {
	if quantity.IsZero() {
		return decimal.Zero
	}
	return value.Div(quantity)
}
