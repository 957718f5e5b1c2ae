package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Method selects the costing policy for one computation.
type Method string

const (
	// MethodFIFO consumes the oldest cost layers first.
	MethodFIFO Method = "FIFO"
	// MethodWeightedAverage blends every purchase into one unit rate.
	MethodWeightedAverage Method = "WEIGHTED_AVERAGE"
)

// ParseMethod accepts FIFO or WEIGHTED_AVERAGE in any case. Empty yields FIFO.
func ParseMethod(raw string) (Method, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", string(MethodFIFO):
		return MethodFIFO, nil
	case string(MethodWeightedAverage), "WAC", "AVERAGE":
		return MethodWeightedAverage, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMethod, raw)
}

// Product is a stocked item owned by a business.
type Product struct {
	ID            int64           `json:"id"`
	BusinessID    int64           `json:"business_id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	CategoryID    *int64          `json:"category_id"`
	CategoryName  string          `json:"category_name"`
	IsActive      bool            `json:"is_active"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalesPrice    decimal.Decimal `json:"sales_price"`
}

// PurchaseLine is one purchased quantity of a product.
type PurchaseLine struct {
	ID         int64           `json:"id"`
	BusinessID int64           `json:"business_id"`
	ProductID  int64           `json:"product_id"`
	Date       time.Time       `json:"date"`
	Reference  string          `json:"reference"`
	Quantity   decimal.Decimal `json:"quantity"`
	Returned   decimal.Decimal `json:"returned"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
}

// Net returns the purchased quantity minus returns.
func (l PurchaseLine) Net() decimal.Decimal {
	return l.Quantity.Sub(l.Returned)
}

// SaleLine is one sold quantity of a product.
type SaleLine struct {
	ID         int64           `json:"id"`
	BusinessID int64           `json:"business_id"`
	ProductID  int64           `json:"product_id"`
	Date       time.Time       `json:"date"`
	Reference  string          `json:"reference"`
	Quantity   decimal.Decimal `json:"quantity"`
	Returned   decimal.Decimal `json:"returned"`
}

// Net returns the sold quantity minus returns. A negative value restores stock.
func (l SaleLine) Net() decimal.Decimal {
	return l.Quantity.Sub(l.Returned)
}

// History is the purchase and sale record of one product up to a date, each
// slice ordered by date then id.
type History struct {
	Purchases []PurchaseLine
	Sales     []SaleLine
}

// CostLayer is a FIFO lot rebuilt from purchases and prior consumption.
type CostLayer struct {
	Date      time.Time       `json:"date"`
	Reference string          `json:"reference"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// Value returns quantity times unit cost.
func (l CostLayer) Value() decimal.Decimal {
	return l.Quantity.Mul(l.UnitCost)
}

// SaleCost is the cost charged to one sale line during replay.
type SaleCost struct {
	SaleID    int64           `json:"sale_id"`
	Date      time.Time       `json:"date"`
	Reference string          `json:"reference"`
	Quantity  decimal.Decimal `json:"quantity"`
	Cost      decimal.Decimal `json:"cost"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	// Shortfall is quantity sold beyond the available layers; it carries no cost.
	Shortfall decimal.Decimal `json:"shortfall"`
}

// Valuation is the value of a product's remaining stock.
type Valuation struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	Method      Method          `json:"method"`
	AsOf        time.Time       `json:"as_of"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	TotalValue  decimal.Decimal `json:"total_value"`
}

// ReportFilter narrows the valuation report.
type ReportFilter struct {
	Method     Method
	CategoryID *int64
	AsOf       time.Time
}

// ReportItem is one product row of the valuation report.
type ReportItem struct {
	Valuation
	Category      string          `json:"category"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalesPrice    decimal.Decimal `json:"sales_price"`
}

// ReportCategory groups items by product category.
type ReportCategory struct {
	Name       string          `json:"name"`
	Items      []ReportItem    `json:"items"`
	Quantity   decimal.Decimal `json:"quantity"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// ReportSummary aggregates the whole report.
type ReportSummary struct {
	Products   int             `json:"products"`
	Quantity   decimal.Decimal `json:"quantity"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// ValuationReport values every active product with stock on hand.
type ValuationReport struct {
	AsOf       time.Time        `json:"as_of"`
	Method     Method           `json:"method"`
	Categories []ReportCategory `json:"categories"`
	Summary    ReportSummary    `json:"summary"`
}

// UncategorizedLabel names the group of products without a category.
const UncategorizedLabel = "Uncategorized"

// MovementType distinguishes stock card rows.
type MovementType string

const (
	MovementPurchase MovementType = "PURCHASE"
	MovementSale     MovementType = "SALE"
)

// Movement is one stock card row with running totals.
type Movement struct {
	Date            time.Time       `json:"date"`
	Type            MovementType    `json:"type"`
	Reference       string          `json:"reference"`
	QuantityIn      decimal.Decimal `json:"quantity_in"`
	QuantityOut     decimal.Decimal `json:"quantity_out"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	BalanceQuantity decimal.Decimal `json:"balance_quantity"`
	BalanceValue    decimal.Decimal `json:"balance_value"`
}

// PurchaseInput records a purchased quantity. Line tells apart several lines
// of one product on the same document.
type PurchaseInput struct {
	ProductID int64
	Date      time.Time
	Reference string
	Line      int
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
	ActorID   int64
}

// SaleInput records a sold quantity.
type SaleInput struct {
	ProductID int64
	Date      time.Time
	Reference string
	Line      int
	Quantity  decimal.Decimal
	ActorID   int64
}

// ReturnInput records a return against an earlier purchase or sale line.
type ReturnInput struct {
	LineID   int64
	Quantity decimal.Decimal
	ActorID  int64
}

var (
	// ErrProductNotFound indicates the product does not belong to the business.
	ErrProductNotFound = errors.New("inventory: product not found")
	// ErrInvalidMethod indicates an unknown costing method.
	ErrInvalidMethod = errors.New("inventory: invalid valuation method")
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrInvalidUnitCost indicates a negative cost.
	ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")
	// ErrLineNotFound indicates a missing purchase or sale line.
	ErrLineNotFound = errors.New("inventory: line not found")
	// ErrReturnExceedsQuantity indicates more returned than originally moved.
	ErrReturnExceedsQuantity = errors.New("inventory: return exceeds line quantity")
	// ErrStaleLayers indicates cached layers of a product could not be
	// invalidated after a write.
	ErrStaleLayers = errors.New("inventory: layer cache invalidation failed")
)

// dateOnly truncates t to a UTC calendar day.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
