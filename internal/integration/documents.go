package integration

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Channel selects the cash or bank role for money movements.
type Channel string

const (
	ChannelCash Channel = "CASH"
	ChannelBank Channel = "BANK"
)

// SaleItem is one invoice line. Stocked items are costed by the valuation engine.
type SaleItem struct {
	ProductID int64
	Quantity  decimal.Decimal
	Stocked   bool
}

// SaleInvoice is a posted sales invoice. Total is Subtotal plus VAT.
type SaleInvoice struct {
	Scope    shared.Scope
	ID       int64
	Number   string
	Date     time.Time
	Subtotal decimal.Decimal
	VAT      decimal.Decimal
	Items    []SaleItem
	Method   inventory.Method
	ActorID  int64
}

// PurchaseBill is a posted supplier bill of stocked goods.
type PurchaseBill struct {
	Scope    shared.Scope
	ID       int64
	Number   string
	Date     time.Time
	Subtotal decimal.Decimal
	VAT      decimal.Decimal
	ActorID  int64
}

// Payment settles a receivable or a payable. AccountID overrides the channel role.
type Payment struct {
	Scope     shared.Scope
	ID        int64
	Number    string
	Date      time.Time
	Amount    decimal.Decimal
	Channel   Channel
	AccountID int64
	ActorID   int64
}

// ReturnedItem is a returned stocked line valued at the cost originally charged.
type ReturnedItem struct {
	ProductID int64
	Cost      decimal.Decimal
}

// CreditNote is a sales return.
type CreditNote struct {
	Scope    shared.Scope
	ID       int64
	Number   string
	Date     time.Time
	Subtotal decimal.Decimal
	VAT      decimal.Decimal
	Items    []ReturnedItem
	ActorID  int64
}

// DebitNote is a purchase return.
type DebitNote struct {
	Scope    shared.Scope
	ID       int64
	Number   string
	Date     time.Time
	Subtotal decimal.Decimal
	VAT      decimal.Decimal
	ActorID  int64
}

// FundTransfer moves money between two asset accounts.
type FundTransfer struct {
	Scope         shared.Scope
	ID            int64
	Reference     string
	Date          time.Time
	FromAccountID int64
	ToAccountID   int64
	Amount        decimal.Decimal
	ActorID       int64
}

// BadDebtWriteOff writes off part or all of the unpaid remainder of an
// invoice. Sequence numbers successive write-offs of the same invoice; zero
// means the first.
type BadDebtWriteOff struct {
	Scope         shared.Scope
	InvoiceID     int64
	InvoiceNumber string
	Sequence      int
	Date          time.Time
	Amount        decimal.Decimal
	Reason        string
	ActorID       int64
}

// DepreciationCharge books one period of depreciation for an asset.
type DepreciationCharge struct {
	Scope     shared.Scope
	AssetID   int64
	AssetCode string
	Date      time.Time
	Amount    decimal.Decimal
	ActorID   int64
}

// AssetDisposal removes an asset from the books. Zero proceeds is a write-off.
type AssetDisposal struct {
	Scope                   shared.Scope
	AssetID                 int64
	AssetCode               string
	Date                    time.Time
	Cost                    decimal.Decimal
	AccumulatedDepreciation decimal.Decimal
	Proceeds                decimal.Decimal
	// AssetAccountID and ProceedsAccountID override role lookups when set.
	AssetAccountID    int64
	ProceedsAccountID int64
	ActorID           int64
}

// BookValue is cost less accumulated depreciation.
func (d AssetDisposal) BookValue() decimal.Decimal {
	return d.Cost.Sub(d.AccumulatedDepreciation)
}

// PayrollRun books salaries. Gross not covered by PAYE, pension and net pay
// stays in the payroll liability.
type PayrollRun struct {
	Scope     shared.Scope
	ID        int64
	Reference string
	Date      time.Time
	Gross     decimal.Decimal
	PAYE      decimal.Decimal
	Pension   decimal.Decimal
	Net       decimal.Decimal
	Channel   Channel
	ActorID   int64
}

// OpeningBalance sets an account's starting balance. Amount is signed by the
// account's normal side.
type OpeningBalance struct {
	Scope     shared.Scope
	AccountID int64
	Date      time.Time
	Amount    decimal.Decimal
	ActorID   int64
}

// YearEndClose closes revenue and expense for a fiscal year into retained earnings.
type YearEndClose struct {
	Scope        shared.Scope
	FiscalYearID int64
	Start        time.Time
	End          time.Time
	ActorID      int64
}
