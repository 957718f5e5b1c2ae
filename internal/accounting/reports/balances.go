package reports

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// AccountBalance models an account with aggregated ledger movements.
type AccountBalance struct {
	AccountID int64
	Code      string
	Name      string
	Type      accounting.AccountType
	IsActive  bool
	Opening   decimal.Decimal
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Closing computes the debit-minus-credit closing balance for the account.
func (a AccountBalance) Closing() decimal.Decimal {
	return a.Opening.Add(a.Debit).Sub(a.Credit)
}

// Natural returns the closing balance signed by the account's normal side.
func (a AccountBalance) Natural() decimal.Decimal {
	return a.Type.NaturalBalance(a.Closing())
}

// GroupKey returns a key used for grouping trial balance rows.
func (a AccountBalance) GroupKey() string {
	if len(a.Code) >= 2 {
		return a.Code[:2]
	}
	return a.Code
}
