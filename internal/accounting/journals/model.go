package journals

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrVoucherNotFound indicates a missing voucher.
	ErrVoucherNotFound = errors.New("journals: voucher not found")
	// ErrInvalidStatus indicates the action is not allowed in the current status.
	ErrInvalidStatus = errors.New("journals: invalid status transition")
)

// Status enumerates the voucher lifecycle. Transitions are one-way.
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusPosted Status = "POSTED"
)

// Voucher is a manually authored balanced batch.
type Voucher struct {
	ID          int64
	BusinessID  int64
	BranchID    *int64
	Sequence    int64
	Number      string
	Date        time.Time
	Description string
	Reference   string
	Status      Status
	Lines       []Line
	BatchID     *uuid.UUID
	CreatedBy   int64
	PostedBy    *int64
	CreatedAt   time.Time
	PostedAt    *time.Time
}

// Line is one voucher line, stored as JSON until posting.
type Line struct {
	AccountID   int64           `json:"account_id"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty"`
}

// FormatNumber renders the per-business voucher number.
func FormatNumber(seq int64) string {
	return fmt.Sprintf("JV-%05d", seq)
}

// Totals sums both sides of the voucher.
func (v Voucher) Totals() (decimal.Decimal, decimal.Decimal) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, line := range v.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}
