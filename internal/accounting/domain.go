package accounting

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is one of the five account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// DebitNormal reports whether the natural balance of t sits on the debit side.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// NaturalBalance signs a debit-minus-credit amount by the account's normal side.
func (t AccountType) NaturalBalance(debitMinusCredit decimal.Decimal) decimal.Decimal {
	if t.DebitNormal() {
		return debitMinusCredit
	}
	return debitMinusCredit.Neg()
}

// Account models a chart of accounts node.
type Account struct {
	ID         int64
	BusinessID int64
	Code       string
	Name       string
	Type       AccountType
	ParentID   *int64
	IsActive   bool
	IsSystem   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DocumentType names the originating document of a ledger batch.
type DocumentType string

const (
	DocumentJournalVoucher DocumentType = "JOURNAL_VOUCHER"
	DocumentSalesInvoice   DocumentType = "SALES_INVOICE"
	DocumentPurchaseBill   DocumentType = "PURCHASE_BILL"
	DocumentCreditNote     DocumentType = "CREDIT_NOTE"
	DocumentDebitNote      DocumentType = "DEBIT_NOTE"
	DocumentPayment        DocumentType = "PAYMENT"
	DocumentFundTransfer   DocumentType = "FUND_TRANSFER"
	DocumentBadDebt        DocumentType = "BAD_DEBT"
	DocumentDepreciation   DocumentType = "DEPRECIATION"
	DocumentAssetDisposal  DocumentType = "ASSET_DISPOSAL"
	DocumentPayroll        DocumentType = "PAYROLL"
	DocumentOpeningBalance DocumentType = "OPENING_BALANCE"
	DocumentClosingEntry   DocumentType = "CLOSING_ENTRY"
	DocumentReversal       DocumentType = "REVERSAL"
)

// DocumentLink ties a batch to the document that produced it.
type DocumentLink struct {
	Type      DocumentType `json:"type,omitempty"`
	ID        int64        `json:"id,omitempty"`
	Reference string       `json:"reference,omitempty"`
}

// SourceKey is a stable identity for document-sourced batches.
func (d DocumentLink) SourceKey(businessID int64, purpose string) string {
	return fmt.Sprintf("%d:%s:%d:%s", businessID, d.Type, d.ID, purpose)
}

// LedgerEntry is one immutable debit-or-credit row.
type LedgerEntry struct {
	ID          int64
	BatchID     uuid.UUID
	BusinessID  int64
	BranchID    *int64
	AccountID   int64
	Date        time.Time
	Description string
	Reference   string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Document    DocumentLink
	CreatedAt   time.Time
}

// PostingLine describes one line of a posting request.
type PostingLine struct {
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// Dr builds a debit line.
func Dr(accountID int64, amount decimal.Decimal, description string) PostingLine {
	return PostingLine{AccountID: accountID, Debit: amount, Description: description}
}

// Cr builds a credit line.
func Cr(accountID int64, amount decimal.Decimal, description string) PostingLine {
	return PostingLine{AccountID: accountID, Credit: amount, Description: description}
}

// PostingInput groups the fields required to post a balanced batch.
type PostingInput struct {
	Scope     shared.Scope
	BatchID   uuid.UUID
	Date      time.Time
	Document  DocumentLink
	Reference string
	Memo      string
	PostedBy  int64
	Lines     []PostingLine
	// Guards lists accounts whose natural balance must not go negative once
	// the batch is applied.
	Guards []int64
}

// Batch is the committed result of a posting.
type Batch struct {
	ID          uuid.UUID
	Scope       shared.Scope
	Date        time.Time
	Document    DocumentLink
	Entries     []LedgerEntry
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	Scope   shared.Scope
	BatchID uuid.UUID
	Date    *time.Time
	Memo    string
	ActorID int64
}

// Totals sums both sides of the batch.
func (in PostingInput) Totals() (decimal.Decimal, decimal.Decimal) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, line := range in.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// AccountIDs returns the distinct accounts referenced by lines and guards, ascending.
func (in PostingInput) AccountIDs() []int64 {
	seen := make(map[int64]struct{}, len(in.Lines)+len(in.Guards))
	ids := make([]int64, 0, len(in.Lines)+len(in.Guards))
	add := func(id int64) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, line := range in.Lines {
		add(line.AccountID)
	}
	for _, id := range in.Guards {
		add(id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Validate ensures posting input meets minimum criteria.
func (in PostingInput) Validate() error {
	if err := in.Scope.Validate(); err != nil {
		return err
	}
	if in.Date.IsZero() {
		return errors.New("accounting: transaction date required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("%w: line %d missing account", ErrInvalidLine, idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("%w: line %d negative amount", ErrInvalidLine, idx)
		}
		if line.Debit.IsPositive() && line.Credit.IsPositive() {
			return fmt.Errorf("%w: line %d cannot be both debit and credit", ErrInvalidLine, idx)
		}
		if line.Debit.IsZero() && line.Credit.IsZero() {
			return fmt.Errorf("%w: line %d has no amount", ErrInvalidLine, idx)
		}
	}
	debit, credit := in.Totals()
	if !debit.Equal(credit) {
		return &UnbalancedPostingError{Debit: debit, Credit: credit}
	}
	return nil
}
