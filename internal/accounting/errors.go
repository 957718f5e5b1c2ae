package accounting

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrUnbalancedPosting indicates debit != credit.
	ErrUnbalancedPosting = errors.New("accounting: unbalanced posting")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: posting requires at least two lines")
	// ErrInvalidLine indicates a malformed posting line.
	ErrInvalidLine = errors.New("accounting: invalid posting line")
	// ErrUnknownAccount indicates an account missing for the business.
	ErrUnknownAccount = errors.New("accounting: unknown account")
	// ErrInactiveAccount indicates a deactivated account.
	ErrInactiveAccount = errors.New("accounting: inactive account")
	// ErrBatchNotFound indicates missing batch.
	ErrBatchNotFound = errors.New("accounting: batch not found")
	// ErrBatchAlreadyPosted indicates the batch id was already committed.
	ErrBatchAlreadyPosted = errors.New("accounting: batch already posted")
	// ErrAlreadyReversed indicates a second reversal of the same batch.
	ErrAlreadyReversed = errors.New("accounting: batch already reversed")
	// ErrInsufficientBalance indicates a guarded account would go negative.
	ErrInsufficientBalance = errors.New("accounting: insufficient balance")
)

// UnbalancedPostingError carries both sums of a rejected batch.
type UnbalancedPostingError struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

func (e *UnbalancedPostingError) Error() string {
	return fmt.Sprintf("accounting: unbalanced posting: debit %s != credit %s (difference %s)",
		e.Debit.String(), e.Credit.String(), e.Difference().String())
}

// Is matches ErrUnbalancedPosting.
func (e *UnbalancedPostingError) Is(target error) bool {
	return target == ErrUnbalancedPosting
}

// Difference returns debit minus credit.
func (e *UnbalancedPostingError) Difference() decimal.Decimal {
	return e.Debit.Sub(e.Credit)
}

// AccountError reports which account failed posting validation.
type AccountError struct {
	AccountID int64
	Err       error
}

func (e *AccountError) Error() string {
	return fmt.Sprintf("%s: account %d", e.Err.Error(), e.AccountID)
}

func (e *AccountError) Unwrap() error {
	return e.Err
}

// BalanceGuardError reports the balance a guarded account would end with.
type BalanceGuardError struct {
	AccountID int64
	Balance   decimal.Decimal
}

func (e *BalanceGuardError) Error() string {
	return fmt.Sprintf("accounting: insufficient balance: account %d would end at %s", e.AccountID, e.Balance.String())
}

// Is matches ErrInsufficientBalance.
func (e *BalanceGuardError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// PartialPostingError is raised when a batch is observed half-committed. It is
// a transaction boundary bug and is panicked, never returned.
type PartialPostingError struct {
	BatchID   uuid.UUID
	Expected  int
	Persisted int
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

func (e *PartialPostingError) Error() string {
	return fmt.Sprintf("accounting: partial posting invariant violated for batch %s: %d of %d lines, debit %s credit %s",
		e.BatchID, e.Persisted, e.Expected, e.Debit.String(), e.Credit.String())
}
