package accounts

import (
	"errors"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

var (
	// ErrDuplicateCode indicates the business already uses the code.
	ErrDuplicateCode = errors.New("accounts: duplicate code")
	// ErrDuplicateName indicates the business already uses the name.
	ErrDuplicateName = errors.New("accounts: duplicate name")
	// ErrProtectedAccount indicates a system account cannot be removed.
	ErrProtectedAccount = errors.New("accounts: protected account")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("accounts: account not found")
	// ErrAccountInUse indicates ledger entries reference the account.
	ErrAccountInUse = errors.New("accounts: account has ledger entries")
	// ErrSelfParent indicates an account named as its own parent.
	ErrSelfParent = errors.New("accounts: account cannot be its own parent")
	// ErrInvalidType indicates an unknown account type.
	ErrInvalidType = errors.New("accounts: invalid account type")
)

// CreateInput carries a new account definition. Code is optional.
type CreateInput struct {
	Name     string
	Code     string
	Type     accounting.AccountType
	ParentID *int64
	IsSystem bool
	ActorID  int64
}

// DeactivateOutcome reports what Deactivate did.
type DeactivateOutcome string

const (
	// OutcomeDeactivated means entries exist so the row was kept inactive.
	OutcomeDeactivated DeactivateOutcome = "deactivated"
	// OutcomeDeleted means the unused row was removed.
	OutcomeDeleted DeactivateOutcome = "deleted"
)
