package mappings

import (
	"context"
	"errors"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AccountGetter loads one account.
type AccountGetter interface {
	Get(ctx context.Context, businessID, id int64) (accounting.Account, error)
}

// Resolver resolves roles through explicit per-business mappings. A mapping
// to an inactive or mistyped account counts as no match.
type Resolver struct {
	mappings Repository
	accounts AccountGetter
}

// NewResolver constructs Resolver.
func NewResolver(mappings Repository, accounts AccountGetter) *Resolver {
	return &Resolver{mappings: mappings, accounts: accounts}
}

// Resolve implements accounts.SemanticAccountResolver.
func (r *Resolver) Resolve(ctx context.Context, scope shared.Scope, role accounts.Role) (accounting.Account, bool, error) {
	if err := scope.Validate(); err != nil {
		return accounting.Account{}, false, err
	}
	mapping, err := r.mappings.Get(ctx, scope.BusinessID, role.Key)
	if errors.Is(err, ErrMappingNotFound) {
		return accounting.Account{}, false, nil
	}
	if err != nil {
		return accounting.Account{}, false, err
	}
	acc, err := r.accounts.Get(ctx, scope.BusinessID, mapping.AccountID)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return accounting.Account{}, false, nil
	}
	if err != nil {
		return accounting.Account{}, false, err
	}
	if !acc.IsActive || acc.Type != role.Type {
		return accounting.Account{}, false, nil
	}
	return acc, true, nil
}
