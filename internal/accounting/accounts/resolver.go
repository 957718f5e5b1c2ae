package accounts

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/cases"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// SemanticAccountResolver locates a canonical account for a role. The boolean
// is false when nothing matches; callers must handle that case.
type SemanticAccountResolver interface {
	Resolve(ctx context.Context, scope shared.Scope, role Role) (accounting.Account, bool, error)
}

// AccountLister lists active accounts of one type ordered by code.
type AccountLister interface {
	ListByType(ctx context.Context, businessID int64, typ accounting.AccountType) ([]accounting.Account, error)
}

// PatternResolver matches account names against the role's patterns in
// order. When several accounts match a pattern the lowest code wins.
type PatternResolver struct {
	accounts AccountLister
}

// NewPatternResolver constructs PatternResolver.
func NewPatternResolver(accounts AccountLister) *PatternResolver {
	return &PatternResolver{accounts: accounts}
}

// Resolve implements SemanticAccountResolver.
func (r *PatternResolver) Resolve(ctx context.Context, scope shared.Scope, role Role) (accounting.Account, bool, error) {
	if err := scope.Validate(); err != nil {
		return accounting.Account{}, false, err
	}
	candidates, err := r.accounts.ListByType(ctx, scope.BusinessID, role.Type)
	if err != nil {
		return accounting.Account{}, false, err
	}
	acc, ok := MatchPatterns(candidates, role)
	return acc, ok, nil
}

// MatchPatterns picks the first candidate matching the role, trying patterns
// in order. Candidates must already be sorted by code.
func MatchPatterns(candidates []accounting.Account, role Role) (accounting.Account, bool) {
	// Casers are stateful and not shared across goroutines.
	fold := cases.Fold()
	names := make([]string, len(candidates))
	for i, acc := range candidates {
		names[i] = fold.String(acc.Name)
	}
	for _, pattern := range role.Patterns {
		needle := fold.String(pattern)
		for i, acc := range candidates {
			if acc.Type != role.Type || !acc.IsActive {
				continue
			}
			if strings.Contains(names[i], needle) && !excluded(fold, names[i], role.Exclude) {
				return acc, true
			}
		}
	}
	return accounting.Account{}, false
}

func excluded(fold cases.Caser, name string, fragments []string) bool {
	for _, fragment := range fragments {
		if strings.Contains(name, fold.String(fragment)) {
			return true
		}
	}
	return false
}

// CodeLookup fetches an account by exact code.
type CodeLookup interface {
	GetByCode(ctx context.Context, businessID int64, code string) (accounting.Account, error)
}

// CodeResolver resolves roles strictly through their conventional codes.
type CodeResolver struct {
	accounts CodeLookup
}

// NewCodeResolver constructs CodeResolver.
func NewCodeResolver(accounts CodeLookup) *CodeResolver {
	return &CodeResolver{accounts: accounts}
}

// Resolve implements SemanticAccountResolver.
func (r *CodeResolver) Resolve(ctx context.Context, scope shared.Scope, role Role) (accounting.Account, bool, error) {
	if err := scope.Validate(); err != nil {
		return accounting.Account{}, false, err
	}
	for _, code := range role.Codes {
		acc, err := r.accounts.GetByCode(ctx, scope.BusinessID, code)
		if errors.Is(err, ErrAccountNotFound) {
			continue
		}
		if err != nil {
			return accounting.Account{}, false, err
		}
		if acc.IsActive && acc.Type == role.Type {
			return acc, true, nil
		}
	}
	return accounting.Account{}, false, nil
}

// ChainResolver asks each resolver in turn until one matches.
type ChainResolver []SemanticAccountResolver

// Resolve implements SemanticAccountResolver.
func (c ChainResolver) Resolve(ctx context.Context, scope shared.Scope, role Role) (accounting.Account, bool, error) {
	for _, r := range c {
		acc, ok, err := r.Resolve(ctx, scope, role)
		if err != nil || ok {
			return acc, ok, err
		}
	}
	return accounting.Account{}, false, nil
}
