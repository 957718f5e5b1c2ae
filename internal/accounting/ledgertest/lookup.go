package ledgertest

import (
	"context"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// ListByType implements accounts.AccountLister.
func (m *Memory) ListByType(_ context.Context, businessID int64, typ accounting.AccountType) ([]accounting.Account, error) {
	var out []accounting.Account
	for _, acc := range m.Accounts(businessID) {
		if acc.Type == typ && acc.IsActive {
			out = append(out, acc)
		}
	}
	return out, nil
}

// Get loads one account of a business.
func (m *Memory) Get(_ context.Context, businessID, id int64) (accounting.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok || acc.BusinessID != businessID {
		return accounting.Account{}, accounts.ErrAccountNotFound
	}
	return acc, nil
}
