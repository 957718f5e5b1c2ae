package ledgertest

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
)

// Snapshot implements reports.SnapshotSource over committed rows.
func (m *Memory) Snapshot(ctx context.Context, fn func(context.Context, reports.Reader) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, memoryReader{m: m})
}

type memoryReader struct {
	m *Memory
}

type window struct {
	businessID int64
	branchID   *int64
	accountID  int64
	from       *time.Time
	to         time.Time
}

func (w window) matches(e accounting.LedgerEntry) bool {
	switch {
	case e.BusinessID != w.businessID:
		return false
	case w.accountID != 0 && e.AccountID != w.accountID:
		return false
	case w.branchID != nil && (e.BranchID == nil || *e.BranchID != *w.branchID):
		return false
	case e.Date.After(w.to):
		return false
	case w.from != nil && e.Date.Before(*w.from):
		return false
	}
	return true
}

func (r memoryReader) Balances(_ context.Context, q reports.BalanceQuery) ([]reports.AccountBalance, error) {
	w := window{businessID: q.BusinessID, branchID: q.BranchID, from: q.From, to: q.To}
	var out []reports.AccountBalance
	for _, acc := range r.m.accounts {
		if acc.BusinessID != q.BusinessID || (q.AccountID != 0 && acc.ID != q.AccountID) {
			continue
		}
		bal := reports.AccountBalance{
			AccountID: acc.ID,
			Code:      acc.Code,
			Name:      acc.Name,
			Type:      acc.Type,
			IsActive:  acc.IsActive,
			Opening:   decimal.Zero,
			Debit:     decimal.Zero,
			Credit:    decimal.Zero,
		}
		for _, e := range r.m.entries {
			if e.AccountID == acc.ID && w.matches(e) {
				bal.Debit = bal.Debit.Add(e.Debit)
				bal.Credit = bal.Credit.Add(e.Credit)
			}
		}
		out = append(out, bal)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r memoryReader) Entries(_ context.Context, q reports.EntryQuery) ([]accounting.LedgerEntry, error) {
	w := window{businessID: q.BusinessID, branchID: q.BranchID, accountID: q.AccountID, from: q.From, to: q.To}
	var out []accounting.LedgerEntry
	for _, e := range r.m.entries {
		if w.matches(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
