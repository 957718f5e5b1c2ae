// Package ledgertest provides an in-memory ledger store for tests.
package ledgertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// Memory implements accounting.RepositoryPort. Transactions are serialised
// and staged rows are discarded on error or panic.
type Memory struct {
	mu       sync.Mutex
	accounts map[int64]accounting.Account
	entries  []accounting.LedgerEntry
	batches  map[batchKey]time.Time
	nextID   int64

	// DropWrites discards that many rows from each insert to simulate a
	// broken storage layer.
	DropWrites int
}

// NewMemory constructs an empty store.
func NewMemory() *Memory {
	return &Memory{accounts: make(map[int64]accounting.Account), batches: make(map[batchKey]time.Time)}
}

type batchKey struct {
	businessID int64
	batchID    uuid.UUID
}

// ClaimBatch registers a committed batch header without entries, as another
// writer holding the id would leave it.
func (m *Memory) ClaimBatch(businessID int64, batchID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[batchKey{businessID, batchID}] = time.Now()
}

// AddAccount registers an account and returns it.
func (m *Memory) AddAccount(acc accounting.Account) accounting.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		acc.UpdatedAt = acc.CreatedAt
	}
	m.accounts[acc.ID] = acc
	return acc
}

// SetActive toggles an account.
func (m *Memory) SetActive(id int64, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc := m.accounts[id]
	acc.IsActive = active
	m.accounts[id] = acc
}

// Accounts returns accounts of a business ordered by code.
func (m *Memory) Accounts(businessID int64) []accounting.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []accounting.Account
	for _, acc := range m.accounts {
		if acc.BusinessID == businessID {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Entries returns a copy of every committed row.
func (m *Memory) Entries() []accounting.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]accounting.LedgerEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// WithTx runs fn against a staged view.
func (m *Memory) WithTx(ctx context.Context, fn func(context.Context, accounting.TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryTx{m: m}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.entries = append(m.entries, tx.staged...)
	for key, at := range tx.claims {
		m.batches[key] = at
	}
	return nil
}

// WithGuardedTx behaves like WithTx; the store is already serialised.
func (m *Memory) WithGuardedTx(ctx context.Context, fn func(context.Context, accounting.TxRepository) error) error {
	return m.WithTx(ctx, fn)
}

type memoryTx struct {
	m      *Memory
	staged []accounting.LedgerEntry
	claims map[batchKey]time.Time
}

func (tx *memoryTx) all() []accounting.LedgerEntry {
	out := make([]accounting.LedgerEntry, 0, len(tx.m.entries)+len(tx.staged))
	out = append(out, tx.m.entries...)
	return append(out, tx.staged...)
}

func (tx *memoryTx) ClaimBatch(_ context.Context, businessID int64, batchID uuid.UUID, postedAt time.Time) error {
	key := batchKey{businessID, batchID}
	if _, ok := tx.m.batches[key]; ok {
		return accounting.ErrBatchAlreadyPosted
	}
	if _, ok := tx.claims[key]; ok {
		return accounting.ErrBatchAlreadyPosted
	}
	if tx.claims == nil {
		tx.claims = make(map[batchKey]time.Time)
	}
	tx.claims[key] = postedAt
	return nil
}

func (tx *memoryTx) LockAccounts(context.Context, int64, []int64) error { return nil }

func (tx *memoryTx) GetAccounts(_ context.Context, businessID int64, ids []int64) (map[int64]accounting.Account, error) {
	out := make(map[int64]accounting.Account, len(ids))
	for _, id := range ids {
		if acc, ok := tx.m.accounts[id]; ok && acc.BusinessID == businessID {
			out[id] = acc
		}
	}
	return out, nil
}

func (tx *memoryTx) InsertEntries(_ context.Context, entries []accounting.LedgerEntry) error {
	keep := len(entries) - tx.m.DropWrites
	if keep < 0 {
		keep = 0
	}
	for _, e := range entries[:keep] {
		tx.m.nextID++
		e.ID = tx.m.nextID
		tx.staged = append(tx.staged, e)
	}
	return nil
}

func (tx *memoryTx) BatchTotals(_ context.Context, batchID uuid.UUID) (accounting.BatchTotals, error) {
	totals := accounting.BatchTotals{Debit: decimal.Zero, Credit: decimal.Zero}
	for _, e := range tx.all() {
		if e.BatchID == batchID {
			totals.Lines++
			totals.Debit = totals.Debit.Add(e.Debit)
			totals.Credit = totals.Credit.Add(e.Credit)
		}
	}
	return totals, nil
}

func (tx *memoryTx) AccountBalance(_ context.Context, businessID, accountID int64) (decimal.Decimal, error) {
	balance := decimal.Zero
	for _, e := range tx.all() {
		if e.BusinessID == businessID && e.AccountID == accountID {
			balance = balance.Add(e.Debit).Sub(e.Credit)
		}
	}
	return balance, nil
}

func (tx *memoryTx) GetBatch(_ context.Context, businessID int64, batchID uuid.UUID) ([]accounting.LedgerEntry, error) {
	var out []accounting.LedgerEntry
	for _, e := range tx.all() {
		if e.BusinessID == businessID && e.BatchID == batchID {
			out = append(out, e)
		}
	}
	return out, nil
}
