package journals

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type memoryRepo struct {
	mu       sync.Mutex
	vouchers map[int64]Voucher
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{vouchers: map[int64]Voucher{}}
}

func (m *memoryRepo) List(_ context.Context, scope shared.Scope, _ shared.Pagination) ([]Voucher, error) {
	var out []Voucher
	for _, v := range m.vouchers {
		if v.BusinessID == scope.BusinessID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence > out[j].Sequence })
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, businessID, id int64) (Voucher, error) {
	v, ok := m.vouchers[id]
	if !ok || v.BusinessID != businessID {
		return Voucher{}, ErrVoucherNotFound
	}
	return v, nil
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, m)
}

func (m *memoryRepo) NextSequence(_ context.Context, businessID int64) (int64, error) {
	var seq int64
	for _, v := range m.vouchers {
		if v.BusinessID == businessID && v.Sequence > seq {
			seq = v.Sequence
		}
	}
	return seq + 1, nil
}

func (m *memoryRepo) Insert(_ context.Context, v Voucher) (Voucher, error) {
	m.nextID++
	v.ID = m.nextID
	m.vouchers[v.ID] = v
	return v, nil
}

func (m *memoryRepo) MarkPosted(_ context.Context, businessID, id int64, batchID uuid.UUID, actorID int64, at time.Time) error {
	v, ok := m.vouchers[id]
	if !ok || v.BusinessID != businessID || v.Status != StatusDraft {
		return ErrInvalidStatus
	}
	v.Status = StatusPosted
	v.BatchID = &batchID
	v.PostedBy = &actorID
	v.PostedAt = &at
	m.vouchers[id] = v
	return nil
}

type flakyRepo struct {
	*memoryRepo
	failMark bool
}

func (f *flakyRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if f.failMark {
		f.failMark = false
		return context.DeadlineExceeded
	}
	return f.memoryRepo.WithTx(ctx, fn)
}

var scope = shared.NewScope(1, 0)

func fixture(t *testing.T) (*ledgertest.Memory, *accounting.Service) {
	t.Helper()
	store := ledgertest.NewMemory()
	store.AddAccount(accounting.Account{ID: 1, BusinessID: 1, Code: "1000", Name: "Cash", Type: accounting.AccountTypeAsset, IsActive: true})
	store.AddAccount(accounting.Account{ID: 2, BusinessID: 1, Code: "6900", Name: "Operating Expenses", Type: accounting.AccountTypeExpense, IsActive: true})
	return store, accounting.NewService(store, nil, nil)
}

func balanced(amount string) CreateInput {
	amt := decimal.RequireFromString(amount)
	return CreateInput{
		Scope:       scope,
		Date:        time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Description: "office supplies",
		Lines: []Line{
			{AccountID: 2, Debit: amt},
			{AccountID: 1, Credit: amt},
		},
	}
}

func TestCreateDraftNumbersSequentially(t *testing.T) {
	store, ledger := fixture(t)
	svc := NewService(newMemoryRepo(), ledger, nil, nil)
	first, err := svc.CreateDraft(context.Background(), balanced("10"))
	require.NoError(t, err)
	second, err := svc.CreateDraft(context.Background(), balanced("20"))
	require.NoError(t, err)
	assert.Equal(t, "JV-00001", first.Number)
	assert.Equal(t, "JV-00002", second.Number)
	assert.Equal(t, StatusDraft, first.Status)
	assert.Empty(t, store.Entries(), "drafts never touch the ledger")
}

func TestCreateDraftRejectsUnbalanced(t *testing.T) {
	_, ledger := fixture(t)
	repo := newMemoryRepo()
	svc := NewService(repo, ledger, nil, nil)
	in := balanced("10")
	in.Lines[1].Credit = decimal.RequireFromString("9")
	_, err := svc.CreateDraft(context.Background(), in)
	require.ErrorIs(t, err, accounting.ErrUnbalancedPosting)
	assert.Empty(t, repo.vouchers)
}

func TestPostIsOneWay(t *testing.T) {
	store, ledger := fixture(t)
	svc := NewService(newMemoryRepo(), ledger, nil, nil)
	draft, err := svc.CreateDraft(context.Background(), balanced("10"))
	require.NoError(t, err)

	posted, err := svc.Post(context.Background(), scope, draft.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, StatusPosted, posted.Status)
	require.NotNil(t, posted.BatchID)
	entries := store.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, accounting.DocumentJournalVoucher, entries[0].Document.Type)
	assert.Equal(t, "JV-00001", entries[0].Document.Reference)

	_, err = svc.Post(context.Background(), scope, draft.ID, 9)
	require.ErrorIs(t, err, ErrInvalidStatus)
	assert.Len(t, store.Entries(), 2)
}

func TestPostRetryAfterStatusFailure(t *testing.T) {
	store, ledger := fixture(t)
	repo := &flakyRepo{memoryRepo: newMemoryRepo()}
	svc := NewService(repo, ledger, nil, nil)
	draft, err := svc.CreateDraft(context.Background(), balanced("10"))
	require.NoError(t, err)

	repo.failMark = true
	_, err = svc.Post(context.Background(), scope, draft.ID, 9)
	require.Error(t, err)
	assert.Len(t, store.Entries(), 2)

	posted, err := svc.Post(context.Background(), scope, draft.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, StatusPosted, posted.Status)
	assert.Len(t, store.Entries(), 2, "retry must not post twice")
}

func TestPostUnknownVoucher(t *testing.T) {
	_, ledger := fixture(t)
	svc := NewService(newMemoryRepo(), ledger, nil, nil)
	_, err := svc.Post(context.Background(), scope, 404, 1)
	require.ErrorIs(t, err, ErrVoucherNotFound)
}
