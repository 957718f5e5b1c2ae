package reports

import (
	"context"
	"errors"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ErrInvalidWindow indicates a report window that starts after it ends.
var ErrInvalidWindow = errors.New("reports: start after end")

// BalanceQuery selects movements for every account of a business. From and
// To are inclusive dates; a nil From means the start of time.
type BalanceQuery struct {
	BusinessID int64
	BranchID   *int64
	AccountID  int64
	From       *time.Time
	To         time.Time
}

// EntryQuery selects ledger entries for the general ledger.
type EntryQuery struct {
	BusinessID int64
	BranchID   *int64
	AccountID  int64
	From       *time.Time
	To         time.Time
}

// Reader reads ledger aggregates inside one snapshot.
type Reader interface {
	Balances(ctx context.Context, q BalanceQuery) ([]AccountBalance, error)
	Entries(ctx context.Context, q EntryQuery) ([]accounting.LedgerEntry, error)
}

// SnapshotSource opens a consistent read across several queries.
type SnapshotSource interface {
	Snapshot(ctx context.Context, fn func(context.Context, Reader) error) error
}

// GeneralLedgerQuery filters the general ledger.
type GeneralLedgerQuery struct {
	Scope     shared.Scope
	AccountID int64
	From      *time.Time
	To        time.Time
}

// Service derives financial statements from the ledger. It never writes.
type Service struct {
	source SnapshotSource
	now    func() time.Time
}

// NewService constructs Service.
func NewService(source SnapshotSource) *Service {
	return &Service{source: source, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) asOf(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t
}

// TrialBalance reports every account's balance up to asOf.
func (s *Service) TrialBalance(ctx context.Context, scope shared.Scope, asOf time.Time) (TrialBalance, error) {
	if err := scope.Validate(); err != nil {
		return TrialBalance{}, err
	}
	asOf = s.asOf(asOf)
	var balances []AccountBalance
	err := s.source.Snapshot(ctx, func(ctx context.Context, r Reader) error {
		var err error
		balances, err = r.Balances(ctx, BalanceQuery{BusinessID: scope.BusinessID, BranchID: scope.BranchPtr(), To: asOf})
		return err
	})
	if err != nil {
		return TrialBalance{}, err
	}
	return BuildTrialBalance(asOf, balances), nil
}

// BalanceSheet reports the financial position at asOf.
func (s *Service) BalanceSheet(ctx context.Context, scope shared.Scope, asOf time.Time) (BalanceSheet, error) {
	if err := scope.Validate(); err != nil {
		return BalanceSheet{}, err
	}
	asOf = s.asOf(asOf)
	var balances []AccountBalance
	err := s.source.Snapshot(ctx, func(ctx context.Context, r Reader) error {
		var err error
		balances, err = r.Balances(ctx, BalanceQuery{BusinessID: scope.BusinessID, BranchID: scope.BranchPtr(), To: asOf})
		return err
	})
	if err != nil {
		return BalanceSheet{}, err
	}
	return BuildBalanceSheet(asOf, balances), nil
}

// IncomeStatement reports revenue and expense movements between start and end.
func (s *Service) IncomeStatement(ctx context.Context, scope shared.Scope, start, end time.Time) (IncomeStatement, error) {
	if err := scope.Validate(); err != nil {
		return IncomeStatement{}, err
	}
	end = s.asOf(end)
	if !start.IsZero() && start.After(end) {
		return IncomeStatement{}, ErrInvalidWindow
	}
	q := BalanceQuery{BusinessID: scope.BusinessID, BranchID: scope.BranchPtr(), To: end}
	if !start.IsZero() {
		q.From = &start
	}
	var balances []AccountBalance
	err := s.source.Snapshot(ctx, func(ctx context.Context, r Reader) error {
		var err error
		balances, err = r.Balances(ctx, q)
		return err
	})
	if err != nil {
		return IncomeStatement{}, err
	}
	return BuildIncomeStatement(start, end, balances), nil
}

// GeneralLedger lists entries with running balances. When the window starts
// mid-stream the opening balance is everything posted before From.
func (s *Service) GeneralLedger(ctx context.Context, q GeneralLedgerQuery) (GeneralLedger, error) {
	if err := q.Scope.Validate(); err != nil {
		return GeneralLedger{}, err
	}
	to := s.asOf(q.To)
	if q.From != nil && q.From.After(to) {
		return GeneralLedger{}, ErrInvalidWindow
	}
	branch := q.Scope.BranchPtr()
	var (
		accounts []AccountBalance
		entries  []accounting.LedgerEntry
	)
	err := s.source.Snapshot(ctx, func(ctx context.Context, r Reader) error {
		var err error
		accounts, err = r.Balances(ctx, BalanceQuery{BusinessID: q.Scope.BusinessID, BranchID: branch, AccountID: q.AccountID, To: to})
		if err != nil {
			return err
		}
		if q.From != nil {
			before := q.From.AddDate(0, 0, -1)
			opening, err := r.Balances(ctx, BalanceQuery{BusinessID: q.Scope.BusinessID, BranchID: branch, AccountID: q.AccountID, To: before})
			if err != nil {
				return err
			}
			closing := make(map[int64]AccountBalance, len(opening))
			for _, acc := range opening {
				closing[acc.AccountID] = acc
			}
			for i := range accounts {
				accounts[i].Opening = closing[accounts[i].AccountID].Closing()
			}
		}
		entries, err = r.Entries(ctx, EntryQuery{BusinessID: q.Scope.BusinessID, BranchID: branch, AccountID: q.AccountID, From: q.From, To: to})
		return err
	})
	if err != nil {
		return GeneralLedger{}, err
	}
	return BuildGeneralLedger(accounts, entries), nil
}
