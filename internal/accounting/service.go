package accounting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	// WithGuardedTx runs fn at read-committed isolation so balance rechecks
	// made after a row lock observe every committed posting.
	WithGuardedTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// PostingObserver receives the outcome of every posting attempt.
type PostingObserver interface {
	ObservePosting(result string, lines int)
}

// Posting outcomes reported to the observer.
const (
	ResultPosted   = "posted"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

var ledgerNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("odyssey-ledger/batches"))

// SourceBatchID derives a stable batch id for a document so a repeated
// delivery of the same document is rejected with ErrBatchAlreadyPosted.
func SourceBatchID(businessID int64, doc DocumentLink, purpose string) uuid.UUID {
	return uuid.NewSHA1(ledgerNamespace, []byte(doc.SourceKey(businessID, purpose)))
}

// ReversalBatchID derives the id of the batch reversing original.
func ReversalBatchID(original uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(original, []byte("reversal"))
}

// Service is the posting protocol: the only path that writes ledger entries.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	events   EventPublisher
	observer PostingObserver
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithEvents attaches a publisher notified after each commit.
func (s *Service) WithEvents(events EventPublisher) *Service {
	s.events = events
	return s
}

// WithObserver attaches a posting observer such as Prometheus counters.
func (s *Service) WithObserver(observer PostingObserver) *Service {
	s.observer = observer
	return s
}

// Post validates and atomically writes a balanced batch.
func (s *Service) Post(ctx context.Context, input PostingInput) (Batch, error) {
	if err := input.Validate(); err != nil {
		s.observe(ResultRejected, len(input.Lines))
		return Batch{}, err
	}
	batchID := input.BatchID
	if batchID == uuid.Nil {
		batchID = uuid.New()
	}
	guards := uniqueSorted(input.Guards)
	run := s.repo.WithTx
	if len(guards) > 0 {
		run = s.repo.WithGuardedTx
	}
	debit, credit := input.Totals()
	postedAt := s.now()
	var batch Batch
	err := run(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ClaimBatch(ctx, input.Scope.BusinessID, batchID, postedAt); err != nil {
			return err
		}
		if len(guards) > 0 {
			if err := tx.LockAccounts(ctx, input.Scope.BusinessID, guards); err != nil {
				return err
			}
		}
		accounts, err := tx.GetAccounts(ctx, input.Scope.BusinessID, input.AccountIDs())
		if err != nil {
			return err
		}
		if err := checkAccounts(input.AccountIDs(), accounts); err != nil {
			return err
		}
		entries := buildEntries(batchID, input, postedAt)
		if err := tx.InsertEntries(ctx, entries); err != nil {
			return err
		}
		totals, err := tx.BatchTotals(ctx, batchID)
		if err != nil {
			return err
		}
		if totals.Lines != len(entries) || !totals.Debit.Equal(debit) || !totals.Credit.Equal(credit) {
			panic(&PartialPostingError{
				BatchID:   batchID,
				Expected:  len(entries),
				Persisted: totals.Lines,
				Debit:     totals.Debit,
				Credit:    totals.Credit,
			})
		}
		for _, id := range guards {
			raw, err := tx.AccountBalance(ctx, input.Scope.BusinessID, id)
			if err != nil {
				return err
			}
			balance := accounts[id].Type.NaturalBalance(raw)
			if balance.IsNegative() {
				return &BalanceGuardError{AccountID: id, Balance: balance}
			}
		}
		batch = Batch{
			ID:          batchID,
			Scope:       input.Scope,
			Date:        input.Date,
			Document:    input.Document,
			Entries:     entries,
			TotalDebit:  debit,
			TotalCredit: credit,
		}
		return nil
	})
	if err != nil {
		s.observe(classify(err), len(input.Lines))
		return Batch{}, err
	}
	s.observe(ResultPosted, len(input.Lines))
	s.afterCommit(ctx, input, batch)
	return batch, nil
}

func (s *Service) afterCommit(ctx context.Context, input PostingInput, batch Batch) {
	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			BusinessID: input.Scope.BusinessID,
			ActorID:    input.PostedBy,
			Action:     "ledger.post",
			Entity:     "ledger_batch",
			EntityID:   batch.ID.String(),
			Meta: map[string]any{
				"document_type": string(input.Document.Type),
				"document_id":   input.Document.ID,
				"reference":     input.Reference,
				"lines":         len(batch.Entries),
				"total":         batch.TotalDebit.String(),
			},
			At: s.now(),
		})
		if err != nil {
			s.logger.Warn("audit ledger post", slog.String("batch_id", batch.ID.String()), slog.Any("error", err))
		}
	}
	if s.events != nil {
		if err := s.events.Publish(ctx, strconv.FormatInt(input.Scope.BusinessID, 10), NewBatchPostedEvent(batch, input.Reference, s.now())); err != nil {
			s.logger.Warn("publish batch posted", slog.String("batch_id", batch.ID.String()), slog.Any("error", err))
		}
	}
	s.logger.Debug("ledger batch posted",
		slog.String("batch_id", batch.ID.String()),
		slog.Int64("business_id", input.Scope.BusinessID),
		slog.String("document_type", string(input.Document.Type)),
		slog.String("total", batch.TotalDebit.String()))
}

// Reverse posts a batch that exactly offsets an earlier one.
func (s *Service) Reverse(ctx context.Context, input ReverseInput) (Batch, error) {
	if err := input.Scope.Validate(); err != nil {
		return Batch{}, err
	}
	if input.BatchID == uuid.Nil {
		return Batch{}, errors.New("accounting: batch id required")
	}
	original, err := s.Batch(ctx, input.Scope, input.BatchID)
	if err != nil {
		return Batch{}, err
	}
	first := original.Entries[0]
	date := first.Date
	if input.Date != nil {
		date = *input.Date
	}
	scope := shared.Scope{BusinessID: input.Scope.BusinessID}
	if first.BranchID != nil {
		scope.BranchID = *first.BranchID
	}
	posting := PostingInput{
		Scope:     scope,
		BatchID:   ReversalBatchID(input.BatchID),
		Date:      date,
		Document:  DocumentLink{Type: DocumentReversal, Reference: input.BatchID.String()},
		Reference: first.Reference,
		Memo:      defaultReversalMemo(input.Memo, input.BatchID),
		PostedBy:  input.ActorID,
		Lines:     reverseLines(original.Entries),
	}
	reversal, err := s.Post(ctx, posting)
	if err != nil {
		if errors.Is(err, ErrBatchAlreadyPosted) {
			return Batch{}, ErrAlreadyReversed
		}
		return Batch{}, err
	}
	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			BusinessID: input.Scope.BusinessID,
			ActorID:    input.ActorID,
			Action:     "ledger.reverse",
			Entity:     "ledger_batch",
			EntityID:   input.BatchID.String(),
			Meta:       map[string]any{"reversal_id": reversal.ID.String()},
			At:         s.now(),
		})
		if err != nil {
			s.logger.Warn("audit ledger reverse",
				slog.String("batch_id", input.BatchID.String()),
				slog.String("reversal_id", reversal.ID.String()),
				slog.Any("error", err))
		}
	}
	return reversal, nil
}

// Batch loads a committed batch.
func (s *Service) Batch(ctx context.Context, scope shared.Scope, batchID uuid.UUID) (Batch, error) {
	if err := scope.Validate(); err != nil {
		return Batch{}, err
	}
	var entries []LedgerEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entries, err = tx.GetBatch(ctx, scope.BusinessID, batchID)
		return err
	})
	if err != nil {
		return Batch{}, err
	}
	if len(entries) == 0 {
		return Batch{}, ErrBatchNotFound
	}
	batch := Batch{
		ID:          batchID,
		Scope:       scope,
		Date:        entries[0].Date,
		Document:    entries[0].Document,
		Entries:     entries,
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}
	for _, e := range entries {
		batch.TotalDebit = batch.TotalDebit.Add(e.Debit)
		batch.TotalCredit = batch.TotalCredit.Add(e.Credit)
	}
	return batch, nil
}

func (s *Service) observe(result string, lines int) {
	if s.observer != nil {
		s.observer.ObservePosting(result, lines)
	}
}

func classify(err error) string {
	switch {
	case errors.Is(err, ErrUnbalancedPosting),
		errors.Is(err, ErrUnknownAccount),
		errors.Is(err, ErrInactiveAccount),
		errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrBatchAlreadyPosted):
		return ResultRejected
	}
	return ResultFailed
}

func checkAccounts(ids []int64, accounts map[int64]Account) error {
	for _, id := range ids {
		acc, ok := accounts[id]
		if !ok {
			return &AccountError{AccountID: id, Err: ErrUnknownAccount}
		}
		if !acc.IsActive {
			return &AccountError{AccountID: id, Err: ErrInactiveAccount}
		}
	}
	return nil
}

func buildEntries(batchID uuid.UUID, input PostingInput, ts time.Time) []LedgerEntry {
	out := make([]LedgerEntry, 0, len(input.Lines))
	for _, line := range input.Lines {
		desc := line.Description
		if desc == "" {
			desc = input.Memo
		}
		out = append(out, LedgerEntry{
			BatchID:     batchID,
			BusinessID:  input.Scope.BusinessID,
			BranchID:    input.Scope.BranchPtr(),
			AccountID:   line.AccountID,
			Date:        input.Date,
			Description: desc,
			Reference:   input.Reference,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Document:    input.Document,
			CreatedAt:   ts,
		})
	}
	return out
}

func reverseLines(entries []LedgerEntry) []PostingLine {
	out := make([]PostingLine, 0, len(entries))
	for _, e := range entries {
		out = append(out, PostingLine{
			AccountID:   e.AccountID,
			Debit:       e.Credit,
			Credit:      e.Debit,
			Description: "Reversal: " + e.Description,
		})
	}
	return out
}

func defaultReversalMemo(memo string, batchID uuid.UUID) string {
	if memo != "" {
		return memo
	}
	return fmt.Sprintf("Reversal of batch %s", batchID)
}

func uniqueSorted(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
