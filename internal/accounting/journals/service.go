package journals

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Ledger is the posting protocol as seen by vouchers.
type Ledger interface {
	Post(ctx context.Context, input accounting.PostingInput) (accounting.Batch, error)
}

// Service manages journal vouchers.
type Service struct {
	repo   Repository
	ledger Ledger
	audit  accounting.AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs Service.
func NewService(repo Repository, ledger Ledger, audit accounting.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateDraft validates balance and stores a numbered draft voucher.
func (s *Service) CreateDraft(ctx context.Context, in CreateInput) (Voucher, error) {
	if err := in.Validate(); err != nil {
		return Voucher{}, err
	}
	var created Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seq, err := tx.NextSequence(ctx, in.Scope.BusinessID)
		if err != nil {
			return err
		}
		created, err = tx.Insert(ctx, Voucher{
			BusinessID:  in.Scope.BusinessID,
			BranchID:    in.Scope.BranchPtr(),
			Sequence:    seq,
			Number:      FormatNumber(seq),
			Date:        in.Date,
			Description: in.Description,
			Reference:   in.Reference,
			Status:      StatusDraft,
			Lines:       in.Lines,
			CreatedBy:   in.ActorID,
			CreatedAt:   s.now(),
		})
		return err
	})
	if err != nil {
		return Voucher{}, err
	}
	s.record(ctx, in.Scope, in.ActorID, "journal.create", created)
	return created, nil
}

// Post writes a draft voucher to the ledger and marks it posted. A retry
// after a partial failure reuses the voucher's deterministic batch id.
func (s *Service) Post(ctx context.Context, scope shared.Scope, id, actorID int64) (Voucher, error) {
	if err := scope.Validate(); err != nil {
		return Voucher{}, err
	}
	v, err := s.repo.Get(ctx, scope.BusinessID, id)
	if err != nil {
		return Voucher{}, err
	}
	if v.Status != StatusDraft {
		return Voucher{}, ErrInvalidStatus
	}
	postScope := scope
	postScope.BranchID = 0
	if v.BranchID != nil {
		postScope.BranchID = *v.BranchID
	}
	input := posting(postScope, v, actorID)
	_, err = s.ledger.Post(ctx, input)
	if err != nil && !errors.Is(err, accounting.ErrBatchAlreadyPosted) {
		return Voucher{}, err
	}
	at := s.now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.MarkPosted(ctx, scope.BusinessID, id, input.BatchID, actorID, at)
	})
	if err != nil {
		return Voucher{}, err
	}
	v.Status = StatusPosted
	v.BatchID = &input.BatchID
	v.PostedBy = &actorID
	v.PostedAt = &at
	s.record(ctx, scope, actorID, "journal.post", v)
	return v, nil
}

// Get returns one voucher.
func (s *Service) Get(ctx context.Context, scope shared.Scope, id int64) (Voucher, error) {
	if err := scope.Validate(); err != nil {
		return Voucher{}, err
	}
	return s.repo.Get(ctx, scope.BusinessID, id)
}

// List returns vouchers newest first.
func (s *Service) List(ctx context.Context, scope shared.Scope, page shared.Pagination) ([]Voucher, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, scope, page)
}

func (s *Service) record(ctx context.Context, scope shared.Scope, actorID int64, action string, v Voucher) {
	if s.audit == nil {
		return
	}
	debit, _ := v.Totals()
	err := s.audit.Record(ctx, shared.AuditLog{
		BusinessID: scope.BusinessID,
		ActorID:    actorID,
		Action:     action,
		Entity:     "journal_voucher",
		EntityID:   strconv.FormatInt(v.ID, 10),
		Meta:       map[string]any{"number": v.Number, "total": debit.String()},
		At:         s.now(),
	})
	if err != nil {
		s.logger.Warn("audit journal", slog.String("action", action), slog.Any("error", err))
	}
}
