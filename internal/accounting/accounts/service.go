package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Service is the chart of accounts registry.
type Service struct {
	repo   Repository
	audit  accounting.AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the registry.
func NewService(repo Repository, audit accounting.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// Create registers an account after checking code and name uniqueness.
func (s *Service) Create(ctx context.Context, scope shared.Scope, in CreateInput) (accounting.Account, error) {
	if err := scope.Validate(); err != nil {
		return accounting.Account{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return accounting.Account{}, fmt.Errorf("%w: name required", shared.ErrInvalidInput)
	}
	if !in.Type.Valid() {
		return accounting.Account{}, ErrInvalidType
	}
	code := strings.TrimSpace(in.Code)
	if code != "" {
		exists, err := s.repo.CodeExists(ctx, scope.BusinessID, code, 0)
		if err != nil {
			return accounting.Account{}, err
		}
		if exists {
			return accounting.Account{}, ErrDuplicateCode
		}
	}
	exists, err := s.repo.NameExists(ctx, scope.BusinessID, name, 0)
	if err != nil {
		return accounting.Account{}, err
	}
	if exists {
		return accounting.Account{}, ErrDuplicateName
	}
	if in.ParentID != nil {
		if _, err := s.repo.Get(ctx, scope.BusinessID, *in.ParentID); err != nil {
			return accounting.Account{}, fmt.Errorf("parent: %w", err)
		}
	}
	if code == "" {
		code, err = s.nextCode(ctx, scope.BusinessID, in.Type)
		if err != nil {
			return accounting.Account{}, err
		}
	}
	acc, err := s.repo.Insert(ctx, accounting.Account{
		BusinessID: scope.BusinessID,
		Code:       code,
		Name:       name,
		Type:       in.Type,
		ParentID:   in.ParentID,
		IsSystem:   in.IsSystem,
	})
	if err != nil {
		return accounting.Account{}, err
	}
	s.record(ctx, scope, in.ActorID, "account.create", acc.ID, map[string]any{"code": acc.Code, "type": string(acc.Type)})
	return acc, nil
}

// nextCode allocates the code after the highest numeric code of the type.
func (s *Service) nextCode(ctx context.Context, businessID int64, typ accounting.AccountType) (string, error) {
	accounts, err := s.repo.List(ctx, businessID, false)
	if err != nil {
		return "", err
	}
	highest := 0
	for _, acc := range accounts {
		if acc.Type != typ {
			continue
		}
		if n, err := strconv.Atoi(acc.Code); err == nil && n > highest {
			highest = n
		}
	}
	if highest == 0 {
		return strconv.Itoa(typePrefix[typ] * 1000), nil
	}
	return strconv.Itoa(highest + 10), nil
}

// Get returns one account of the business.
func (s *Service) Get(ctx context.Context, scope shared.Scope, id int64) (accounting.Account, error) {
	if err := scope.Validate(); err != nil {
		return accounting.Account{}, err
	}
	return s.repo.Get(ctx, scope.BusinessID, id)
}

// List returns the chart ordered by code.
func (s *Service) List(ctx context.Context, scope shared.Scope, activeOnly bool) ([]accounting.Account, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, scope.BusinessID, activeOnly)
}

// Rename changes the display name.
func (s *Service) Rename(ctx context.Context, scope shared.Scope, id int64, name string, actorID int64) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name required", shared.ErrInvalidInput)
	}
	if _, err := s.repo.Get(ctx, scope.BusinessID, id); err != nil {
		return err
	}
	exists, err := s.repo.NameExists(ctx, scope.BusinessID, name, id)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateName
	}
	if err := s.repo.UpdateName(ctx, scope.BusinessID, id, name); err != nil {
		return err
	}
	s.record(ctx, scope, actorID, "account.rename", id, map[string]any{"name": name})
	return nil
}

// ChangeType re-classifies an account that has never been posted to.
func (s *Service) ChangeType(ctx context.Context, scope shared.Scope, id int64, typ accounting.AccountType, actorID int64) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if !typ.Valid() {
		return ErrInvalidType
	}
	acc, err := s.repo.Get(ctx, scope.BusinessID, id)
	if err != nil {
		return err
	}
	if acc.Type == typ {
		return nil
	}
	used, err := s.repo.HasEntries(ctx, scope.BusinessID, id)
	if err != nil {
		return err
	}
	if used {
		return ErrAccountInUse
	}
	if err := s.repo.UpdateType(ctx, scope.BusinessID, id, typ); err != nil {
		return err
	}
	s.record(ctx, scope, actorID, "account.change_type", id, map[string]any{"from": string(acc.Type), "to": string(typ)})
	return nil
}

// Deactivate removes an account from use. Accounts with entries are kept
// inactive; unused ones are deleted.
func (s *Service) Deactivate(ctx context.Context, scope shared.Scope, id int64, actorID int64) (DeactivateOutcome, error) {
	if err := scope.Validate(); err != nil {
		return "", err
	}
	acc, err := s.repo.Get(ctx, scope.BusinessID, id)
	if err != nil {
		return "", err
	}
	if acc.IsSystem {
		return "", ErrProtectedAccount
	}
	used, err := s.repo.HasEntries(ctx, scope.BusinessID, id)
	if err != nil {
		return "", err
	}
	outcome := OutcomeDeactivated
	if !used {
		err = s.repo.Delete(ctx, scope.BusinessID, id)
		switch {
		case err == nil:
			outcome = OutcomeDeleted
		case errors.Is(err, ErrAccountInUse):
			// Posted to since the check; fall back to the soft path.
			used = true
		default:
			return "", err
		}
	}
	if used {
		if err := s.repo.SetActive(ctx, scope.BusinessID, id, false); err != nil {
			return "", err
		}
	}
	s.record(ctx, scope, actorID, "account."+string(outcome), id, map[string]any{"code": acc.Code})
	return outcome, nil
}

// Reactivate re-enables a deactivated account.
func (s *Service) Reactivate(ctx context.Context, scope shared.Scope, id int64, actorID int64) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, scope.BusinessID, id, true); err != nil {
		return err
	}
	s.record(ctx, scope, actorID, "account.reactivate", id, nil)
	return nil
}

// Balance returns the account balance up to asOf signed by its normal side.
func (s *Service) Balance(ctx context.Context, scope shared.Scope, id int64, asOf time.Time) (decimal.Decimal, error) {
	if err := scope.Validate(); err != nil {
		return decimal.Zero, err
	}
	acc, err := s.repo.Get(ctx, scope.BusinessID, id)
	if err != nil {
		return decimal.Zero, err
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	raw, err := s.repo.Balance(ctx, BalanceQuery{BusinessID: scope.BusinessID, BranchID: scope.BranchPtr(), AccountID: id, AsOf: asOf})
	if err != nil {
		return decimal.Zero, err
	}
	return acc.Type.NaturalBalance(raw), nil
}

// SeedDefaults installs the protected default chart, skipping codes that
// already exist. It returns the accounts created.
func (s *Service) SeedDefaults(ctx context.Context, scope shared.Scope, actorID int64) ([]accounting.Account, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	var created []accounting.Account
	for _, seed := range defaultChart {
		exists, err := s.repo.CodeExists(ctx, scope.BusinessID, seed.Code, 0)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		acc, err := s.Create(ctx, scope, CreateInput{Name: seed.Name, Code: seed.Code, Type: seed.Type, IsSystem: true, ActorID: actorID})
		if errors.Is(err, ErrDuplicateName) {
			s.logger.Info("seed account skipped", slog.Int64("business_id", scope.BusinessID), slog.String("name", seed.Name))
			continue
		}
		if err != nil {
			return created, err
		}
		created = append(created, acc)
	}
	return created, nil
}

func (s *Service) record(ctx context.Context, scope shared.Scope, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		BusinessID: scope.BusinessID,
		ActorID:    actorID,
		Action:     action,
		Entity:     "account",
		EntityID:   strconv.FormatInt(id, 10),
		Meta:       meta,
		At:         s.now(),
	})
	if err != nil {
		s.logger.Warn("audit account", slog.String("action", action), slog.Any("error", err))
	}
}
