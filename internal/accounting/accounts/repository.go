package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// Repository persists chart of accounts rows.
type Repository interface {
	List(ctx context.Context, businessID int64, activeOnly bool) ([]accounting.Account, error)
	ListByType(ctx context.Context, businessID int64, typ accounting.AccountType) ([]accounting.Account, error)
	Get(ctx context.Context, businessID, id int64) (accounting.Account, error)
	GetByCode(ctx context.Context, businessID int64, code string) (accounting.Account, error)
	CodeExists(ctx context.Context, businessID int64, code string, exceptID int64) (bool, error)
	NameExists(ctx context.Context, businessID int64, name string, exceptID int64) (bool, error)
	Insert(ctx context.Context, acc accounting.Account) (accounting.Account, error)
	UpdateName(ctx context.Context, businessID, id int64, name string) error
	UpdateType(ctx context.Context, businessID, id int64, typ accounting.AccountType) error
	SetActive(ctx context.Context, businessID, id int64, active bool) error
	Delete(ctx context.Context, businessID, id int64) error
	HasEntries(ctx context.Context, businessID, id int64) (bool, error)
	Balance(ctx context.Context, scope BalanceQuery) (decimal.Decimal, error)
}

// BalanceQuery narrows an account balance lookup.
type BalanceQuery struct {
	BusinessID int64
	BranchID   *int64
	AccountID  int64
	AsOf       time.Time
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	constraintCode      = "uq_accounts_business_code"
	constraintName      = "uq_accounts_business_name"
)

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, business_id, code, name, type, parent_id, is_active, is_system, created_at, updated_at`

func scanAccount(row pgx.Row) (accounting.Account, error) {
	var a accounting.Account
	err := row.Scan(&a.ID, &a.BusinessID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.IsSystem, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *repository) query(ctx context.Context, sql string, args ...any) ([]accounting.Account, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounting.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) List(ctx context.Context, businessID int64, activeOnly bool) ([]accounting.Account, error) {
	return r.query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE business_id=$1 AND ($2 = FALSE OR is_active) ORDER BY code`, businessID, activeOnly)
}

func (r *repository) ListByType(ctx context.Context, businessID int64, typ accounting.AccountType) ([]accounting.Account, error) {
	return r.query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE business_id=$1 AND type=$2 AND is_active ORDER BY code`, businessID, typ)
}

func (r *repository) Get(ctx context.Context, businessID, id int64) (accounting.Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE business_id=$1 AND id=$2`, businessID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return accounting.Account{}, ErrAccountNotFound
	}
	return a, err
}

func (r *repository) GetByCode(ctx context.Context, businessID int64, code string) (accounting.Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE business_id=$1 AND code=$2`, businessID, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return accounting.Account{}, ErrAccountNotFound
	}
	return a, err
}

func (r *repository) CodeExists(ctx context.Context, businessID int64, code string, exceptID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE business_id=$1 AND code=$2 AND id<>$3)`, businessID, code, exceptID).Scan(&exists)
	return exists, err
}

func (r *repository) NameExists(ctx context.Context, businessID int64, name string, exceptID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE business_id=$1 AND lower(name)=lower($2) AND id<>$3)`, businessID, name, exceptID).Scan(&exists)
	return exists, err
}

func (r *repository) Insert(ctx context.Context, acc accounting.Account) (accounting.Account, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO accounts (business_id, code, name, type, parent_id, is_active, is_system, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,TRUE,$6,NOW(),NOW()) RETURNING `+accountColumns,
		acc.BusinessID, acc.Code, acc.Name, acc.Type, acc.ParentID, acc.IsSystem)
	created, err := scanAccount(row)
	if err != nil {
		return accounting.Account{}, mapConstraint(err)
	}
	return created, nil
}

func (r *repository) UpdateName(ctx context.Context, businessID, id int64, name string) error {
	return r.exec(ctx, `UPDATE accounts SET name=$3, updated_at=NOW() WHERE business_id=$1 AND id=$2`, businessID, id, name)
}

func (r *repository) UpdateType(ctx context.Context, businessID, id int64, typ accounting.AccountType) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET type=$3, updated_at=NOW()
WHERE business_id=$1 AND id=$2 AND NOT EXISTS (SELECT 1 FROM ledger_entries WHERE account_id=$2)`, businessID, id, typ)
	if err != nil {
		return err
	}
	// Zero rows means entries were posted after the service pre-check.
	if tag.RowsAffected() == 0 {
		return ErrAccountInUse
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, businessID, id int64, active bool) error {
	return r.exec(ctx, `UPDATE accounts SET is_active=$3, updated_at=NOW() WHERE business_id=$1 AND id=$2`, businessID, id, active)
}

func (r *repository) Delete(ctx context.Context, businessID, id int64) error {
	return r.exec(ctx, `DELETE FROM accounts WHERE business_id=$1 AND id=$2 AND NOT is_system`, businessID, id)
}

func (r *repository) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return mapConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *repository) HasEntries(ctx context.Context, businessID, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE business_id=$1 AND account_id=$2)`, businessID, id).Scan(&exists)
	return exists, err
}

func (r *repository) Balance(ctx context.Context, q BalanceQuery) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(debit - credit),0) FROM ledger_entries
WHERE business_id=$1 AND account_id=$2 AND transaction_date <= $3 AND ($4::bigint IS NULL OR branch_id = $4)`,
		q.BusinessID, q.AccountID, q.AsOf, q.BranchID).Scan(&balance)
	return balance, err
}

func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraintCode:
		return ErrDuplicateCode
	case pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraintName:
		return ErrDuplicateName
	case pgErr.Code == foreignKeyViolation:
		return ErrAccountInUse
	}
	return err
}
