package accounting

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository persists ledger entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// BatchTotals is the persisted view of one batch.
type BatchTotals struct {
	Lines  int
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	// ClaimBatch inserts the batch header. It fails with ErrBatchAlreadyPosted
	// when the id is taken, including by a transaction that commits while
	// this one waits on the key.
	ClaimBatch(ctx context.Context, businessID int64, batchID uuid.UUID, postedAt time.Time) error
	LockAccounts(ctx context.Context, businessID int64, ids []int64) error
	GetAccounts(ctx context.Context, businessID int64, ids []int64) (map[int64]Account, error)
	InsertEntries(ctx context.Context, entries []LedgerEntry) error
	BatchTotals(ctx context.Context, batchID uuid.UUID) (BatchTotals, error)
	AccountBalance(ctx context.Context, businessID, accountID int64) (decimal.Decimal, error)
	GetBatch(ctx context.Context, businessID int64, batchID uuid.UUID) ([]LedgerEntry, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.withOptions(ctx, db.RepeatableRead, fn)
}

// WithGuardedTx executes fn within read-committed transaction.
func (r *Repository) WithGuardedTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.withOptions(ctx, db.ReadCommitted, fn)
}

func (r *Repository) withOptions(ctx context.Context, opts pgx.TxOptions, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return db.ErrNoPool
	}
	return db.WithTx(ctx, r.pool, opts, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// A plain INSERT reports 23505 at every isolation level. ON CONFLICT DO
// NOTHING raises 40001 under repeatable read when the other row committed
// after the snapshot.
func (r *txRepository) ClaimBatch(ctx context.Context, businessID int64, batchID uuid.UUID, postedAt time.Time) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO ledger_batches (business_id, batch_id, posted_at) VALUES ($1, $2, $3)`, businessID, batchID, postedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrBatchAlreadyPosted
	}
	return err
}

func (r *txRepository) LockAccounts(ctx context.Context, businessID int64, ids []int64) error {
	rows, err := r.tx.Query(ctx, `SELECT id FROM accounts WHERE business_id=$1 AND id = ANY($2) ORDER BY id FOR UPDATE`, businessID, ids)
	if err != nil {
		return err
	}
	rows.Close()
	return rows.Err()
}

func (r *txRepository) GetAccounts(ctx context.Context, businessID int64, ids []int64) (map[int64]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, business_id, code, name, type, parent_id, is_active, is_system, created_at, updated_at
FROM accounts WHERE business_id=$1 AND id = ANY($2)`, businessID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]Account, len(ids))
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.BusinessID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.IsSystem, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

func (r *txRepository) InsertEntries(ctx context.Context, entries []LedgerEntry) error {
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`INSERT INTO ledger_entries (batch_id, business_id, branch_id, account_id, transaction_date, description, reference, debit, credit, document_type, document_id, document_ref, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			e.BatchID, e.BusinessID, e.BranchID, e.AccountID, e.Date, e.Description, e.Reference,
			e.Debit, e.Credit, nullString(string(e.Document.Type)), nullInt(e.Document.ID), nullString(e.Document.Reference), e.CreatedAt)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) BatchTotals(ctx context.Context, batchID uuid.UUID) (BatchTotals, error) {
	var totals BatchTotals
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(debit),0), COALESCE(SUM(credit),0) FROM ledger_entries WHERE batch_id=$1`, batchID).
		Scan(&totals.Lines, &totals.Debit, &totals.Credit)
	return totals, err
}

func (r *txRepository) AccountBalance(ctx context.Context, businessID, accountID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(debit - credit),0) FROM ledger_entries WHERE business_id=$1 AND account_id=$2`, businessID, accountID).Scan(&balance)
	return balance, err
}

func (r *txRepository) GetBatch(ctx context.Context, businessID int64, batchID uuid.UUID) ([]LedgerEntry, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, batch_id, business_id, branch_id, account_id, transaction_date, description, reference, debit, credit,
COALESCE(document_type,''), COALESCE(document_id,0), COALESCE(document_ref,''), created_at
FROM ledger_entries WHERE business_id=$1 AND batch_id=$2 ORDER BY id ASC`, businessID, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.BatchID, &e.BusinessID, &e.BranchID, &e.AccountID, &e.Date, &e.Description, &e.Reference,
			&e.Debit, &e.Credit, &e.Document.Type, &e.Document.ID, &e.Document.Reference, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const unbalancedBatchesQuery = `SELECT batch_id, business_id, COUNT(*), SUM(debit), SUM(credit)
FROM ledger_entries WHERE ($1::bigint = 0 OR business_id = $1)
GROUP BY batch_id, business_id HAVING SUM(debit) <> SUM(credit)`

// UnbalancedBatch is a committed batch whose sides disagree.
type UnbalancedBatch struct {
	BatchID    uuid.UUID
	BusinessID int64
	Lines      int
	Debit      decimal.Decimal
	Credit     decimal.Decimal
}

// FindUnbalancedBatches scans the ledger for batches violating the balance invariant.
func (r *Repository) FindUnbalancedBatches(ctx context.Context, businessID int64) ([]UnbalancedBatch, error) {
	rows, err := r.pool.Query(ctx, unbalancedBatchesQuery, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UnbalancedBatch
	for rows.Next() {
		var b UnbalancedBatch
		if err := rows.Scan(&b.BatchID, &b.BusinessID, &b.Lines, &b.Debit, &b.Credit); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListBusinesses returns every business with at least one account.
func (r *Repository) ListBusinesses(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT business_id FROM accounts ORDER BY business_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

func nullString(val string) any {
	if val == "" {
		return nil
	}
	return val
}
