package reports

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository reads ledger aggregates from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Snapshot runs fn inside one repeatable-read read-only transaction so every
// query sees the same committed batches.
func (r *Repository) Snapshot(ctx context.Context, fn func(context.Context, Reader) error) error {
	if r == nil {
		return db.ErrNoPool
	}
	return db.WithTx(ctx, r.pool, db.Snapshot, func(tx pgx.Tx) error {
		return fn(ctx, &snapshotReader{tx: tx})
	})
}

// Zero filters are cast to bigint so ids above int4 bind.
const (
	balancesQuery = `SELECT a.id, a.code, a.name, a.type, a.is_active,
       COALESCE(SUM(le.debit), 0), COALESCE(SUM(le.credit), 0)
FROM accounts a
LEFT JOIN ledger_entries le ON le.account_id = a.id
    AND le.business_id = a.business_id
    AND le.transaction_date <= $2
    AND ($3::date IS NULL OR le.transaction_date >= $3)
    AND ($4::bigint IS NULL OR le.branch_id = $4)
WHERE a.business_id = $1 AND ($5::bigint = 0 OR a.id = $5)
GROUP BY a.id, a.code, a.name, a.type, a.is_active
ORDER BY a.code`

	entriesQuery = `SELECT id, batch_id, business_id, branch_id, account_id, transaction_date, description, reference, debit, credit,
       COALESCE(document_type, ''), COALESCE(document_id, 0), COALESCE(document_ref, ''), created_at
FROM ledger_entries
WHERE business_id = $1
  AND transaction_date <= $2
  AND ($3::date IS NULL OR transaction_date >= $3)
  AND ($4::bigint IS NULL OR branch_id = $4)
  AND ($5::bigint = 0 OR account_id = $5)
ORDER BY transaction_date, id`
)

type snapshotReader struct {
	tx pgx.Tx
}

func (r *snapshotReader) Balances(ctx context.Context, q BalanceQuery) ([]AccountBalance, error) {
	rows, err := r.tx.Query(ctx, balancesQuery, q.BusinessID, q.To, q.From, q.BranchID, q.AccountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.AccountID, &b.Code, &b.Name, &b.Type, &b.IsActive, &b.Debit, &b.Credit); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *snapshotReader) Entries(ctx context.Context, q EntryQuery) ([]accounting.LedgerEntry, error) {
	rows, err := r.tx.Query(ctx, entriesQuery, q.BusinessID, q.To, q.From, q.BranchID, q.AccountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounting.LedgerEntry
	for rows.Next() {
		var e accounting.LedgerEntry
		if err := rows.Scan(&e.ID, &e.BatchID, &e.BusinessID, &e.BranchID, &e.AccountID, &e.Date, &e.Description, &e.Reference,
			&e.Debit, &e.Credit, &e.Document.Type, &e.Document.ID, &e.Document.Reference, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
