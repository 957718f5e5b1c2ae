package journals

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository encapsulates DB operations for vouchers.
type Repository interface {
	List(ctx context.Context, scope shared.Scope, page shared.Pagination) ([]Voucher, error)
	Get(ctx context.Context, businessID, id int64) (Voucher, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	NextSequence(ctx context.Context, businessID int64) (int64, error)
	Insert(ctx context.Context, v Voucher) (Voucher, error)
	MarkPosted(ctx context.Context, businessID, id int64, batchID uuid.UUID, actorID int64, at time.Time) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const voucherColumns = `id, business_id, branch_id, seq, number, transaction_date, description, reference, status, lines, batch_id, created_by, posted_by, created_at, posted_at`

func scanVoucher(row pgx.Row) (Voucher, error) {
	var (
		v     Voucher
		lines []byte
	)
	if err := row.Scan(&v.ID, &v.BusinessID, &v.BranchID, &v.Sequence, &v.Number, &v.Date, &v.Description, &v.Reference,
		&v.Status, &lines, &v.BatchID, &v.CreatedBy, &v.PostedBy, &v.CreatedAt, &v.PostedAt); err != nil {
		return Voucher{}, err
	}
	if err := json.Unmarshal(lines, &v.Lines); err != nil {
		return Voucher{}, err
	}
	return v, nil
}

func (r *repository) List(ctx context.Context, scope shared.Scope, page shared.Pagination) ([]Voucher, error) {
	rows, err := r.db.Query(ctx, `SELECT `+voucherColumns+` FROM journal_vouchers
WHERE business_id=$1 AND ($2::bigint IS NULL OR branch_id=$2)
ORDER BY seq DESC LIMIT $3 OFFSET $4`, scope.BusinessID, scope.BranchPtr(), page.PerPage, page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, businessID, id int64) (Voucher, error) {
	v, err := scanVoucher(r.db.QueryRow(ctx, `SELECT `+voucherColumns+` FROM journal_vouchers WHERE business_id=$1 AND id=$2`, businessID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Voucher{}, ErrVoucherNotFound
	}
	return v, err
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, db.RepeatableRead, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

// NextSequence serialises numbering per business for the rest of the transaction.
func (r *txRepository) NextSequence(ctx context.Context, businessID int64) (int64, error) {
	if _, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended('journal_vouchers', $1))`, businessID); err != nil {
		return 0, err
	}
	var seq int64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq),0)+1 FROM journal_vouchers WHERE business_id=$1`, businessID).Scan(&seq)
	return seq, err
}

func (r *txRepository) Insert(ctx context.Context, v Voucher) (Voucher, error) {
	lines, err := json.Marshal(v.Lines)
	if err != nil {
		return Voucher{}, err
	}
	return scanVoucher(r.tx.QueryRow(ctx, `INSERT INTO journal_vouchers (business_id, branch_id, seq, number, transaction_date, description, reference, status, lines, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING `+voucherColumns,
		v.BusinessID, v.BranchID, v.Sequence, v.Number, v.Date, v.Description, v.Reference, v.Status, lines, v.CreatedBy, v.CreatedAt))
}

func (r *txRepository) MarkPosted(ctx context.Context, businessID, id int64, batchID uuid.UUID, actorID int64, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE journal_vouchers SET status=$3, batch_id=$4, posted_by=$5, posted_at=$6
WHERE business_id=$1 AND id=$2 AND status=$7`, businessID, id, StatusPosted, batchID, actorID, at, StatusDraft)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidStatus
	}
	return nil
}
