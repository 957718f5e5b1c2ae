package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository reads product history from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	LockProduct(ctx context.Context, businessID, productID int64) (Product, error)
	InsertPurchase(ctx context.Context, line PurchaseLine) (int64, error)
	InsertSale(ctx context.Context, line SaleLine) (int64, error)
	AddPurchaseReturn(ctx context.Context, businessID, lineID int64, qty decimal.Decimal) (PurchaseLine, error)
	AddSaleReturn(ctx context.Context, businessID, lineID int64, qty decimal.Decimal) (SaleLine, error)
}

type txRepo struct {
	tx pgx.Tx
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const productColumns = `p.id, p.business_id, p.sku, p.name, p.category_id, COALESCE(c.name, ''), p.is_active, p.purchase_price, p.sales_price`

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return db.ErrNoPool
	}
	return db.WithTx(ctx, r.pool, db.RepeatableRead, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetProduct loads a product of the business.
func (r *Repository) GetProduct(ctx context.Context, businessID, productID int64) (Product, error) {
	return getProduct(ctx, r.pool, businessID, productID, "")
}

func getProduct(ctx context.Context, q querier, businessID, productID int64, suffix string) (Product, error) {
	row := q.QueryRow(ctx, `SELECT `+productColumns+`
FROM products p LEFT JOIN product_categories c ON c.id = p.category_id
WHERE p.business_id=$1 AND p.id=$2`+suffix, businessID, productID)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

// ListProducts returns active products, optionally narrowed to a category.
func (r *Repository) ListProducts(ctx context.Context, businessID int64, categoryID *int64) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+`
FROM products p LEFT JOIN product_categories c ON c.id = p.category_id
WHERE p.business_id=$1 AND p.is_active AND ($2::bigint IS NULL OR p.category_id = $2)
ORDER BY p.name, p.id`, businessID, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListBusinesses returns every business owning an active product.
func (r *Repository) ListBusinesses(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT business_id FROM products WHERE is_active ORDER BY business_id`)
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

// History loads purchase and sale lines dated on or before asOf.
func (r *Repository) History(ctx context.Context, businessID, productID int64, asOf time.Time) (History, error) {
	var h History
	rows, err := r.pool.Query(ctx, `SELECT id, business_id, product_id, line_date, reference, quantity, returned_quantity, unit_cost
FROM purchase_lines WHERE business_id=$1 AND product_id=$2 AND line_date <= $3
ORDER BY line_date, id`, businessID, productID, asOf)
	if err != nil {
		return History{}, err
	}
	for rows.Next() {
		var l PurchaseLine
		if err := rows.Scan(&l.ID, &l.BusinessID, &l.ProductID, &l.Date, &l.Reference, &l.Quantity, &l.Returned, &l.UnitCost); err != nil {
			rows.Close()
			return History{}, err
		}
		h.Purchases = append(h.Purchases, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return History{}, err
	}

	rows, err = r.pool.Query(ctx, `SELECT id, business_id, product_id, line_date, reference, quantity, returned_quantity
FROM sale_lines WHERE business_id=$1 AND product_id=$2 AND line_date <= $3
ORDER BY line_date, id`, businessID, productID, asOf)
	if err != nil {
		return History{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l SaleLine
		if err := rows.Scan(&l.ID, &l.BusinessID, &l.ProductID, &l.Date, &l.Reference, &l.Quantity, &l.Returned); err != nil {
			return History{}, err
		}
		h.Sales = append(h.Sales, l)
	}
	return h, rows.Err()
}

func (r *txRepo) LockProduct(ctx context.Context, businessID, productID int64) (Product, error) {
	return getProduct(ctx, r.tx, businessID, productID, " FOR UPDATE OF p")
}

func (r *txRepo) InsertPurchase(ctx context.Context, line PurchaseLine) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_lines (business_id, product_id, line_date, reference, quantity, returned_quantity, unit_cost)
VALUES ($1,$2,$3,$4,$5,0,$6) RETURNING id`,
		line.BusinessID, line.ProductID, line.Date, line.Reference, line.Quantity, line.UnitCost).Scan(&id)
	return id, err
}

func (r *txRepo) InsertSale(ctx context.Context, line SaleLine) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sale_lines (business_id, product_id, line_date, reference, quantity, returned_quantity)
VALUES ($1,$2,$3,$4,$5,0) RETURNING id`,
		line.BusinessID, line.ProductID, line.Date, line.Reference, line.Quantity).Scan(&id)
	return id, err
}

func (r *txRepo) AddPurchaseReturn(ctx context.Context, businessID, lineID int64, qty decimal.Decimal) (PurchaseLine, error) {
	var l PurchaseLine
	err := r.tx.QueryRow(ctx, `UPDATE purchase_lines SET returned_quantity = returned_quantity + $3
WHERE business_id=$1 AND id=$2 AND returned_quantity + $3 <= quantity
RETURNING id, business_id, product_id, line_date, reference, quantity, returned_quantity, unit_cost`, businessID, lineID, qty).
		Scan(&l.ID, &l.BusinessID, &l.ProductID, &l.Date, &l.Reference, &l.Quantity, &l.Returned, &l.UnitCost)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseLine{}, r.returnFailure(ctx, "purchase_lines", businessID, lineID)
	}
	return l, err
}

func (r *txRepo) AddSaleReturn(ctx context.Context, businessID, lineID int64, qty decimal.Decimal) (SaleLine, error) {
	var l SaleLine
	err := r.tx.QueryRow(ctx, `UPDATE sale_lines SET returned_quantity = returned_quantity + $3
WHERE business_id=$1 AND id=$2 AND returned_quantity + $3 <= quantity
RETURNING id, business_id, product_id, line_date, reference, quantity, returned_quantity`, businessID, lineID, qty).
		Scan(&l.ID, &l.BusinessID, &l.ProductID, &l.Date, &l.Reference, &l.Quantity, &l.Returned)
	if errors.Is(err, pgx.ErrNoRows) {
		return SaleLine{}, r.returnFailure(ctx, "sale_lines", businessID, lineID)
	}
	return l, err
}

// returnFailure tells a missing line apart from an over-return.
func (r *txRepo) returnFailure(ctx context.Context, table string, businessID, lineID int64) error {
	var exists bool
	if err := r.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM `+table+` WHERE business_id=$1 AND id=$2)`, businessID, lineID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrLineNotFound
	}
	return ErrReturnExceedsQuantity
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.BusinessID, &p.SKU, &p.Name, &p.CategoryID, &p.CategoryName, &p.IsActive, &p.PurchasePrice, &p.SalesPrice)
	return p, err
}
