package mappings

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores explicit role mappings.
type Repository interface {
	Get(ctx context.Context, businessID int64, role string) (AccountMapping, error)
	Upsert(ctx context.Context, mapping AccountMapping) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// Get resolves an account mapping for the specified role.
func (r *repository) Get(ctx context.Context, businessID int64, role string) (AccountMapping, error) {
	if businessID == 0 || role == "" {
		return AccountMapping{}, errors.New("mappings: business and role required")
	}
	var mapping AccountMapping
	err := r.db.QueryRow(ctx, `SELECT business_id, role, account_id, created_at, updated_at FROM account_mappings WHERE business_id=$1 AND role=$2`,
		businessID, strings.ToLower(role)).
		Scan(&mapping.BusinessID, &mapping.Role, &mapping.AccountID, &mapping.CreatedAt, &mapping.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountMapping{}, ErrMappingNotFound
		}
		return AccountMapping{}, err
	}
	return mapping, nil
}

// Upsert pins role to an account, replacing any earlier mapping.
func (r *repository) Upsert(ctx context.Context, mapping AccountMapping) error {
	_, err := r.db.Exec(ctx, `INSERT INTO account_mappings (business_id, role, account_id, created_at, updated_at)
VALUES ($1,$2,$3,NOW(),NOW())
ON CONFLICT (business_id, role) DO UPDATE SET account_id=EXCLUDED.account_id, updated_at=NOW()`,
		mapping.BusinessID, strings.ToLower(mapping.Role), mapping.AccountID)
	return err
}
