package integration

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// FormatNumber renders a document number such as BD-00042.
func FormatNumber(prefix string, n int64) string {
	return fmt.Sprintf("%s-%05d", prefix, n)
}

// Sequences issues gap-tolerant, per-business document numbers from the
// document_sequences table.
type Sequences struct {
	pool *pgxpool.Pool
}

// NewSequences constructs Sequences.
func NewSequences(pool *pgxpool.Pool) *Sequences {
	return &Sequences{pool: pool}
}

// Next implements Sequencer.
func (s *Sequences) Next(ctx context.Context, businessID int64, prefix string) (string, error) {
	const sql = `INSERT INTO document_sequences (business_id, prefix, last_value)
VALUES ($1, $2, 1)
ON CONFLICT (business_id, prefix) DO UPDATE SET last_value = document_sequences.last_value + 1
RETURNING last_value`
	var n int64
	if err := s.pool.QueryRow(ctx, sql, businessID, prefix).Scan(&n); err != nil {
		return "", fmt.Errorf("integration: next %s number: %w", prefix, err)
	}
	return FormatNumber(prefix, n), nil
}
