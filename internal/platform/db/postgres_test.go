package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsTuneConfig(t *testing.T) {
	cfg, err := pgxpool.ParseConfig("postgres://ledger@localhost:5432/ledger")
	require.NoError(t, err)
	defaults := cfg.MaxConns

	WithMaxConns(0)(cfg)
	assert.Equal(t, defaults, cfg.MaxConns)
	WithMaxConns(7)(cfg)
	assert.Equal(t, int32(7), cfg.MaxConns)

	WithApplicationName("ledgerctl")(cfg)
	assert.Equal(t, "ledgerctl", cfg.ConnConfig.RuntimeParams["application_name"])
}

func TestNewRejectsBadDSN(t *testing.T) {
	_, err := New(context.Background(), "::not a dsn::")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "platform/db: parse config")
}
