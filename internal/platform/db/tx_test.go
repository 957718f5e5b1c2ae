package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestWithTxRequiresPool(t *testing.T) {
	called := false
	err := WithTx(context.Background(), nil, RepeatableRead, func(pgx.Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrNoPool)
	require.False(t, called)
}

func TestSnapshotIsReadOnly(t *testing.T) {
	require.Equal(t, pgx.ReadOnly, Snapshot.AccessMode)
	require.Equal(t, pgx.RepeatableRead, Snapshot.IsoLevel)
}
