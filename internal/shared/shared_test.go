package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopeValidate(t *testing.T) {
	require.ErrorIs(t, Scope{}.Validate(), ErrScopeRequired)
	require.Error(t, Scope{BusinessID: 1, BranchID: -1}.Validate())
	require.NoError(t, NewScope(1, 0).Validate())

	s := NewScope(3, 7)
	require.True(t, s.HasBranch())
	require.Equal(t, int64(7), *s.BranchPtr())
	require.Nil(t, NewScope(3, 0).BranchPtr())
	require.Equal(t, "3/7", s.String())
}

func TestPaginationBounds(t *testing.T) {
	p := NewPagination(2, 10, 25)
	require.Equal(t, 3, p.TotalPages)
	start, end := p.Bounds()
	require.Equal(t, 10, start)
	require.Equal(t, 20, end)

	start, end = NewPagination(5, 10, 25).Bounds()
	require.Equal(t, 25, start)
	require.Equal(t, 25, end)
}

func TestIdempotencyKeyNamespacesBusiness(t *testing.T) {
	require.Equal(t, "4:ledger:abc", IdempotencyKey(4, "ledger", "abc"))
	require.NotEqual(t, IdempotencyKey(4, "ledger", "abc"), IdempotencyKey(5, "ledger", "abc"))
}

func TestScopeContext(t *testing.T) {
	_, err := ScopeFromContext(context.Background())
	require.ErrorIs(t, err, ErrScopeRequired)

	ctx := ContextWithScope(context.Background(), NewScope(4, 2))
	ctx = ContextWithActor(ctx, 9)
	scope, err := ScopeFromContext(ctx)
	require.NoError(t, err)
	require.Equal(t, NewScope(4, 2), scope)
	require.Equal(t, int64(9), ActorFromContext(ctx))
	require.Zero(t, ActorFromContext(context.Background()))
}
