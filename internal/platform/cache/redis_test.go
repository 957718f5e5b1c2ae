package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestNewAndProbe(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	client, err := New(ctx, Options{Addr: srv.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	probe := Probe(client)
	require.NoError(t, probe(ctx))

	srv.Close()
	require.Error(t, probe(ctx))
	require.Error(t, Probe(nil)(ctx))
}
