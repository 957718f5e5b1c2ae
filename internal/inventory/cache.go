package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// LayerCache stores replayed FIFO state in Redis. Every product has its own
// version counter; bumping it orphans all cached dates for that product.
type LayerCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewLayerCache instantiates the cache. A nil client disables caching.
func NewLayerCache(client *redis.Client, ttl time.Duration) *LayerCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &LayerCache{client: client, ttl: ttl}
}

func versionKey(businessID, productID int64) string {
	return fmt.Sprintf("inventory:layers:ver:%d:%d", businessID, productID)
}

func layerKey(businessID, productID, version int64, asOf time.Time) string {
	return fmt.Sprintf("inventory:layers:%d:%d:v%d:%s", businessID, productID, version, asOf.Format("2006-01-02"))
}

// Version returns the current version of a product, zero when never bumped.
func (c *LayerCache) Version(ctx context.Context, businessID, productID int64) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey(businessID, productID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

// Fetch returns cached FIFO state or builds it with loader. Concurrent
// misses for the same key share one load.
func (c *LayerCache) Fetch(ctx context.Context, businessID, productID int64, asOf time.Time, loader func(context.Context) (FIFOState, error)) (FIFOState, error) {
	if loader == nil {
		return FIFOState{}, errors.New("inventory: cache loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	ver, err := c.Version(ctx, businessID, productID)
	if err != nil {
		return FIFOState{}, err
	}
	key := layerKey(businessID, productID, ver, asOf)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var state FIFOState
		if err := json.Unmarshal(payload, &state); err != nil {
			return FIFOState{}, fmt.Errorf("inventory: decode cached layers: %w", err)
		}
		return state, nil
	}
	if !errors.Is(err, redis.Nil) {
		return FIFOState{}, err
	}
	// the shared fill outlives any one caller
	fillCtx := context.WithoutCancel(ctx)
	res := c.group.DoChan(key, func() (interface{}, error) {
		state, err := loader(fillCtx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(state)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(fillCtx, key, raw, c.ttl).Err(); err != nil {
			return nil, err
		}
		return state, nil
	})
	select {
	case <-ctx.Done():
		return FIFOState{}, ctx.Err()
	case out := <-res:
		if out.Err != nil {
			return FIFOState{}, out.Err
		}
		return out.Val.(FIFOState), nil
	}
}

// Invalidate bumps the product version.
func (c *LayerCache) Invalidate(ctx context.Context, businessID, productID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(businessID, productID)).Err()
}
