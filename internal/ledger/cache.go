package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// CostCache stores derived unit costs in Redis with a short TTL. The cache is
// advisory only: a miss or a Redis outage falls through to the database.
type CostCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCostCache instantiates the cache helper.
func NewCostCache(client *redis.Client, ttl time.Duration) *CostCache {
	return &CostCache{client: client, ttl: ttl}
}

func costKey(productID int64) string {
	return fmt.Sprintf("ledger:unitcost:%d", productID)
}

// GetUnitCost returns the cached unit cost when present.
func (c *CostCache) GetUnitCost(ctx context.Context, productID int64) (decimal.Decimal, bool, error) {
	if c == nil || c.client == nil {
		return decimal.Zero, false, nil
	}
	raw, err := c.client.Get(ctx, costKey(productID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}
	cost, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, err
	}
	return cost, true, nil
}

// SetUnitCost stores the derived unit cost.
func (c *CostCache) SetUnitCost(ctx context.Context, productID int64, cost decimal.Decimal) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, costKey(productID), cost.String(), c.ttl).Err()
}

// Invalidate drops the cached value after a ledger write.
func (c *CostCache) Invalidate(ctx context.Context, productID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, costKey(productID)).Err()
}
