// README: Cache backends for access records (Redis, no-op).
package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"courier/internal/types"
)

const keyPrefix = "order_access"

// Cache stores access records by order id. Get reports ok=false on a miss.
type Cache interface {
	Get(ctx context.Context, orderID types.ID) (Record, bool, error)
	Set(ctx context.Context, orderID types.ID, rec Record, ttl time.Duration) error
}

func Key(orderID types.ID) string {
	return fmt.Sprintf("%s:%s", keyPrefix, orderID)
}

type redisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) Cache {
	return redisCache{client: client}
}

func (c redisCache) Get(ctx context.Context, orderID types.ID) (Record, bool, error) {
	raw, err := c.client.Get(ctx, Key(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode access record: %w", err)
	}
	return rec, true, nil
}

func (c redisCache) Set(ctx context.Context, orderID types.ID, rec Record, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, Key(orderID), raw, ttl).Err()
}

// NopCache never hits; every Resolve falls through to the loader.
type NopCache struct{}

func (NopCache) Get(context.Context, types.ID) (Record, bool, error) { return Record{}, false, nil }

func (NopCache) Set(context.Context, types.ID, Record, time.Duration) error { return nil }
