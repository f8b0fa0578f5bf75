package mapping

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keeps the auto-confirmed lookup hot in Redis so the ingestion
// path does not hit the database per line item.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client degrades to
// pass-through loading.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func confirmedKey(typ Type) string {
	return "mapping:confirmed:" + string(typ)
}

// Confirmed loads the auto-confirmed lookup for a type, populating the
// cache from the loader on a miss.
func (c *Cache) Confirmed(ctx context.Context, typ Type, loader func(context.Context) (map[string]Mapping, error)) (map[string]Mapping, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key := confirmedKey(typ)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached map[string]Mapping
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
	} else if err != redis.Nil {
		return nil, err
	}

	loaded, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(loaded)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return nil, err
	}
	return loaded, nil
}

// Invalidate drops the cached lookup for a type, typically after an
// upsert changes a mapping.
func (c *Cache) Invalidate(ctx context.Context, typ Type) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, confirmedKey(typ)).Err()
}
