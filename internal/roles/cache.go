package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/hearthbook/hearthbook/internal/authz"
)

// Grants is the cached, resolver-facing projection of a role.
type Grants struct {
	Privileges authz.PrivilegeMatrix `json:"privileges"`
	Specials   authz.SpecialGrants   `json:"specials"`
}

// Cache keeps role grants in Redis with a short TTL. Expiry is enforced
// server-side; every role mutation path calls Invalidate for the touched
// role, so stale grants never outlive a mutation plus the TTL. Concurrent
// misses for the same role are collapsed through singleflight.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache instantiates the grants cache. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Fetch loads cached grants or populates them using the loader.
func (c *Cache) Fetch(ctx context.Context, roleID int64, loader func(context.Context) (Grants, error)) (Grants, error) {
	if loader == nil {
		return Grants{}, errors.New("roles: cache loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}

	key := c.key(roleID)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var grants Grants
		if err := json.Unmarshal(raw, &grants); err == nil {
			return grants, nil
		}
		// Corrupt entry: drop it and fall through to the loader.
		_ = c.client.Del(ctx, key).Err()
	} else if !errors.Is(err, redis.Nil) {
		return Grants{}, fmt.Errorf("roles: cache get: %w", err)
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		grants, err := loader(ctx)
		if err != nil {
			return Grants{}, err
		}
		data, err := json.Marshal(grants)
		if err != nil {
			return Grants{}, err
		}
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			return Grants{}, fmt.Errorf("roles: cache set: %w", err)
		}
		return grants, nil
	})
	if err != nil {
		return Grants{}, err
	}
	return value.(Grants), nil
}

// Invalidate removes the cached grants for one role. Callers invoke this on
// the same code path that mutates the role record.
func (c *Cache) Invalidate(ctx context.Context, roleID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, c.key(roleID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("roles: cache invalidate: %w", err)
	}
	return nil
}

func (c *Cache) key(roleID int64) string {
	return "roles:grants:" + strconv.FormatInt(roleID, 10)
}
