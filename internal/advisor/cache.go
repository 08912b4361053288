package advisor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/cleared-dev/ledger/internal/tenant"
)

// noSuggestion is cached for descriptions the next suggester had no answer for.
const noSuggestion = "-"

// Cached memoizes another Suggester in Redis. Redis failures fall through to the
// wrapped suggester.
type Cached struct {
	next Suggester
	rdb  *redis.Client
	ttl  time.Duration
	log  *slog.Logger
}

// NewCached wraps next with a Redis cache. A nil logger discards output.
func NewCached(next Suggester, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *Cached {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Cached{next: next, rdb: rdb, ttl: ttl, log: log}
}

// CacheKey returns the Redis key used for a tenant's description.
func CacheKey(tenantID, description string) string {
	sum := sha256.Sum256([]byte(normalize(description)))
	return "ledger:suggest:" + tenantID + ":" + hex.EncodeToString(sum[:])
}

func (c *Cached) Suggest(ctx context.Context, description string) (string, bool) {
	key := CacheKey(tenant.IDFrom(ctx), description)

	val, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		if val == noSuggestion {
			return "", false
		}
		return val, true
	case !errors.Is(err, redis.Nil):
		c.log.Warn("suggestion cache read failed", "error", err)
	}

	accountID, ok := c.next.Suggest(ctx, description)
	cached := accountID
	if !ok {
		cached = noSuggestion
	}
	if err := c.rdb.Set(ctx, key, cached, c.ttl).Err(); err != nil {
		c.log.Warn("suggestion cache write failed", "error", err)
	}
	return accountID, ok
}

// Forget drops a cached suggestion, e.g. after the account it pointed at was rejected.
func (c *Cached) Forget(ctx context.Context, tenantID, description string) error {
	return c.rdb.Del(ctx, CacheKey(tenantID, description)).Err()
}
