package numbers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"calltrack/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "calltrack:number:"

// CachedRepo puts a Redis read-through cache in front of GetByNumber, the
// lookup every inbound call performs. Writes go to the wrapped repository and
// evict the cached entry. Redis failures fall through to the repository.
type CachedRepo struct {
	Repository
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewCachedRepo(repo Repository, rdb redis.UniversalClient, ttl time.Duration) *CachedRepo {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedRepo{Repository: repo, rdb: rdb, ttl: ttl}
}

func cacheKey(number string) string { return cacheKeyPrefix + number }

func (c *CachedRepo) GetByNumber(ctx context.Context, number string) (OwnedNumber, error) {
	log := logger.From(ctx)

	raw, err := c.rdb.Get(ctx, cacheKey(number)).Bytes()
	switch {
	case err == nil:
		var n OwnedNumber
		if jerr := json.Unmarshal(raw, &n); jerr == nil {
			return n, nil
		}
		log.Warn("number cache entry unreadable", "number", number)
	case !errors.Is(err, redis.Nil):
		log.Warn("number cache get failed", "number", number, "err", err)
	}

	n, err := c.Repository.GetByNumber(ctx, number)
	if err != nil {
		return OwnedNumber{}, err
	}
	if b, jerr := json.Marshal(n); jerr == nil {
		if serr := c.rdb.Set(ctx, cacheKey(number), b, c.ttl).Err(); serr != nil {
			log.Warn("number cache set failed", "number", number, "err", serr)
		}
	}
	return n, nil
}

func (c *CachedRepo) Update(ctx context.Context, n OwnedNumber) error {
	if err := c.Repository.Update(ctx, n); err != nil {
		return err
	}
	c.evict(ctx, n.Number)
	return nil
}

func (c *CachedRepo) Create(ctx context.Context, n OwnedNumber) error {
	if err := c.Repository.Create(ctx, n); err != nil {
		return err
	}
	c.evict(ctx, n.Number)
	return nil
}

func (c *CachedRepo) evict(ctx context.Context, number string) {
	if number == "" {
		return
	}
	if err := c.rdb.Del(ctx, cacheKey(number)).Err(); err != nil {
		logger.From(ctx).Warn("number cache evict failed", "number", number, "err", err)
	}
}
