package access

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const policyKeyPrefix = "embed:policy:"

// RedisPolicyCache is a read-through cache in front of another PolicyStore.
// Absent records are cached too, so unknown domains do not hit the backing store
// on every request. Redis failures fall through to the backing store.
type RedisPolicyCache struct {
	client *redis.Client
	next   PolicyStore
	ttl    time.Duration
	log    *slog.Logger
}

var _ PolicyStore = (*RedisPolicyCache)(nil)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  200 * time.Millisecond,
		WriteTimeout: 200 * time.Millisecond,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// NewRedisPolicyCache wraps next with a cache whose entries live for ttl.
func NewRedisPolicyCache(client *redis.Client, next PolicyStore, ttl time.Duration, log *slog.Logger) *RedisPolicyCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisPolicyCache{client: client, next: next, ttl: ttl, log: log}
}

type cachedPolicy struct {
	Found  bool   `json:"found"`
	Policy Policy `json:"policy"`
}

// FindPolicy implements PolicyStore.
func (c *RedisPolicyCache) FindPolicy(ctx context.Context, domain string) (Policy, error) {
	key := policyKeyPrefix + domain

	val, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cp cachedPolicy
		if jerr := json.Unmarshal(val, &cp); jerr == nil {
			if !cp.Found {
				return Policy{}, ErrNoPolicy
			}
			return cp.Policy, nil
		}
		c.log.Debug("discarding malformed cached policy", slog.String("domain", domain))
	case !errors.Is(err, redis.Nil):
		c.log.Debug("redis policy get failed", slog.String("domain", domain), slog.String("error", err.Error()))
	}

	p, err := c.next.FindPolicy(ctx, domain)
	switch {
	case errors.Is(err, ErrNoPolicy):
		c.store(ctx, key, cachedPolicy{Found: false})
		return Policy{}, ErrNoPolicy
	case err != nil:
		return Policy{}, err
	}
	c.store(ctx, key, cachedPolicy{Found: true, Policy: p})
	return p, nil
}

// Invalidate drops the cached entry for domain after an administrative write.
func (c *RedisPolicyCache) Invalidate(ctx context.Context, domain string) error {
	return c.client.Del(ctx, policyKeyPrefix+domain).Err()
}

func (c *RedisPolicyCache) store(ctx context.Context, key string, cp cachedPolicy) {
	data, err := json.Marshal(cp)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Debug("redis policy set failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// UpsertPolicy writes through to the backing store and drops the cached entry.
func (c *RedisPolicyCache) UpsertPolicy(ctx context.Context, p Policy) (Policy, error) {
	w, ok := c.next.(PolicyWriter)
	if !ok {
		return Policy{}, ErrReadOnly
	}
	out, err := w.UpsertPolicy(ctx, p)
	if err != nil {
		return Policy{}, err
	}
	if err := c.Invalidate(ctx, p.Domain); err != nil {
		c.log.Warn("redis policy invalidate failed", slog.String("domain", p.Domain), slog.String("error", err.Error()))
	}
	return out, nil
}
