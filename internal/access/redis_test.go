package access

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"embed-delivery/internal/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	*MemoryPolicyStore
	calls atomic.Int32
}

func (s *countingStore) FindPolicy(ctx context.Context, domain string) (Policy, error) {
	s.calls.Add(1)
	return s.MemoryPolicyStore.FindPolicy(ctx, domain)
}

func setupMiniRedis(t *testing.T, next PolicyStore) (*miniredis.Miniredis, *RedisPolicyCache) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, NewRedisPolicyCache(client, next, time.Minute, logger.Discard())
}

func TestRedisPolicyCache_HitAvoidsBackingStore(t *testing.T) {
	backing := &countingStore{MemoryPolicyStore: NewMemoryPolicyStore(Policy{Domain: "a.com", RecordID: "r1", Disposition: Deny})}
	_, cache := setupMiniRedis(t, backing)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := cache.FindPolicy(ctx, "a.com")
		require.NoError(t, err)
		assert.Equal(t, Deny, p.Disposition)
		assert.Equal(t, "r1", p.RecordID)
	}
	assert.Equal(t, int32(1), backing.calls.Load())
}

func TestRedisPolicyCache_NegativeCaching(t *testing.T) {
	backing := &countingStore{MemoryPolicyStore: NewMemoryPolicyStore()}
	mr, cache := setupMiniRedis(t, backing)
	ctx := context.Background()

	_, err := cache.FindPolicy(ctx, "unknown.com")
	assert.ErrorIs(t, err, ErrNoPolicy)
	_, err = cache.FindPolicy(ctx, "unknown.com")
	assert.ErrorIs(t, err, ErrNoPolicy)
	assert.Equal(t, int32(1), backing.calls.Load())

	mr.FastForward(2 * time.Minute)
	_, _ = cache.FindPolicy(ctx, "unknown.com")
	assert.Equal(t, int32(2), backing.calls.Load(), "expired entry goes back to the store")
}

func TestRedisPolicyCache_RedisDownFallsThrough(t *testing.T) {
	backing := &countingStore{MemoryPolicyStore: NewMemoryPolicyStore(Policy{Domain: "a.com", Disposition: Allow})}
	mr, cache := setupMiniRedis(t, backing)
	mr.Close()

	p, err := cache.FindPolicy(context.Background(), "a.com")
	require.NoError(t, err)
	assert.Equal(t, Allow, p.Disposition)
}

func TestRedisPolicyCache_UpsertInvalidates(t *testing.T) {
	backing := &countingStore{MemoryPolicyStore: NewMemoryPolicyStore(Policy{Domain: "a.com", Disposition: Allow})}
	_, cache := setupMiniRedis(t, backing)
	ctx := context.Background()

	_, _ = cache.FindPolicy(ctx, "a.com")
	_, err := cache.UpsertPolicy(ctx, Policy{Domain: "a.com", Disposition: Deny})
	require.NoError(t, err)

	p, err := cache.FindPolicy(ctx, "a.com")
	require.NoError(t, err)
	assert.Equal(t, Deny, p.Disposition)
}

func TestRedisPolicyCache_ReadOnlyBacking(t *testing.T) {
	_, cache := setupMiniRedis(t, errStore{err: ErrNoPolicy})
	_, err := cache.UpsertPolicy(context.Background(), Policy{Domain: "a.com"})
	assert.ErrorIs(t, err, ErrReadOnly)
}
