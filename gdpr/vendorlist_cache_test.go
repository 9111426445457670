package gdpr

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prebid/prebid-privacy/config"
)

func TestRedisVendorListCache(t *testing.T) {
	redisServer := miniredis.RunT(t)
	cache := NewRedisVendorListCache(config.RedisCache{
		Address:    redisServer.Addr(),
		KeyPrefix:  "gvl:",
		TTLSeconds: 60,
		TimeoutMs:  500,
	})
	defer cache.Close()

	ctx := context.Background()

	_, err := cache.Get(ctx, 2, 10)
	assert.ErrorIs(t, err, ErrVendorListCacheMiss, "empty cache")

	require.NoError(t, cache.Set(ctx, 2, 10, []byte(vendorList1)))
	require.NoError(t, cache.Set(ctx, 3, 10, []byte(vendorList2)))

	body, err := cache.Get(ctx, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, vendorList1, string(body))

	body, err = cache.Get(ctx, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, vendorList2, string(body), "specification versions are kept apart")

	assert.True(t, redisServer.Exists("gvl:v2:10"))
	assert.Equal(t, time.Minute, redisServer.TTL("gvl:v2:10"))

	redisServer.FastForward(time.Minute)
	_, err = cache.Get(ctx, 2, 10)
	assert.ErrorIs(t, err, ErrVendorListCacheMiss, "expired entry")
}

func TestRedisVendorListCacheWithoutTTL(t *testing.T) {
	redisServer := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: redisServer.Addr()})
	cache := newRedisVendorListCache(client, config.RedisCache{})

	require.NoError(t, cache.Set(context.Background(), 2, 1, []byte(vendorList1)))

	assert.True(t, redisServer.Exists("v2:1"))
	assert.Zero(t, redisServer.TTL("v2:1"))
}

func TestRedisVendorListCacheUnavailable(t *testing.T) {
	redisServer, err := miniredis.Run()
	require.NoError(t, err)
	cache := NewRedisVendorListCache(config.RedisCache{Address: redisServer.Addr(), TimeoutMs: 100})
	redisServer.Close()

	_, err = cache.Get(context.Background(), 2, 1)

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrVendorListCacheMiss)
}
