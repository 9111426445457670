package gdpr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prebid/prebid-privacy/config"
)

// ErrVendorListCacheMiss is returned by a VendorListCache which does not hold the requested list.
var ErrVendorListCacheMiss = errors.New("vendor list not cached")

// VendorListCache shares raw GVL documents between server instances.
type VendorListCache interface {
	Get(ctx context.Context, specVersion, listVersion uint16) ([]byte, error)
	Set(ctx context.Context, specVersion, listVersion uint16, body []byte) error
}

// RedisVendorListCache stores GVL documents as plain redis strings.
type RedisVendorListCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	timeout   time.Duration
}

// NewRedisVendorListCache connects lazily; the first command opens the connection.
func NewRedisVendorListCache(cfg config.RedisCache) *RedisVendorListCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedisVendorListCache(client, cfg)
}

func newRedisVendorListCache(client *redis.Client, cfg config.RedisCache) *RedisVendorListCache {
	return &RedisVendorListCache{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL(),
		timeout:   cfg.Timeout(),
	}
}

func (c *RedisVendorListCache) key(specVersion, listVersion uint16) string {
	return fmt.Sprintf("%sv%d:%d", c.keyPrefix, specVersion, listVersion)
}

func (c *RedisVendorListCache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *RedisVendorListCache) Get(ctx context.Context, specVersion, listVersion uint16) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	body, err := c.client.Get(ctx, c.key(specVersion, listVersion)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrVendorListCacheMiss
	}
	return body, err
}

// Set stores the document. A zero ttl keeps it without expiry.
func (c *RedisVendorListCache) Set(ctx context.Context, specVersion, listVersion uint16, body []byte) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	return c.client.Set(ctx, c.key(specVersion, listVersion), body, c.ttl).Err()
}

// Close releases the redis connection pool.
func (c *RedisVendorListCache) Close() error {
	return c.client.Close()
}
