// Package redis keeps resolved token prices in Redis in front of the durable price table.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"holdersync/internal/model"
	"holdersync/internal/storage"
)

const keyPrefix = "holdersync:price:"

type Config struct {
	Addr     string
	Password string
	DB       int
	// TTL is the Redis expiry of an entry. Zero keeps entries until overwritten.
	TTL time.Duration
}

// PriceCache reads Redis first and falls through to the backing store. Writes go to both.
type PriceCache struct {
	rdb     *redis.Client
	ttl     time.Duration
	backing storage.PriceCache
	logger  *zap.Logger
}

var _ storage.PriceCache = (*PriceCache)(nil)

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// NewPriceCache wraps rdb with the entry expiry from cfg. backing may be nil.
func NewPriceCache(rdb *redis.Client, cfg Config, backing storage.PriceCache, logger *zap.Logger) *PriceCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.TTL
	if ttl < 0 {
		ttl = 0
	}
	return &PriceCache{rdb: rdb, ttl: ttl, backing: backing, logger: logger}
}

func (c *PriceCache) GetTokenPrice(ctx context.Context, tokenAddress string) (model.CachedTokenPrice, error) {
	key := cacheKey(tokenAddress)
	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var price model.CachedTokenPrice
		if err := json.Unmarshal(data, &price); err == nil {
			return price, nil
		}
		c.logger.Warn("drop corrupt price cache entry", zap.String("key", key))
		_ = c.rdb.Del(ctx, key).Err()
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("redis get failed", zap.String("key", key), zap.Error(err))
	}

	if c.backing == nil {
		return model.CachedTokenPrice{}, fmt.Errorf("token price %s: %w", tokenAddress, storage.ErrNotFound)
	}
	price, err := c.backing.GetTokenPrice(ctx, tokenAddress)
	if err != nil {
		return model.CachedTokenPrice{}, err
	}
	if err := c.set(ctx, price); err != nil {
		c.logger.Warn("redis backfill failed", zap.String("key", key), zap.Error(err))
	}
	return price, nil
}

func (c *PriceCache) PutTokenPrice(ctx context.Context, price model.CachedTokenPrice) error {
	if price.TokenAddress == "" {
		return fmt.Errorf("token address: %w", storage.ErrInvalidInput)
	}
	price.TokenAddress = strings.ToLower(price.TokenAddress)
	if c.backing != nil {
		if err := c.backing.PutTokenPrice(ctx, price); err != nil {
			return err
		}
	}
	if err := c.set(ctx, price); err != nil {
		return fmt.Errorf("set redis price: %w", err)
	}
	return nil
}

func (c *PriceCache) set(ctx context.Context, price model.CachedTokenPrice) error {
	data, err := json.Marshal(price)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cacheKey(price.TokenAddress), data, c.ttl).Err()
}

func cacheKey(tokenAddress string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(tokenAddress))
}
