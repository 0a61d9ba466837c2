package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/pvpbet/internal/domain"
	"github.com/redis/go-redis/v9"
)

// sizingPriceKey holds the native-asset price shared between processes, as a
// hash with fields "price" and "ts" (Unix nanosecond fetch time). Staleness
// is judged by the reader, so the key carries no TTL.
const sizingPriceKey = "sizing:native"

// SizingPriceCache implements domain.SizingPriceCache on a Redis hash.
type SizingPriceCache struct {
	rdb *redis.Client
}

// NewSizingPriceCache creates a SizingPriceCache backed by the given Client.
func NewSizingPriceCache(c *Client) *SizingPriceCache {
	return &SizingPriceCache{rdb: c.Underlying()}
}

// Set stores the native-asset price and its fetch time.
func (sc *SizingPriceCache) Set(ctx context.Context, price float64, fetchedAt time.Time) error {
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(fetchedAt.UnixNano(), 10),
	}
	if err := sc.rdb.HSet(ctx, sizingPriceKey, fields).Err(); err != nil {
		return fmt.Errorf("redis: set sizing price: %w", err)
	}
	return nil
}

// Get retrieves the native-asset price and its fetch time. It returns
// domain.ErrNotFound when no price has been stored yet.
func (sc *SizingPriceCache) Get(ctx context.Context) (float64, time.Time, error) {
	vals, err := sc.rdb.HGetAll(ctx, sizingPriceKey).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get sizing price: %w", err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	priceStr, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse sizing price: %w", err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse sizing price ts: %w", err)
	}

	return price, time.Unix(0, tsNano), nil
}

// Compile-time interface check.
var _ domain.SizingPriceCache = (*SizingPriceCache)(nil)
