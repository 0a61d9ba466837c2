package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/pvpbet/internal/domain"
	"github.com/redis/go-redis/v9"
)

// tokenTTL bounds how long resolved token metadata is served without going
// back to the oracle. Rank and name churn slowly; a day is plenty.
const tokenTTL = 24 * time.Hour

// TokenCache implements domain.TokenCache as JSON values at "token:{id}".
type TokenCache struct {
	rdb *redis.Client
}

// NewTokenCache creates a TokenCache backed by the given Client.
func NewTokenCache(c *Client) *TokenCache {
	return &TokenCache{rdb: c.Underlying()}
}

func tokenKey(id int64) string {
	return "token:" + strconv.FormatInt(id, 10)
}

// Set stores token metadata with the package TTL.
func (tc *TokenCache) Set(ctx context.Context, t domain.Token) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("redis: marshal token %d: %w", t.ID, err)
	}
	if err := tc.rdb.Set(ctx, tokenKey(t.ID), raw, tokenTTL).Err(); err != nil {
		return fmt.Errorf("redis: set token %d: %w", t.ID, err)
	}
	return nil
}

// Get retrieves token metadata by id. It returns domain.ErrNotFound on a
// miss or when a stored value no longer decodes.
func (tc *TokenCache) Get(ctx context.Context, id int64) (domain.Token, error) {
	raw, err := tc.rdb.Get(ctx, tokenKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Token{}, domain.ErrNotFound
		}
		return domain.Token{}, fmt.Errorf("redis: get token %d: %w", id, err)
	}

	var t domain.Token
	if err := json.Unmarshal(raw, &t); err != nil {
		// Treat a corrupt entry as a miss so the oracle refreshes it.
		return domain.Token{}, domain.ErrNotFound
	}
	return t, nil
}

// Compile-time interface check.
var _ domain.TokenCache = (*TokenCache)(nil)
