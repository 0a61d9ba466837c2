package domain

import (
	"context"
	"time"
)

// SizingPriceCache holds the last known native-asset price together with the
// time it was fetched, so callers can decide whether it is stale.
type SizingPriceCache interface {
	Get(ctx context.Context) (price float64, fetchedAt time.Time, err error)
	Set(ctx context.Context, price float64, fetchedAt time.Time) error
}

// TokenCache holds resolved token metadata keyed by token id. Get returns
// ErrNotFound on a miss.
type TokenCache interface {
	Get(ctx context.Context, id int64) (Token, error)
	Set(ctx context.Context, t Token) error
}

// LockManager provides process-wide mutual exclusion, used to keep multiple
// engine instances from draining the settlement queue at the same time.
// Acquire returns ErrLockHeld when another holder owns the key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
