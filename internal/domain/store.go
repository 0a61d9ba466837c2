package domain

import (
	"context"
	"time"
)

// BetStore is the durable record of accepted bets. It exists to survive
// restarts: Scan is called once at startup to rebuild the in-memory expiry
// queue, Insert on acceptance, and DeleteByID after a final settlement.
type BetStore interface {
	Insert(ctx context.Context, bet ActiveBet) error
	DeleteByID(ctx context.Context, id uint64) error
	Scan(ctx context.Context) ([]ActiveBet, error)
}

// UserDirectory looks up and maintains participants. ByID and ByName return
// ErrNotFound for unknown users.
type UserDirectory interface {
	ByID(ctx context.Context, id int64) (User, error)
	ByName(ctx context.Context, name string) (User, error)
	Upsert(ctx context.Context, u User) error
	Delete(ctx context.Context, id int64) error
}

// AuditEntry is a single lifecycle event row.
type AuditEntry struct {
	ID        string
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only log of bet lifecycle transitions.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, limit int) ([]AuditEntry, error)
}
