package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/pvpbet/internal/domain"
)

// BetStore implements domain.BetStore. Amounts and prices are stored as
// decimal strings since they exceed BIGINT range.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

// Insert records an accepted bet. Inserting an id that already exists is an
// error: ledger bet ids are unique and a duplicate means a reconciliation bug.
func (s *BetStore) Insert(ctx context.Context, bet domain.ActiveBet) error {
	const query = `
		INSERT INTO active_bets (
			id, chat_id, created_at, over_user_id, under_user_id,
			amount, deadline, price, token_resolver, token_ref, creation_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.pool.Exec(ctx, query,
		int64(bet.ID), bet.ChatID, bet.CreatedAt, bet.OverUserID, bet.UnderUserID,
		bet.Amount.String(), int64(bet.Deadline), bet.Price.String(),
		bet.TokenResolver, bet.TokenRef, bet.CreationHash,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert bet %d: %w", bet.ID, err)
	}
	return nil
}

// DeleteByID removes a settled bet. Deleting an absent id is not an error;
// the settlement path may retry after a partial failure.
func (s *BetStore) DeleteByID(ctx context.Context, id uint64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM active_bets WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("postgres: delete bet %d: %w", id, err)
	}
	return nil
}

// Scan returns every active bet ordered by settlement deadline, for rebuilding
// the in-memory queue at startup.
func (s *BetStore) Scan(ctx context.Context) ([]domain.ActiveBet, error) {
	const query = `
		SELECT id, chat_id, created_at, over_user_id, under_user_id,
		       amount, deadline, price, token_resolver, token_ref, creation_hash
		FROM active_bets
		ORDER BY deadline, created_at`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bets: %w", err)
	}
	defer rows.Close()

	var bets []domain.ActiveBet
	for rows.Next() {
		var (
			bet                 domain.ActiveBet
			id, deadline        int64
			amountStr, priceStr string
		)
		if err := rows.Scan(
			&id, &bet.ChatID, &bet.CreatedAt, &bet.OverUserID, &bet.UnderUserID,
			&amountStr, &deadline, &priceStr,
			&bet.TokenResolver, &bet.TokenRef, &bet.CreationHash,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan bet row: %w", err)
		}

		bet.ID = uint64(id)
		bet.Deadline = uint64(deadline)

		var ok bool
		if bet.Amount, ok = new(big.Int).SetString(amountStr, 10); !ok {
			return nil, fmt.Errorf("postgres: bet %d: malformed amount %q", id, amountStr)
		}
		if bet.Price, ok = new(big.Int).SetString(priceStr, 10); !ok {
			return nil, fmt.Errorf("postgres: bet %d: malformed price %q", id, priceStr)
		}

		bets = append(bets, bet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan bets rows: %w", err)
	}
	return bets, nil
}

// Compile-time interface check.
var _ domain.BetStore = (*BetStore)(nil)
