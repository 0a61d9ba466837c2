package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/pvpbet/internal/domain"
)

// UserStore implements domain.UserDirectory using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a UserStore backed by the given connection pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

// ByID looks up a user by id. Returns domain.ErrNotFound for unknown users.
func (s *UserStore) ByID(ctx context.Context, id int64) (domain.User, error) {
	const query = `SELECT id, name, wallet_addr, verified FROM users WHERE id = $1`

	var u domain.User
	err := s.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.Name, &u.WalletAddr, &u.Verified)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, fmt.Errorf("postgres: user %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("postgres: get user %d: %w", id, err)
	}
	return u, nil
}

// ByName looks up a user by name, case-insensitively.
func (s *UserStore) ByName(ctx context.Context, name string) (domain.User, error) {
	const query = `SELECT id, name, wallet_addr, verified FROM users WHERE LOWER(name) = LOWER($1)`

	var u domain.User
	err := s.pool.QueryRow(ctx, query, name).Scan(&u.ID, &u.Name, &u.WalletAddr, &u.Verified)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, fmt.Errorf("postgres: user %q: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("postgres: get user %q: %w", name, err)
	}
	return u, nil
}

// Upsert inserts or updates a user record.
func (s *UserStore) Upsert(ctx context.Context, u domain.User) error {
	const query = `
		INSERT INTO users (id, name, wallet_addr, verified)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			wallet_addr = EXCLUDED.wallet_addr,
			verified = EXCLUDED.verified`

	if _, err := s.pool.Exec(ctx, query, u.ID, u.Name, u.WalletAddr, u.Verified); err != nil {
		return fmt.Errorf("postgres: upsert user %d: %w", u.ID, err)
	}
	return nil
}

// Delete removes a user record. Deleting an absent id is not an error.
func (s *UserStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete user %d: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.UserDirectory = (*UserStore)(nil)
