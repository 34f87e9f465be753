package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/watchstats/internal/domain"
)

// UsersRepository reads the account rows the stats engine iterates over.
type UsersRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a user with a fresh identifier.
func (r *UsersRepository) Create(ctx context.Context, username string) (domain.User, error) {
	const query = `
        INSERT INTO users (id, username)
        VALUES ($1, $2)
        RETURNING id::text, username, created_at
    `
	var user domain.User
	err := r.pool.QueryRow(ctx, query, uuid.NewString(), username).Scan(&user.ID, &user.Username, &user.CreatedAt)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// GetByID fetches a user. Malformed identifiers are reported as ErrNotFound.
func (r *UsersRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.User{}, ErrNotFound
	}
	const query = `SELECT id::text, username, created_at FROM users WHERE id = $1`
	var user domain.User
	err := r.pool.QueryRow(ctx, query, id).Scan(&user.ID, &user.Username, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// ListIDs returns every user identifier in creation order.
func (r *UsersRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id::text FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return ids, nil
}
