package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/neexbeast/tether/internal/saved"
)

// UserStore persists the user registry.
type UserStore struct {
	q Querier
}

// NewUserStore constructs a UserStore over q.
func NewUserStore(q Querier) *UserStore {
	return &UserStore{q: q}
}

// Create registers the user. A taken id is rejected with saved.ErrUserExists.
func (s *UserStore) Create(ctx context.Context, u saved.User) (saved.User, error) {
	const q = `
		INSERT INTO users (user_id, user_details, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO NOTHING
		RETURNING created_at
	`

	err := s.q.QueryRow(ctx, q, u.ID, u.Details).Scan(&u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
			return saved.User{}, fmt.Errorf("creating user %s: %w", u.ID, saved.ErrUserExists)
		}
		return saved.User{}, fmt.Errorf("creating user %s: %w", u.ID, err)
	}
	return u, nil
}

// Get retrieves a user by id. Returns nil, nil when it does not exist.
func (s *UserStore) Get(ctx context.Context, userID string) (*saved.User, error) {
	const q = `
		SELECT user_id, user_details, created_at
		FROM users
		WHERE user_id = $1
	`

	var u saved.User
	err := s.q.QueryRow(ctx, q, userID).Scan(&u.ID, &u.Details, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user %s: %w", userID, err)
	}
	return &u, nil
}
