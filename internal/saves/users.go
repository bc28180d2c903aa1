package saves

import (
	"context"
	"fmt"

	"github.com/neexbeast/tether/internal/saved"
)

// CreateUser registers a user so they can save resources.
func (s *Service) CreateUser(ctx context.Context, u saved.User) (saved.User, error) {
	u, err := saved.NewUser(u.ID, u.Details)
	if err != nil {
		return saved.User{}, err
	}

	var created saved.User
	err = s.tx.InTx(ctx, func(ctx context.Context, st saved.Stores) error {
		var err error
		created, err = st.Users().Create(ctx, u)
		return err
	})
	if err != nil {
		return saved.User{}, err
	}

	s.log.Info("user created", "user_id", created.ID)
	return created, nil
}

// GetUser returns the registered user, or saved.ErrUnknownUser.
func (s *Service) GetUser(ctx context.Context, userID string) (*saved.User, error) {
	var u *saved.User
	err := s.tx.InTx(ctx, func(ctx context.Context, st saved.Stores) error {
		var err error
		u, err = st.Users().Get(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %s: %w", userID, saved.ErrUnknownUser)
	}
	return u, nil
}
