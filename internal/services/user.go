package services

import (
	"context"
	"errors"

	"github.com/b-cal/apiserver/internal/store"
	"github.com/b-cal/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateRefreshTokenHash(ctx context.Context, id string, hash *string) error
	SwapRefreshTokenHash(ctx context.Context, id, current, next string) error
}

// UserService encapsulates user lookups outside the session flow.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Me resolves the identity behind a verified access token. A token whose user
// has since disappeared is treated as unauthorized.
func (s *UserService) Me(ctx context.Context, userID string) (types.Identity, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Identity{}, ErrUnauthorized
		}
		return types.Identity{}, err
	}
	return types.Identity{ID: user.ID, Email: user.Email}, nil
}
