package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/conformia/conformia/internal/shared"
	"github.com/conformia/conformia/internal/users"
)

// UsersPort is implemented by the users repository.
type UsersPort interface {
	FindByEmail(ctx context.Context, email string) (users.User, error)
}

// Service wraps authentication business rules.
type Service struct {
	users UsersPort
	repo  Repository
}

// NewService constructs a new Service.
func NewService(usersPort UsersPort, repo Repository) *Service {
	return &Service{users: usersPort, repo: repo}
}

// Authenticate validates email/password credentials. Any failure collapses
// into ErrInvalidCredentials so callers cannot probe for accounts.
func (s *Service) Authenticate(ctx context.Context, email, password string) (users.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
