package users

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/conformia/conformia/internal/rbac"
	"github.com/conformia/conformia/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Insert(ctx context.Context, user User) (User, error)
	Get(ctx context.Context, id int64) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, unitID int64) ([]User, error)
	Update(ctx context.Context, user User) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles account management.
type Service struct {
	repo      RepositoryPort
	evaluator *rbac.Evaluator
	audit     AuditPort
	logger    *slog.Logger
}

// NewService builds a Service.
func NewService(repo RepositoryPort, evaluator *rbac.Evaluator, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, evaluator: evaluator, audit: audit, logger: logger}
}

// CreateInput describes a new account.
type CreateInput struct {
	Email    string
	Name     string
	Password string
	Role     string
	UnitID   int64
}

// Create registers an account with a bcrypt password hash.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (User, error) {
	if !s.evaluator.Authorize(rbac.Role(actor.Role), rbac.ResourceUsers, rbac.ActionCreate) {
		return User{}, shared.ErrUnauthorized
	}
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Email == "" || strings.TrimSpace(input.Name) == "" {
		return User{}, fmt.Errorf("users: email and name required: %w", shared.ErrValidation)
	}
	if len(input.Password) < 8 {
		return User{}, fmt.Errorf("users: password must have at least 8 characters: %w", shared.ErrValidation)
	}
	if !rbac.Role(input.Role).Valid() {
		return User{}, fmt.Errorf("users: role %q unknown: %w", input.Role, shared.ErrValidation)
	}
	if input.UnitID <= 0 {
		return User{}, fmt.Errorf("users: unit required: %w", shared.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.repo.Insert(ctx, User{
		Email:        input.Email,
		Name:         strings.TrimSpace(input.Name),
		Role:         input.Role,
		UnitID:       input.UnitID,
		PasswordHash: string(hash),
		IsActive:     true,
	})
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, actor, "USER_CREATE", user.ID, map[string]any{"email": user.Email, "role": user.Role})
	return user, nil
}

// Assign moves the user to another role or unit.
func (s *Service) Assign(ctx context.Context, actor shared.Actor, id int64, role string, unitID int64) (User, error) {
	if !s.evaluator.Authorize(rbac.Role(actor.Role), rbac.ResourceUsers, rbac.ActionUpdate) {
		return User{}, shared.ErrUnauthorized
	}
	if !rbac.Role(role).Valid() {
		return User{}, fmt.Errorf("users: role %q unknown: %w", role, shared.ErrValidation)
	}
	if unitID <= 0 {
		return User{}, fmt.Errorf("users: unit required: %w", shared.ErrValidation)
	}
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	user.Role = role
	user.UnitID = unitID
	if err := s.repo.Update(ctx, user); err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, actor, "USER_ASSIGN", id, map[string]any{"role": role, "unit_id": unitID})
	return user, nil
}

// Deactivate disables the account. Sessions die at the next lookup.
func (s *Service) Deactivate(ctx context.Context, actor shared.Actor, id int64) error {
	if !s.evaluator.Authorize(rbac.Role(actor.Role), rbac.ResourceUsers, rbac.ActionDelete) {
		return shared.ErrUnauthorized
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "USER_DEACTIVATE", id, nil)
	return nil
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// List returns accounts, optionally filtered by unit (0 means all).
func (s *Service) List(ctx context.Context, actor shared.Actor, unitID int64) ([]User, error) {
	if !s.evaluator.Authorize(rbac.Role(actor.Role), rbac.ResourceUsers, rbac.ActionRead) {
		return nil, shared.ErrUnauthorized
	}
	return s.repo.List(ctx, unitID)
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor.UserID, Action: action, Entity: "users", EntityID: strconv.FormatInt(id, 10), Meta: meta}); err != nil && s.logger != nil {
		s.logger.Error("record audit", slog.Any("error", err))
	}
}
