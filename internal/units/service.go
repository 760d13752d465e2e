package units

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/conformia/conformia/internal/rbac"
	"github.com/conformia/conformia/internal/shared"
)

// RepositoryPort describes persistence used by Service.
type RepositoryPort interface {
	Insert(ctx context.Context, unit Unit) (Unit, error)
	Get(ctx context.Context, id int64) (Unit, error)
	List(ctx context.Context, includeInactive bool) ([]Unit, error)
	Update(ctx context.Context, unit Unit) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages organizational units.
type Service struct {
	repo      RepositoryPort
	evaluator *rbac.Evaluator
	audit     AuditPort
	logger    *slog.Logger
}

// NewService constructs the units service.
func NewService(repo RepositoryPort, evaluator *rbac.Evaluator, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, evaluator: evaluator, audit: audit, logger: logger}
}

// Create registers a unit.
func (s *Service) Create(ctx context.Context, actor shared.Actor, code, name string) (Unit, error) {
	if !s.evaluator.Authorize(rbac.Role(actor.Role), rbac.ResourceUnits, rbac.ActionCreate) {
		return Unit{}, shared.ErrUnauthorized
	}
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	if code == "" || name == "" {
		return Unit{}, fmt.Errorf("units: code and name required: %w", shared.ErrValidation)
	}
	unit, err := s.repo.Insert(ctx, Unit{Code: code, Name: name, IsActive: true})
	if err != nil {
		return Unit{}, err
	}
	s.recordAudit(ctx, actor, "UNIT_CREATE", unit.ID, map[string]any{"code": unit.Code})
	return unit, nil
}

// Rename updates the unit's display name.
func (s *Service) Rename(ctx context.Context, actor shared.Actor, id int64, name string) (Unit, error) {
	if !s.evaluator.Authorize(rbac.Role(actor.Role), rbac.ResourceUnits, rbac.ActionUpdate) {
		return Unit{}, shared.ErrUnauthorized
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Unit{}, fmt.Errorf("units: name required: %w", shared.ErrValidation)
	}
	unit, err := s.repo.Get(ctx, id)
	if err != nil {
		return Unit{}, err
	}
	unit.Name = name
	if err := s.repo.Update(ctx, unit); err != nil {
		return Unit{}, err
	}
	s.recordAudit(ctx, actor, "UNIT_RENAME", id, map[string]any{"name": name})
	return unit, nil
}

// Deactivate flags the unit inactive. Existing assignments keep pointing at
// it so history stays intact.
func (s *Service) Deactivate(ctx context.Context, actor shared.Actor, id int64) error {
	if !s.evaluator.Authorize(rbac.Role(actor.Role), rbac.ResourceUnits, rbac.ActionDelete) {
		return shared.ErrUnauthorized
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "UNIT_DEACTIVATE", id, nil)
	return nil
}

// Get returns one unit.
func (s *Service) Get(ctx context.Context, id int64) (Unit, error) {
	return s.repo.Get(ctx, id)
}

// List returns units, optionally including inactive ones.
func (s *Service) List(ctx context.Context, includeInactive bool) ([]Unit, error) {
	return s.repo.List(ctx, includeInactive)
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor.UserID, Action: action, Entity: "units", EntityID: strconv.FormatInt(id, 10), Meta: meta}); err != nil && s.logger != nil {
		s.logger.Error("record audit", slog.Any("error", err))
	}
}
