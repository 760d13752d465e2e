package norms

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conformia/conformia/internal/obligations"
	"github.com/conformia/conformia/internal/rbac"
	"github.com/conformia/conformia/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Insert(ctx context.Context, norm Norm) error
	Get(ctx context.Context, id uuid.UUID) (Norm, error)
	List(ctx context.Context, limit, offset int) ([]Norm, int, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// ObligationsPort is implemented by the obligations service.
type ObligationsPort interface {
	Create(ctx context.Context, actor shared.Actor, input obligations.CreateInput) (obligations.Obligation, []obligations.Assignment, error)
	ListByNorm(ctx context.Context, normID uuid.UUID) ([]obligations.Obligation, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns norm registration.
type Service struct {
	repo        RepositoryPort
	obligations ObligationsPort
	evaluator   *rbac.Evaluator
	audit       AuditPort
	logger      *slog.Logger
}

// NewService constructs the norms service.
func NewService(repo RepositoryPort, obl ObligationsPort, evaluator *rbac.Evaluator, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, obligations: obl, evaluator: evaluator, audit: audit, logger: logger}
}

// CreateInput describes a new norm.
type CreateInput struct {
	Code        string
	Kind        Kind
	Title       string
	Description string
	PublishedAt time.Time
}

// Create registers a norm.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (Norm, error) {
	if !s.evaluator.Authorize(rbac.Role(actor.Role), rbac.ResourceNorms, rbac.ActionCreate) {
		return Norm{}, shared.ErrUnauthorized
	}
	if strings.TrimSpace(input.Code) == "" || strings.TrimSpace(input.Title) == "" {
		return Norm{}, fmt.Errorf("norms: code and title required: %w", shared.ErrValidation)
	}
	if !input.Kind.Valid() {
		return Norm{}, fmt.Errorf("norms: kind %q unknown: %w", input.Kind, shared.ErrValidation)
	}
	norm := Norm{
		ID:          uuid.New(),
		Code:        strings.TrimSpace(input.Code),
		Kind:        input.Kind,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		PublishedAt: input.PublishedAt,
		IsActive:    true,
	}
	if err := s.repo.Insert(ctx, norm); err != nil {
		return Norm{}, err
	}
	s.recordAudit(ctx, actor, "NORM_CREATE", norm.ID, map[string]any{"code": norm.Code})
	return norm, nil
}

// ObligationInput carries one obligation registered under a norm.
type ObligationInput struct {
	Tipo        obligations.Tipo
	Title       string
	Description string
	DueDate     time.Time
	Recurrence  string
	Priority    obligations.Priority
	UnitIDs     []int64
}

// RegisterObligations creates the norm's obligations with one assignment per
// responsible unit.
func (s *Service) RegisterObligations(ctx context.Context, actor shared.Actor, normID uuid.UUID, inputs []ObligationInput) ([]obligations.Obligation, error) {
	if !s.evaluator.Authorize(rbac.Role(actor.Role), rbac.ResourceNorms, rbac.ActionUpdate) {
		return nil, shared.ErrUnauthorized
	}
	norm, err := s.repo.Get(ctx, normID)
	if err != nil {
		return nil, err
	}
	if !norm.IsActive {
		return nil, fmt.Errorf("norms: norm %s inactive: %w", norm.Code, shared.ErrInvalidState)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("norms: at least one obligation required: %w", shared.ErrValidation)
	}
	created := make([]obligations.Obligation, 0, len(inputs))
	for _, input := range inputs {
		obligation, _, err := s.obligations.Create(ctx, actor, obligations.CreateInput{
			NormID:      normID,
			Tipo:        input.Tipo,
			Title:       input.Title,
			Description: input.Description,
			DueDate:     input.DueDate,
			Recurrence:  input.Recurrence,
			Priority:    input.Priority,
			UnitIDs:     input.UnitIDs,
		})
		if err != nil {
			return created, err
		}
		created = append(created, obligation)
	}
	s.recordAudit(ctx, actor, "NORM_REGISTER_OBLIGATIONS", normID, map[string]any{"count": len(created)})
	return created, nil
}

// Get returns one norm.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Norm, error) {
	return s.repo.Get(ctx, id)
}

// List returns norms with total count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Norm, int, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, limit, offset)
}

// Deactivate retires a norm; its obligations stay for the record.
func (s *Service) Deactivate(ctx context.Context, actor shared.Actor, id uuid.UUID) error {
	if !s.evaluator.Authorize(rbac.Role(actor.Role), rbac.ResourceNorms, rbac.ActionDelete) {
		return shared.ErrUnauthorized
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "NORM_DEACTIVATE", id, nil)
	return nil
}

// Obligations lists the root obligations of one norm.
func (s *Service) Obligations(ctx context.Context, normID uuid.UUID) ([]obligations.Obligation, error) {
	return s.obligations.ListByNorm(ctx, normID)
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, entityID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor.UserID, Action: action, Entity: "norms", EntityID: entityID.String(), Meta: meta}); err != nil && s.logger != nil {
		s.logger.Error("record audit", slog.Any("error", err))
	}
}
