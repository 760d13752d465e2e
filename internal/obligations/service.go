package obligations

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conformia/conformia/internal/notify"
	"github.com/conformia/conformia/internal/rbac"
	"github.com/conformia/conformia/internal/shared"
	"github.com/conformia/conformia/internal/workflow"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetObligation(ctx context.Context, id uuid.UUID) (Obligation, error)
	GetAssignment(ctx context.Context, id uuid.UUID) (Assignment, error)
	ListAssignments(ctx context.Context, obligationID uuid.UUID) ([]Assignment, error)
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]Obligation, error)
	ListByNorm(ctx context.Context, normID uuid.UUID) ([]Obligation, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertObligation(ctx context.Context, o Obligation) error
	InsertAssignment(ctx context.Context, a Assignment) error
	GetObligationForUpdate(ctx context.Context, id uuid.UUID) (Obligation, error)
	GetAssignmentForUpdate(ctx context.Context, id uuid.UUID) (Assignment, error)
	UpdateAssignmentSituacao(ctx context.Context, id uuid.UUID, situacao Situacao) error
	MarkDecomposed(ctx context.Context, id uuid.UUID, aggregate AggregateSituacao) error
	UpdateAggregate(ctx context.Context, id uuid.UUID, aggregate AggregateSituacao) error
	ListChildSituacoes(ctx context.Context, parentID uuid.UUID) ([]Situacao, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns obligation decomposition, aggregation and situacao updates.
type Service struct {
	repo      RepositoryPort
	evaluator *rbac.Evaluator
	audit     AuditPort
	notifier  notify.Notifier
	logger    *slog.Logger
}

// NewService constructs the obligations service.
func NewService(repo RepositoryPort, evaluator *rbac.Evaluator, audit AuditPort, notifier notify.Notifier, logger *slog.Logger) *Service {
	return &Service{repo: repo, evaluator: evaluator, audit: audit, notifier: notifier, logger: logger}
}

// CreateInput describes a new obligation and its responsible units.
type CreateInput struct {
	NormID      uuid.UUID
	Tipo        Tipo
	Title       string
	Description string
	DueDate     time.Time
	Recurrence  string
	Priority    Priority
	UnitIDs     []int64
}

// Create registers an obligation with one assignment per responsible unit.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (Obligation, []Assignment, error) {
	if !s.evaluator.Authorize(rbac.Role(actor.Role), rbac.ResourceObligations, rbac.ActionCreate) {
		return Obligation{}, nil, shared.ErrUnauthorized
	}
	if strings.TrimSpace(input.Title) == "" {
		return Obligation{}, nil, fmt.Errorf("obligations: title required: %w", shared.ErrValidation)
	}
	if !input.Tipo.Valid() {
		return Obligation{}, nil, fmt.Errorf("obligations: tipo %q unknown: %w", input.Tipo, shared.ErrValidation)
	}
	units := dedupeUnits(input.UnitIDs)
	if len(units) == 0 {
		return Obligation{}, nil, fmt.Errorf("obligations: at least one responsible unit required: %w", shared.ErrValidation)
	}
	if input.Priority == "" {
		input.Priority = PriorityMedia
	}

	obligation := Obligation{
		ID:          uuid.New(),
		NormID:      input.NormID,
		Tipo:        input.Tipo,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		DueDate:     input.DueDate,
		Recurrence:  input.Recurrence,
		Priority:    input.Priority,
	}
	assignments := make([]Assignment, 0, len(units))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertObligation(ctx, obligation); err != nil {
			return err
		}
		for _, unitID := range units {
			a := Assignment{
				ID:           uuid.New(),
				ObligationID: obligation.ID,
				UnitID:       unitID,
				Situacao:     SituacaoAguardandoEvidencia,
			}
			if err := tx.InsertAssignment(ctx, a); err != nil {
				return err
			}
			assignments = append(assignments, a)
		}
		return nil
	})
	if err != nil {
		return Obligation{}, nil, err
	}
	s.recordAudit(ctx, actor, "OBLIGATION_CREATE", obligation.ID, map[string]any{"title": obligation.Title, "units": units})
	for _, a := range assignments {
		s.notify(ctx, a.UnitID, notify.EventObligationAssigned, map[string]any{
			"obligation_id": obligation.ID.String(),
			"assignment_id": a.ID.String(),
			"title":         obligation.Title,
			"due_date":      obligation.DueDate,
		})
	}
	return obligation, assignments, nil
}

// Decompose splits one obligation into per-unit children. The parent keeps
// its record but its displayed situacao becomes derived from the children.
func (s *Service) Decompose(ctx context.Context, actor shared.Actor, obligationID uuid.UUID, unitIDs []int64, notes string) ([]uuid.UUID, error) {
	if !s.evaluator.Authorize(rbac.Role(actor.Role), rbac.ResourceObligations, rbac.ActionUpdate) {
		return nil, shared.ErrUnauthorized
	}
	units := dedupeUnits(unitIDs)
	if len(units) == 0 {
		return nil, fmt.Errorf("obligations: decomposition requires at least one unit: %w", shared.ErrValidation)
	}

	childIDs := make([]uuid.UUID, 0, len(units))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		parent, err := tx.GetObligationForUpdate(ctx, obligationID)
		if err != nil {
			return err
		}
		if parent.IsChild() {
			return fmt.Errorf("obligations: nested decomposition not allowed: %w", shared.ErrValidation)
		}
		if parent.Decomposed {
			return fmt.Errorf("obligations: obligation already decomposed: %w", shared.ErrValidation)
		}
		for _, unitID := range units {
			child := Obligation{
				ID:          uuid.New(),
				NormID:      parent.NormID,
				ParentID:    parent.ID,
				Tipo:        parent.Tipo,
				Title:       parent.Title,
				Description: parent.Description,
				DueDate:     parent.DueDate,
				Recurrence:  parent.Recurrence,
				Priority:    parent.Priority,
			}
			if err := tx.InsertObligation(ctx, child); err != nil {
				return err
			}
			if err := tx.InsertAssignment(ctx, Assignment{
				ID:           uuid.New(),
				ObligationID: child.ID,
				UnitID:       unitID,
				Situacao:     SituacaoAguardandoEvidencia,
			}); err != nil {
				return err
			}
			childIDs = append(childIDs, child.ID)
		}
		return tx.MarkDecomposed(ctx, parent.ID, AggregateEmAndamento)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "OBLIGATION_DECOMPOSE", obligationID, map[string]any{"units": units, "children": len(childIDs), "notes": notes})
	for _, unitID := range units {
		s.notify(ctx, unitID, notify.EventObligationAssigned, map[string]any{
			"obligation_id": obligationID.String(),
			"decomposed":    true,
		})
	}
	return childIDs, nil
}

// AggregateParent recomputes and persists the parent's derived situacao from
// its children. Serialized per parent by the row lock taken on the parent.
func (s *Service) AggregateParent(ctx context.Context, parentID uuid.UUID) (AggregateSituacao, error) {
	var aggregate AggregateSituacao
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		parent, err := tx.GetObligationForUpdate(ctx, parentID)
		if err != nil {
			return err
		}
		if !parent.Decomposed {
			return fmt.Errorf("obligations: obligation is not decomposed: %w", shared.ErrInvalidState)
		}
		children, err := tx.ListChildSituacoes(ctx, parentID)
		if err != nil {
			return err
		}
		aggregate = AggregateChildren(children)
		if aggregate == parent.Aggregate {
			return nil
		}
		return tx.UpdateAggregate(ctx, parentID, aggregate)
	})
	if err != nil {
		return "", err
	}
	return aggregate, nil
}

// RecomputeAssignment maps a workflow status onto the owning assignment's
// situacao and persists it, then refreshes the parent aggregate when the
// assignment belongs to a decomposition child. Invoked by the evidence and
// action-plan services on every transition.
func (s *Service) RecomputeAssignment(ctx context.Context, assignmentID uuid.UUID, status workflow.Status, final workflow.FinalOutcome) (Situacao, error) {
	situacao := ResolveSituacao(status, final)
	var parentID uuid.UUID
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		assignment, err := tx.GetAssignmentForUpdate(ctx, assignmentID)
		if err != nil {
			return err
		}
		if assignment.Situacao != situacao {
			if err := tx.UpdateAssignmentSituacao(ctx, assignmentID, situacao); err != nil {
				return err
			}
		}
		obligation, err := tx.GetObligationForUpdate(ctx, assignment.ObligationID)
		if err != nil {
			return err
		}
		if !obligation.IsChild() {
			return nil
		}
		parentID = obligation.ParentID
		children, err := tx.ListChildSituacoes(ctx, parentID)
		if err != nil {
			return err
		}
		// The lock order parent-after-child matches every other caller, so
		// concurrent sibling transitions queue on the parent row.
		parent, err := tx.GetObligationForUpdate(ctx, parentID)
		if err != nil {
			return err
		}
		aggregate := AggregateChildren(children)
		if aggregate == parent.Aggregate {
			return nil
		}
		return tx.UpdateAggregate(ctx, parentID, aggregate)
	})
	if err != nil {
		return "", err
	}
	return situacao, nil
}

// Get returns one obligation.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Obligation, error) {
	return s.repo.GetObligation(ctx, id)
}

// GetAssignment returns one obligation/unit assignment.
func (s *Service) GetAssignment(ctx context.Context, id uuid.UUID) (Assignment, error) {
	return s.repo.GetAssignment(ctx, id)
}

// ListAssignments returns every assignment of an obligation.
func (s *Service) ListAssignments(ctx context.Context, obligationID uuid.UUID) ([]Assignment, error) {
	return s.repo.ListAssignments(ctx, obligationID)
}

// ListChildren returns the decomposition children of a parent.
func (s *Service) ListChildren(ctx context.Context, parentID uuid.UUID) ([]Obligation, error) {
	return s.repo.ListChildren(ctx, parentID)
}

// ListByNorm returns the obligations registered under one norm.
func (s *Service) ListByNorm(ctx context.Context, normID uuid.UUID) ([]Obligation, error) {
	return s.repo.ListByNorm(ctx, normID)
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, entityID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor.UserID, Action: action, Entity: "obligations", EntityID: entityID.String(), Meta: meta}); err != nil && s.logger != nil {
		s.logger.Error("record audit", slog.Any("error", err))
	}
}

func (s *Service) notify(ctx context.Context, unitID int64, eventKind string, payload map[string]any) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, unitID, eventKind, payload)
}

func dedupeUnits(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	units := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		units = append(units, id)
	}
	return units
}
