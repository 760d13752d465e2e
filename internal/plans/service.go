package plans

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/conformia/conformia/internal/evidence"
	"github.com/conformia/conformia/internal/notify"
	"github.com/conformia/conformia/internal/rbac"
	"github.com/conformia/conformia/internal/shared"
	"github.com/conformia/conformia/internal/workflow"
)

// HistoryModule identifies action-plan rows in workflow_history.
const HistoryModule = "PLANO_ACAO"

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPlan(ctx context.Context, id uuid.UUID) (Plan, error)
	ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]Plan, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertPlan(ctx context.Context, plan Plan) error
	GetPlanForUpdate(ctx context.Context, id uuid.UUID) (Plan, error)
	UpdatePlanStatus(ctx context.Context, id uuid.UUID, status workflow.Status, final workflow.FinalOutcome) error
}

// Service orchestrates the action-plan approval workflow. It shares the
// assignment sync, history, audit and notification ports with the evidence
// service and differs only in the record shape.
type Service struct {
	repo        RepositoryPort
	assignments evidence.AssignmentsPort
	evaluator   *rbac.Evaluator
	history     evidence.HistoryPort
	audit       evidence.AuditPort
	notifier    notify.Notifier
	observer    evidence.TransitionObserver
	logger      *slog.Logger
}

// NewService constructs the action-plan service.
func NewService(repo RepositoryPort, assignments evidence.AssignmentsPort, evaluator *rbac.Evaluator, history evidence.HistoryPort, audit evidence.AuditPort, notifier notify.Notifier, observer evidence.TransitionObserver, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		assignments: assignments,
		evaluator:   evaluator,
		history:     history,
		audit:       audit,
		notifier:    notifier,
		observer:    observer,
		logger:      logger,
	}
}

// Create registers a draft plan for the actor's unit. The caller fills the
// 5W2H fields on the Plan; id, unit, status and authorship are assigned here.
func (s *Service) Create(ctx context.Context, actor shared.Actor, plan Plan) (Plan, error) {
	if !s.evaluator.Authorize(rbac.Role(actor.Role), rbac.ResourceObligations, rbac.ActionCreate) {
		return Plan{}, shared.ErrUnauthorized
	}
	if strings.TrimSpace(plan.What) == "" || strings.TrimSpace(plan.Who) == "" {
		return Plan{}, fmt.Errorf("plans: what and who are required: %w", shared.ErrValidation)
	}
	assignment, err := s.assignments.GetAssignment(ctx, plan.AssignmentID)
	if err != nil {
		return Plan{}, err
	}
	if err := s.requireUnit(actor, assignment.UnitID); err != nil {
		return Plan{}, err
	}
	plan.ID = uuid.New()
	plan.UnitID = assignment.UnitID
	plan.Status = workflow.StatusRascunho
	plan.Final = ""
	plan.CreatedBy = actor.UserID
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertPlan(ctx, plan)
	})
	if err != nil {
		return Plan{}, err
	}
	s.recordAudit(ctx, actor, "PLAN_CREATE", plan.ID, map[string]any{"assignment_id": plan.AssignmentID.String()})
	return plan, nil
}

// Submit moves the plan into the review gate it came from.
func (s *Service) Submit(ctx context.Context, actor shared.Actor, planID uuid.UUID) (workflow.Status, error) {
	if !s.evaluator.Authorize(rbac.Role(actor.Role), rbac.ResourceObligations, rbac.ActionUpdate) {
		return "", shared.ErrUnauthorized
	}
	outcome, err := s.applyTransition(ctx, planID, workflow.Decision{}, func(p Plan) error {
		return s.requireUnit(actor, p.UnitID)
	}, func(current workflow.Status, _ workflow.Decision) (workflow.Result, error) {
		return workflow.Submit(current)
	})
	if err != nil {
		return "", err
	}
	if outcome.applied {
		gate := workflow.GateGestor
		if outcome.status == workflow.StatusEmAnaliseACR {
			gate = workflow.GateACR
		}
		s.recordHistory(ctx, planID, actor, gate, shared.HistorySubmit, "")
		s.recordAudit(ctx, actor, "PLAN_SUBMIT", planID, map[string]any{"status": outcome.status})
		s.notify(ctx, outcome.unitID, notify.EventPlanSubmitted, map[string]any{"plan_id": planID.String(), "status": string(outcome.status)})
		s.observe("submit")
	}
	return outcome.status, nil
}

// DecideGestor applies the unit manager verdict on a plan.
func (s *Service) DecideGestor(ctx context.Context, actor shared.Actor, planID uuid.UUID, approved bool, notes string) (workflow.Status, error) {
	if err := s.requireApprover(actor, rbac.RoleGestor); err != nil {
		return "", err
	}
	outcome, err := s.applyTransition(ctx, planID, workflow.Decision{Approved: approved, Notes: notes}, func(p Plan) error {
		return s.requireUnit(actor, p.UnitID)
	}, workflow.DecideGestor)
	if err != nil {
		return "", err
	}
	if outcome.applied {
		action := shared.HistoryApprove
		event := notify.EventPlanDecided
		if !approved {
			action = shared.HistoryRevise
			event = notify.EventRevisionRequested
		}
		s.recordHistory(ctx, planID, actor, workflow.GateGestor, action, notes)
		s.recordAudit(ctx, actor, "PLAN_DECIDE_GESTOR", planID, map[string]any{"approved": approved, "status": outcome.status})
		s.notify(ctx, outcome.unitID, event, map[string]any{"plan_id": planID.String(), "gate": workflow.GateGestor, "approved": approved})
		s.observe("decide_gestor")
	}
	return outcome.status, nil
}

// DecideACR applies the compliance office verdict on a plan.
func (s *Service) DecideACR(ctx context.Context, actor shared.Actor, planID uuid.UUID, approved bool, notes string, final workflow.FinalOutcome) (workflow.Status, error) {
	if err := s.requireApprover(actor, rbac.RoleACR); err != nil {
		return "", err
	}
	outcome, err := s.applyTransition(ctx, planID, workflow.Decision{Approved: approved, Notes: notes, Final: final}, nil, workflow.DecideACR)
	if err != nil {
		return "", err
	}
	if outcome.applied {
		action := shared.HistoryApprove
		event := notify.EventPlanDecided
		if !approved {
			action = shared.HistoryRevise
			event = notify.EventRevisionRequested
		}
		s.recordHistory(ctx, planID, actor, workflow.GateACR, action, notes)
		s.recordAudit(ctx, actor, "PLAN_DECIDE_ACR", planID, map[string]any{"approved": approved, "status": outcome.status, "situacao_final": final})
		s.notify(ctx, outcome.unitID, event, map[string]any{"plan_id": planID.String(), "gate": workflow.GateACR, "approved": approved, "situacao_final": string(final)})
		s.observe("decide_acr")
	}
	return outcome.status, nil
}

// Get returns one plan.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Plan, error) {
	return s.repo.GetPlan(ctx, id)
}

// ListByAssignment returns the plans attached to one assignment.
func (s *Service) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]Plan, error) {
	return s.repo.ListByAssignment(ctx, assignmentID)
}

// History returns the workflow history of one plan.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]shared.HistoryEntry, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.List(ctx, HistoryModule, id)
}

type transitionOutcome struct {
	status  workflow.Status
	unitID  int64
	applied bool
}

func (s *Service) applyTransition(ctx context.Context, planID uuid.UUID, decision workflow.Decision, guard func(Plan) error, apply func(workflow.Status, workflow.Decision) (workflow.Result, error)) (transitionOutcome, error) {
	var outcome transitionOutcome
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		plan, err := tx.GetPlanForUpdate(ctx, planID)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(plan); err != nil {
				return err
			}
		}
		result, err := apply(plan.Status, decision)
		if err != nil {
			return err
		}
		outcome = transitionOutcome{status: result.Status, unitID: plan.UnitID, applied: result.Applied}
		if !result.Applied {
			return nil
		}
		final := plan.Final
		if result.Status == workflow.StatusAprovadoACR && decision.Final.Valid() {
			final = decision.Final
		}
		if err := tx.UpdatePlanStatus(ctx, planID, result.Status, final); err != nil {
			return err
		}
		if _, err := s.assignments.RecomputeAssignment(ctx, plan.AssignmentID, result.Status, final); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return transitionOutcome{}, err
	}
	return outcome, nil
}

func (s *Service) requireApprover(actor shared.Actor, role rbac.Role) error {
	if rbac.Role(actor.Role) != role {
		return shared.ErrUnauthorized
	}
	if !s.evaluator.Authorize(role, rbac.ResourceObligations, rbac.ActionApprove) {
		return shared.ErrUnauthorized
	}
	return nil
}

func (s *Service) requireUnit(actor shared.Actor, unitID int64) error {
	if rbac.Role(actor.Role) == rbac.RoleACR {
		return nil
	}
	if actor.UnitID != unitID {
		return shared.ErrUnauthorized
	}
	return nil
}

func (s *Service) recordHistory(ctx context.Context, planID uuid.UUID, actor shared.Actor, gate string, action shared.HistoryAction, note string) {
	if s.history == nil {
		return
	}
	err := s.history.Record(ctx, shared.HistoryEntry{
		Module:  HistoryModule,
		RefID:   planID,
		ActorID: actor.UserID,
		Gate:    gate,
		Action:  action,
		Note:    note,
	})
	if err != nil && s.logger != nil {
		s.logger.Error("record history", slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, entityID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor.UserID, Action: action, Entity: "plans", EntityID: entityID.String(), Meta: meta}); err != nil && s.logger != nil {
		s.logger.Error("record audit", slog.Any("error", err))
	}
}

func (s *Service) notify(ctx context.Context, unitID int64, eventKind string, payload map[string]any) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, unitID, eventKind, payload)
}

func (s *Service) observe(action string) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveTransition(HistoryModule, action)
}
