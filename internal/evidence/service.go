package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/conformia/conformia/internal/notify"
	"github.com/conformia/conformia/internal/obligations"
	"github.com/conformia/conformia/internal/rbac"
	"github.com/conformia/conformia/internal/shared"
	"github.com/conformia/conformia/internal/workflow"
)

// HistoryModule identifies evidence rows in workflow_history.
const HistoryModule = "EVIDENCIA"

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetEvidence(ctx context.Context, id uuid.UUID) (Evidence, error)
	ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]Evidence, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertEvidence(ctx context.Context, ev Evidence) error
	GetEvidenceForUpdate(ctx context.Context, id uuid.UUID) (Evidence, error)
	UpdateEvidenceStatus(ctx context.Context, id uuid.UUID, status workflow.Status, final workflow.FinalOutcome) error
	UpdateEvidenceContent(ctx context.Context, id uuid.UUID, tipo Tipo, content string) error
}

// AssignmentsPort is implemented by the obligations service.
type AssignmentsPort interface {
	GetAssignment(ctx context.Context, id uuid.UUID) (obligations.Assignment, error)
	RecomputeAssignment(ctx context.Context, assignmentID uuid.UUID, status workflow.Status, final workflow.FinalOutcome) (obligations.Situacao, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// HistoryPort records per-entity workflow history.
type HistoryPort interface {
	Record(ctx context.Context, entry shared.HistoryEntry) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.HistoryEntry, error)
}

// TransitionObserver counts applied transitions for metrics.
type TransitionObserver interface {
	ObserveTransition(module, action string)
}

// Service orchestrates the evidence approval workflow.
type Service struct {
	repo        RepositoryPort
	assignments AssignmentsPort
	evaluator   *rbac.Evaluator
	history     HistoryPort
	audit       AuditPort
	notifier    notify.Notifier
	observer    TransitionObserver
	logger      *slog.Logger
}

// NewService constructs the evidence service.
func NewService(repo RepositoryPort, assignments AssignmentsPort, evaluator *rbac.Evaluator, history HistoryPort, audit AuditPort, notifier notify.Notifier, observer TransitionObserver, logger *slog.Logger) *Service {
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

// CreateInput describes a new draft evidence item.
type CreateInput struct {
	AssignmentID uuid.UUID
	Tipo         Tipo
	Content      string
}

// Create registers a draft evidence item for the actor's unit.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (Evidence, error) {
	if !s.evaluator.Authorize(rbac.Role(actor.Role), rbac.ResourceObligations, rbac.ActionCreate) {
		return Evidence{}, shared.ErrUnauthorized
	}
	if !input.Tipo.Valid() {
		return Evidence{}, fmt.Errorf("evidence: tipo %q unknown: %w", input.Tipo, shared.ErrValidation)
	}
	if strings.TrimSpace(input.Content) == "" {
		return Evidence{}, fmt.Errorf("evidence: content required: %w", shared.ErrValidation)
	}
	assignment, err := s.assignments.GetAssignment(ctx, input.AssignmentID)
	if err != nil {
		return Evidence{}, err
	}
	if err := s.requireUnit(actor, assignment.UnitID); err != nil {
		return Evidence{}, err
	}
	ev := Evidence{
		ID:           uuid.New(),
		AssignmentID: assignment.ID,
		UnitID:       assignment.UnitID,
		Tipo:         input.Tipo,
		Content:      strings.TrimSpace(input.Content),
		Status:       workflow.StatusRascunho,
		CreatedBy:    actor.UserID,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertEvidence(ctx, ev)
	})
	if err != nil {
		return Evidence{}, err
	}
	s.recordAudit(ctx, actor, "EVIDENCE_CREATE", ev.ID, map[string]any{"assignment_id": ev.AssignmentID.String(), "tipo": ev.Tipo})
	return ev, nil
}

// Revise replaces the content of a draft or revision-requested item. The
// record stays in its current state until the unit resubmits it.
func (s *Service) Revise(ctx context.Context, actor shared.Actor, evidenceID uuid.UUID, tipo Tipo, content string) (Evidence, error) {
	if !s.evaluator.Authorize(rbac.Role(actor.Role), rbac.ResourceObligations, rbac.ActionUpdate) {
		return Evidence{}, shared.ErrUnauthorized
	}
	if !tipo.Valid() {
		return Evidence{}, fmt.Errorf("evidence: tipo %q unknown: %w", tipo, shared.ErrValidation)
	}
	if strings.TrimSpace(content) == "" {
		return Evidence{}, fmt.Errorf("evidence: content required: %w", shared.ErrValidation)
	}
	var updated Evidence
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ev, err := tx.GetEvidenceForUpdate(ctx, evidenceID)
		if err != nil {
			return err
		}
		if err := s.requireUnit(actor, ev.UnitID); err != nil {
			return err
		}
		switch ev.Status {
		case workflow.StatusRascunho, workflow.StatusRevisaoSolicitadaGestor, workflow.StatusRevisaoSolicitadaACR:
		default:
			return fmt.Errorf("evidence: edit from %s: %w", ev.Status, shared.ErrInvalidState)
		}
		if err := tx.UpdateEvidenceContent(ctx, evidenceID, tipo, strings.TrimSpace(content)); err != nil {
			return err
		}
		ev.Tipo = tipo
		ev.Content = strings.TrimSpace(content)
		updated = ev
		return nil
	})
	if err != nil {
		return Evidence{}, err
	}
	return updated, nil
}

// Submit moves the evidence into the review gate it came from. Only members
// of the owning unit may submit.
func (s *Service) Submit(ctx context.Context, actor shared.Actor, evidenceID uuid.UUID) (workflow.Status, error) {
	if !s.evaluator.Authorize(rbac.Role(actor.Role), rbac.ResourceObligations, rbac.ActionUpdate) {
		return "", shared.ErrUnauthorized
	}
	outcome, err := s.applyTransition(ctx, evidenceID, workflow.Decision{}, func(ev Evidence) error {
		return s.requireUnit(actor, ev.UnitID)
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
		s.recordHistory(ctx, evidenceID, actor, gate, shared.HistorySubmit, "")
		s.recordAudit(ctx, actor, "EVIDENCE_SUBMIT", evidenceID, map[string]any{"status": outcome.status})
		s.notify(ctx, outcome.unitID, notify.EventEvidenceSubmitted, map[string]any{
			"evidence_id": evidenceID.String(),
			"status":      string(outcome.status),
		})
		s.observe("submit")
	}
	return outcome.status, nil
}

// DecideGestor applies the unit manager verdict. Requires the approve
// permission, the GESTOR role and membership in the owning unit.
func (s *Service) DecideGestor(ctx context.Context, actor shared.Actor, evidenceID uuid.UUID, approved bool, notes string) (workflow.Status, error) {
	if err := s.requireApprover(actor, rbac.RoleGestor); err != nil {
		return "", err
	}
	decision := workflow.Decision{Approved: approved, Notes: notes}
	outcome, err := s.applyTransition(ctx, evidenceID, decision, func(ev Evidence) error {
		return s.requireUnit(actor, ev.UnitID)
	}, workflow.DecideGestor)
	if err != nil {
		return "", err
	}
	if outcome.applied {
		action := shared.HistoryApprove
		event := notify.EventEvidenceDecided
		if !approved {
			action = shared.HistoryRevise
			event = notify.EventRevisionRequested
		}
		s.recordHistory(ctx, evidenceID, actor, workflow.GateGestor, action, notes)
		s.recordAudit(ctx, actor, "EVIDENCE_DECIDE_GESTOR", evidenceID, map[string]any{"approved": approved, "status": outcome.status})
		s.notify(ctx, outcome.unitID, event, map[string]any{
			"evidence_id": evidenceID.String(),
			"gate":        workflow.GateGestor,
			"approved":    approved,
			"status":      string(outcome.status),
		})
		s.observe("decide_gestor")
	}
	return outcome.status, nil
}

// DecideACR applies the compliance office verdict. An approval carries the
// final situacao, which is propagated to the owning assignment and, for
// decomposition children, rolled up into the parent.
func (s *Service) DecideACR(ctx context.Context, actor shared.Actor, evidenceID uuid.UUID, approved bool, notes string, final workflow.FinalOutcome) (workflow.Status, error) {
	if err := s.requireApprover(actor, rbac.RoleACR); err != nil {
		return "", err
	}
	decision := workflow.Decision{Approved: approved, Notes: notes, Final: final}
	outcome, err := s.applyTransition(ctx, evidenceID, decision, nil, workflow.DecideACR)
	if err != nil {
		return "", err
	}
	if outcome.applied {
		action := shared.HistoryApprove
		event := notify.EventEvidenceDecided
		if !approved {
			action = shared.HistoryRevise
			event = notify.EventRevisionRequested
		}
		s.recordHistory(ctx, evidenceID, actor, workflow.GateACR, action, notes)
		s.recordAudit(ctx, actor, "EVIDENCE_DECIDE_ACR", evidenceID, map[string]any{"approved": approved, "status": outcome.status, "situacao_final": final})
		s.notify(ctx, outcome.unitID, event, map[string]any{
			"evidence_id":    evidenceID.String(),
			"gate":           workflow.GateACR,
			"approved":       approved,
			"status":         string(outcome.status),
			"situacao_final": string(final),
		})
		s.observe("decide_acr")
	}
	return outcome.status, nil
}

// Reject terminally refuses evidence under analysis. Managers reject at
// their own gate, the compliance office at either.
func (s *Service) Reject(ctx context.Context, actor shared.Actor, evidenceID uuid.UUID, notes string) (workflow.Status, error) {
	role := rbac.Role(actor.Role)
	if role != rbac.RoleGestor && role != rbac.RoleACR {
		return "", shared.ErrUnauthorized
	}
	if !s.evaluator.Authorize(role, rbac.ResourceObligations, rbac.ActionApprove) {
		return "", shared.ErrUnauthorized
	}
	outcome, err := s.applyTransition(ctx, evidenceID, workflow.Decision{Notes: notes}, func(ev Evidence) error {
		if role == rbac.RoleGestor {
			if ev.Status.AwaitsACR() {
				return fmt.Errorf("evidence: manager cannot reject at acr gate: %w", shared.ErrInvalidState)
			}
			return s.requireUnit(actor, ev.UnitID)
		}
		return nil
	}, func(current workflow.Status, d workflow.Decision) (workflow.Result, error) {
		return workflow.Reject(current, d.Notes)
	})
	if err != nil {
		return "", err
	}
	if outcome.applied {
		gate := workflow.GateGestor
		if role == rbac.RoleACR {
			gate = workflow.GateACR
		}
		s.recordHistory(ctx, evidenceID, actor, gate, shared.HistoryReject, notes)
		s.recordAudit(ctx, actor, "EVIDENCE_REJECT", evidenceID, map[string]any{"status": outcome.status})
		s.notify(ctx, outcome.unitID, notify.EventEvidenceDecided, map[string]any{
			"evidence_id": evidenceID.String(),
			"status":      string(outcome.status),
		})
		s.observe("reject")
	}
	return outcome.status, nil
}

// Get returns one evidence item.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Evidence, error) {
	return s.repo.GetEvidence(ctx, id)
}

// ListByAssignment returns the evidence attached to one assignment.
func (s *Service) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]Evidence, error) {
	return s.repo.ListByAssignment(ctx, assignmentID)
}

// History returns the workflow history of one evidence item.
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

// applyTransition serialises the transition on the evidence row: the record
// is re-read under a row lock so a racing decision observes the post-commit
// state instead of corrupting it.
func (s *Service) applyTransition(ctx context.Context, evidenceID uuid.UUID, decision workflow.Decision, guard func(Evidence) error, apply func(workflow.Status, workflow.Decision) (workflow.Result, error)) (transitionOutcome, error) {
	var outcome transitionOutcome
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ev, err := tx.GetEvidenceForUpdate(ctx, evidenceID)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(ev); err != nil {
				return err
			}
		}
		result, err := apply(ev.Status, decision)
		if err != nil {
			return err
		}
		outcome = transitionOutcome{status: result.Status, unitID: ev.UnitID, applied: result.Applied}
		if !result.Applied {
			return nil
		}
		final := ev.Final
		if result.Status == workflow.StatusAprovadoACR && decision.Final.Valid() {
			final = decision.Final
		}
		if err := tx.UpdateEvidenceStatus(ctx, evidenceID, result.Status, final); err != nil {
			return err
		}
		if _, err := s.assignments.RecomputeAssignment(ctx, ev.AssignmentID, result.Status, final); err != nil {
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

func (s *Service) recordHistory(ctx context.Context, evidenceID uuid.UUID, actor shared.Actor, gate string, action shared.HistoryAction, note string) {
	if s.history == nil {
		return
	}
	err := s.history.Record(ctx, shared.HistoryEntry{
		Module:  HistoryModule,
		RefID:   evidenceID,
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
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor.UserID, Action: action, Entity: "evidence", EntityID: entityID.String(), Meta: meta}); err != nil && s.logger != nil {
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
