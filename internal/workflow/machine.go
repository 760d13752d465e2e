// Package workflow implements the two-gate approval state machine shared by
// evidence and action-plan records. The machine is pure: it computes the next
// status for a transition and leaves persistence, authorization and side
// effects to the calling service.
package workflow

import (
	"fmt"
	"strings"

	"github.com/conformia/conformia/internal/shared"
)

// Status enumerates approval statuses for evidence and action plans.
type Status string

const (
	// StatusRascunho is the initial draft state.
	StatusRascunho Status = "RASCUNHO"
	// StatusEmAnaliseGestor means the record awaits the unit manager gate.
	StatusEmAnaliseGestor Status = "EM_ANALISE_GESTOR"
	// StatusRevisaoSolicitadaGestor means the manager requested changes.
	StatusRevisaoSolicitadaGestor Status = "REVISAO_SOLICITADA_GESTOR"
	// StatusEmAnaliseACR means the record awaits the compliance office gate.
	StatusEmAnaliseACR Status = "EM_ANALISE_ACR"
	// StatusAprovadoACR is the terminal success state.
	StatusAprovadoACR Status = "APROVADO_ACR"
	// StatusRevisaoSolicitadaACR means the compliance office requested changes.
	StatusRevisaoSolicitadaACR Status = "REVISAO_SOLICITADA_ACR"
	// StatusRejeitado is the terminal failure state.
	StatusRejeitado Status = "REJEITADO"
)

// FinalOutcome is the compliance verdict an ACR approval must carry.
type FinalOutcome string

const (
	// OutcomeAtendeIntegralmente marks full compliance.
	OutcomeAtendeIntegralmente FinalOutcome = "ATENDE_INTEGRALMENTE"
	// OutcomeAtendeParcialmente marks partial compliance.
	OutcomeAtendeParcialmente FinalOutcome = "ATENDE_PARCIALMENTE"
	// OutcomeNaoSeAplica marks the obligation as not applicable to the unit.
	OutcomeNaoSeAplica FinalOutcome = "NAO_SE_APLICA"
)

// Valid reports whether the outcome is one of the accepted verdicts.
func (o FinalOutcome) Valid() bool {
	switch o {
	case OutcomeAtendeIntegralmente, OutcomeAtendeParcialmente, OutcomeNaoSeAplica:
		return true
	}
	return false
}

// Gate names used in workflow history entries.
const (
	GateGestor = "gestor"
	GateACR    = "acr"
)

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusAprovadoACR || s == StatusRejeitado
}

// AwaitsGestor reports whether the manager gate holds the record.
func (s Status) AwaitsGestor() bool {
	return s == StatusEmAnaliseGestor
}

// AwaitsACR reports whether the compliance office gate holds the record.
func (s Status) AwaitsACR() bool {
	return s == StatusEmAnaliseACR
}

// Decision carries one reviewer verdict through a gate.
type Decision struct {
	Approved bool
	Notes    string
	Final    FinalOutcome
}

// Result describes the outcome of applying a transition.
type Result struct {
	Status Status
	// Applied is false when the transition was a duplicate of one already
	// observed, in which case Status echoes the current state.
	Applied bool
}

// Submit moves a draft or revision-requested record back into the gate it
// came from.
func Submit(current Status) (Result, error) {
	switch current {
	case StatusRascunho, StatusRevisaoSolicitadaGestor:
		return Result{Status: StatusEmAnaliseGestor, Applied: true}, nil
	case StatusRevisaoSolicitadaACR:
		return Result{Status: StatusEmAnaliseACR, Applied: true}, nil
	case StatusEmAnaliseGestor, StatusEmAnaliseACR:
		// Duplicate submission: tolerate and report the resting state.
		return Result{Status: current}, nil
	default:
		return Result{}, invalidState("submit", current)
	}
}

// DecideGestor applies the unit manager verdict. An approval chains straight
// into the ACR queue; a refusal requires notes and parks the record in
// revision.
func DecideGestor(current Status, decision Decision) (Result, error) {
	if current != StatusEmAnaliseGestor {
		if duplicateDecision(current, decision, StatusEmAnaliseACR, StatusRevisaoSolicitadaGestor) {
			return Result{Status: current}, nil
		}
		return Result{}, invalidState("manager decision", current)
	}
	if !decision.Approved {
		if blank(decision.Notes) {
			return Result{}, fmt.Errorf("workflow: notes required to request revision: %w", shared.ErrValidation)
		}
		return Result{Status: StatusRevisaoSolicitadaGestor, Applied: true}, nil
	}
	return Result{Status: StatusEmAnaliseACR, Applied: true}, nil
}

// DecideACR applies the compliance office verdict. Approval demands a final
// outcome; refusal demands notes.
func DecideACR(current Status, decision Decision) (Result, error) {
	if decision.Approved && !decision.Final.Valid() {
		return Result{}, fmt.Errorf("workflow: situação final deve ser informada ao aprovar: %w", shared.ErrValidation)
	}
	if current != StatusEmAnaliseACR {
		if duplicateDecision(current, decision, StatusAprovadoACR, StatusRevisaoSolicitadaACR) {
			return Result{Status: current}, nil
		}
		return Result{}, invalidState("acr decision", current)
	}
	if !decision.Approved {
		if blank(decision.Notes) {
			return Result{}, fmt.Errorf("workflow: notes required to request revision: %w", shared.ErrValidation)
		}
		return Result{Status: StatusRevisaoSolicitadaACR, Applied: true}, nil
	}
	return Result{Status: StatusAprovadoACR, Applied: true}, nil
}

// Reject moves a record under analysis into the terminal failure state.
// Notes are mandatory so the unit learns why.
func Reject(current Status, notes string) (Result, error) {
	if blank(notes) {
		return Result{}, fmt.Errorf("workflow: notes required to reject: %w", shared.ErrValidation)
	}
	switch current {
	case StatusEmAnaliseGestor, StatusEmAnaliseACR:
		return Result{Status: StatusRejeitado, Applied: true}, nil
	case StatusRejeitado:
		return Result{Status: current}, nil
	default:
		return Result{}, invalidState("reject", current)
	}
}

// duplicateDecision reports whether the entity already rests in the state the
// decision would have produced, which makes a re-delivery a no-op.
func duplicateDecision(current Status, decision Decision, approvedTarget, revisionTarget Status) bool {
	if decision.Approved {
		return current == approvedTarget
	}
	return current == revisionTarget
}

func invalidState(op string, current Status) error {
	return fmt.Errorf("workflow: %s from %s: %w", op, current, shared.ErrInvalidState)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
