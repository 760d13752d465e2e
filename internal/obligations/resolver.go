package obligations

import "github.com/conformia/conformia/internal/workflow"

// ResolveSituacao maps a workflow status to the situacao stored on the
// owning assignment. Pure mapping; callers persist the result inside the
// same transaction as the workflow transition.
//
// Revision-requested states hand the record back to the unit, so they map to
// AGUARDANDO_EVIDENCIA rather than to a gate-pending situacao.
func ResolveSituacao(status workflow.Status, final workflow.FinalOutcome) Situacao {
	switch status {
	case workflow.StatusEmAnaliseGestor:
		return SituacaoAguardandoAprovacaoGestor
	case workflow.StatusEmAnaliseACR:
		return SituacaoAguardandoAprovacaoACR
	case workflow.StatusAprovadoACR:
		switch final {
		case workflow.OutcomeAtendeIntegralmente:
			return SituacaoAtendeIntegralmente
		case workflow.OutcomeAtendeParcialmente:
			return SituacaoAtendeParcialmente
		case workflow.OutcomeNaoSeAplica:
			return SituacaoNaoSeAplica
		}
		// An ACR approval without a verdict never passes the machine; fall
		// back to the conservative pending state if it somehow reaches here.
		return SituacaoAguardandoAprovacaoACR
	case workflow.StatusRejeitado:
		return SituacaoNaoConforme
	default:
		return SituacaoAguardandoEvidencia
	}
}

// AggregateChildren rolls child situacoes into the parent display status.
// Precedence: any rejected child wins, then any pending child, then full
// conformity. An empty child set counts as still in progress.
func AggregateChildren(children []Situacao) AggregateSituacao {
	if len(children) == 0 {
		return AggregateEmAndamento
	}
	conforming := 0
	for _, s := range children {
		if s == SituacaoNaoConforme {
			return AggregateNaoConforme
		}
		if s.Conforming() {
			conforming++
		}
	}
	if conforming == len(children) {
		return AggregateConforme
	}
	return AggregateEmAndamento
}
