package obligations

import (
	"time"

	"github.com/google/uuid"
)

// Tipo classifies the obligation imposed by a norm.
type Tipo string

const (
	TipoRecomendacao Tipo = "recomendacao"
	TipoDeterminacao Tipo = "determinacao"
)

// Valid reports whether the tipo is a known classification.
func (t Tipo) Valid() bool {
	return t == TipoRecomendacao || t == TipoDeterminacao
}

// Priority levels for obligations.
type Priority string

const (
	PriorityBaixa Priority = "baixa"
	PriorityMedia Priority = "media"
	PriorityAlta  Priority = "alta"
)

// Situacao is the lifecycle status of one obligation/unit assignment. It is
// always derived from the assignment's evidence or action-plan workflow and
// persisted so readers never re-derive it from the nested records.
type Situacao string

const (
	// SituacaoAguardandoEvidencia means the unit still owes a submission.
	SituacaoAguardandoEvidencia Situacao = "AGUARDANDO_EVIDENCIA"
	// SituacaoAguardandoAprovacaoGestor means the manager gate holds a submission.
	SituacaoAguardandoAprovacaoGestor Situacao = "AGUARDANDO_APROVACAO_GESTOR"
	// SituacaoAguardandoAprovacaoACR means the compliance office gate holds it.
	SituacaoAguardandoAprovacaoACR Situacao = "AGUARDANDO_APROVACAO_ACR"
	// SituacaoAtendeIntegralmente marks full compliance.
	SituacaoAtendeIntegralmente Situacao = "ATENDE_INTEGRALMENTE"
	// SituacaoAtendeParcialmente marks partial compliance.
	SituacaoAtendeParcialmente Situacao = "ATENDE_PARCIALMENTE"
	// SituacaoNaoSeAplica marks the obligation as not applicable to the unit.
	SituacaoNaoSeAplica Situacao = "NAO_SE_APLICA"
	// SituacaoNaoConforme marks a terminal rejection.
	SituacaoNaoConforme Situacao = "NAO_CONFORME"
)

// Conforming reports whether the situacao is a compliant terminal verdict.
func (s Situacao) Conforming() bool {
	switch s {
	case SituacaoAtendeIntegralmente, SituacaoAtendeParcialmente, SituacaoNaoSeAplica:
		return true
	}
	return false
}

// Pending reports whether the situacao still awaits some gate.
func (s Situacao) Pending() bool {
	switch s {
	case SituacaoAguardandoEvidencia, SituacaoAguardandoAprovacaoGestor, SituacaoAguardandoAprovacaoACR:
		return true
	}
	return false
}

// AggregateSituacao is the derived status displayed on a decomposed parent.
type AggregateSituacao string

const (
	AggregateConforme    AggregateSituacao = "conforme"
	AggregateNaoConforme AggregateSituacao = "nao_conforme"
	AggregateEmAndamento AggregateSituacao = "em_andamento"
)

// Obligation is a requirement derived from a norm. A non-nil ParentID marks
// a decomposition child, which carries exactly one responsible unit.
type Obligation struct {
	ID          uuid.UUID `json:"id"`
	NormID      uuid.UUID `json:"norm_id"`
	ParentID    uuid.UUID `json:"parent_id,omitempty"`
	Tipo        Tipo      `json:"tipo"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
	Recurrence  string    `json:"recurrence,omitempty"`
	Priority    Priority  `json:"priority"`
	Decomposed  bool      `json:"decomposed"`
	// Aggregate is only meaningful once Decomposed is true; it is computed
	// by the aggregator and never set directly.
	Aggregate AggregateSituacao `json:"aggregate,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// IsChild reports whether the obligation came from a decomposition.
func (o Obligation) IsChild() bool {
	return o.ParentID != uuid.Nil
}

// Assignment joins one obligation to one responsible unit. All evidence and
// action plans attach here, not to the obligation itself.
type Assignment struct {
	ID           uuid.UUID `json:"id"`
	ObligationID uuid.UUID `json:"obligation_id"`
	UnitID       int64     `json:"unit_id"`
	Situacao     Situacao  `json:"situacao"`
	UpdatedAt    time.Time `json:"updated_at"`
}
