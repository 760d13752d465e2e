package evidence

import (
	"time"

	"github.com/google/uuid"

	"github.com/conformia/conformia/internal/workflow"
)

// Tipo classifies how the proof is carried.
type Tipo string

const (
	TipoTexto   Tipo = "texto"
	TipoArquivo Tipo = "arquivo"
	TipoLink    Tipo = "link"
)

// Valid reports whether the tipo is a known kind.
func (t Tipo) Valid() bool {
	switch t {
	case TipoTexto, TipoArquivo, TipoLink:
		return true
	}
	return false
}

// Evidence is one submitted proof item attached to an obligation/unit
// assignment. Content holds the text body, the blob store reference or the
// URL depending on Tipo; the blob store itself is an external collaborator.
type Evidence struct {
	ID           uuid.UUID             `json:"id"`
	AssignmentID uuid.UUID             `json:"assignment_id"`
	UnitID       int64                 `json:"unit_id"`
	Tipo         Tipo                  `json:"tipo"`
	Content      string                `json:"content"`
	Status       workflow.Status       `json:"status"`
	Final        workflow.FinalOutcome `json:"final,omitempty"`
	CreatedBy    int64                 `json:"created_by"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}
