package plans

import (
	"time"

	"github.com/google/uuid"

	"github.com/conformia/conformia/internal/workflow"
)

// Plan is a 5W2H corrective-action record used when a unit cannot
// demonstrate immediate conformity. It carries the same approval status
// vocabulary as evidence and runs the same two gates.
type Plan struct {
	ID           uuid.UUID             `json:"id"`
	AssignmentID uuid.UUID             `json:"assignment_id"`
	UnitID       int64                 `json:"unit_id"`
	What         string                `json:"what"`
	Why          string                `json:"why"`
	Where        string                `json:"where"`
	Who          string                `json:"who"`
	How          string                `json:"how"`
	Deadline     time.Time             `json:"deadline"`
	Cost         float64               `json:"cost"`
	Status       workflow.Status       `json:"status"`
	Final        workflow.FinalOutcome `json:"final,omitempty"`
	CreatedBy    int64                 `json:"created_by"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}
