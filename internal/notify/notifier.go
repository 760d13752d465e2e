// Package notify delivers workflow events to units. Delivery is append-only
// and fire-and-forget: a slow or failing channel never stalls or fails the
// state transition that produced the event.
package notify

import "context"

// Event kinds emitted by the workflow services.
const (
	EventObligationAssigned = "obligation.assigned"
	EventEvidenceSubmitted  = "evidence.submitted"
	EventEvidenceDecided    = "evidence.decided"
	EventPlanSubmitted      = "plan.submitted"
	EventPlanDecided        = "plan.decided"
	EventRevisionRequested  = "revision.requested"
)

// Notifier is the append-only notification sink consumed by the workflow
// services. Implementations must not block on network I/O; errors are logged
// by the implementation, never surfaced to the transition.
type Notifier interface {
	Notify(ctx context.Context, unitID int64, eventKind string, payload map[string]any)
}
