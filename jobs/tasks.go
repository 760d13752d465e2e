package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeNotifyDispatch delivers a recorded notification to its unit.
	TaskTypeNotifyDispatch = "notify:dispatch"
	// TaskTypeIdempotencyCleanup prunes expired idempotency keys.
	TaskTypeIdempotencyCleanup = "housekeeping:idempotency"
)

// NotifyDispatchPayload describes a notification waiting for delivery.
type NotifyDispatchPayload struct {
	NotificationID int64          `json:"notification_id"`
	UnitID         int64          `json:"unit_id"`
	EventKind      string         `json:"event_kind"`
	Payload        map[string]any `json:"payload"`
}

// NewNotifyDispatchTask constructs an Asynq task for notification delivery.
func NewNotifyDispatchTask(payload NotifyDispatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeNotifyDispatch, data), nil
}

// NewIdempotencyCleanupTask constructs the housekeeping cron task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeIdempotencyCleanup, nil)
}

// DecodeNotifyDispatch unmarshals a dispatch task payload.
func DecodeNotifyDispatch(t *asynq.Task) (NotifyDispatchPayload, error) {
	var payload NotifyDispatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return NotifyDispatchPayload{}, err
	}
	return payload, nil
}
