package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conformia/conformia/jobs"
)

// QueueNotifier appends events to the notifications table and enqueues an
// asynq dispatch task for the worker. Both writes are best-effort.
type QueueNotifier struct {
	pool   *pgxpool.Pool
	client *asynq.Client
	logger *slog.Logger
}

// NewQueueNotifier constructs a QueueNotifier.
func NewQueueNotifier(pool *pgxpool.Pool, client *asynq.Client, logger *slog.Logger) *QueueNotifier {
	return &QueueNotifier{pool: pool, client: client, logger: logger}
}

// Notify records the event and hands it to the worker queue. Failures are
// logged and swallowed so the triggering transition never fails.
func (n *QueueNotifier) Notify(ctx context.Context, unitID int64, eventKind string, payload map[string]any) {
	if n == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		n.log("marshal notification payload", err)
		return
	}
	var notificationID int64
	if n.pool != nil {
		err = n.pool.QueryRow(ctx, `INSERT INTO notifications (unit_id, event_kind, payload, created_at)
VALUES ($1, $2, $3, NOW()) RETURNING id`, unitID, eventKind, data).Scan(&notificationID)
		if err != nil {
			n.log("append notification", err)
		}
	}
	if n.client == nil {
		return
	}
	task, err := jobs.NewNotifyDispatchTask(jobs.NotifyDispatchPayload{
		NotificationID: notificationID,
		UnitID:         unitID,
		EventKind:      eventKind,
		Payload:        payload,
	})
	if err != nil {
		n.log("build dispatch task", err)
		return
	}
	if _, err := n.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault)); err != nil {
		n.log("enqueue dispatch task", err)
	}
}

func (n *QueueNotifier) log(msg string, err error) {
	if n.logger != nil {
		n.logger.Error(msg, slog.Any("error", err))
	}
}
