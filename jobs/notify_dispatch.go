package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/conformia/conformia/internal/jobs"
	"github.com/conformia/conformia/internal/shared"
)

// Dispatcher delivers recorded notifications to unit contacts and marks them
// as dispatched. Delivery failures are retried by Asynq.
type Dispatcher struct {
	pool        *pgxpool.Pool
	logger      *slog.Logger
	smtpAddr    string
	smtpFrom    string
	metrics     *jobmetrics.Metrics
	idempotency *shared.IdempotencyStore
}

// NewDispatcher constructs a Dispatcher. smtpAddr may be empty, in which case
// delivery is log-only (useful in development).
func NewDispatcher(pool *pgxpool.Pool, logger *slog.Logger, smtpAddr, smtpFrom string, metrics *jobmetrics.Metrics, idempotency *shared.IdempotencyStore) *Dispatcher {
	return &Dispatcher{pool: pool, logger: logger, smtpAddr: smtpAddr, smtpFrom: smtpFrom, metrics: metrics, idempotency: idempotency}
}

// HandleNotifyDispatch processes TaskTypeNotifyDispatch tasks.
func (d *Dispatcher) HandleNotifyDispatch(ctx context.Context, t *asynq.Task) error {
	tracker := d.metrics.Track("notify_dispatch")
	payload, err := DecodeNotifyDispatch(t)
	if err != nil {
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	return tracker.End(d.dispatch(ctx, payload))
}

func (d *Dispatcher) dispatch(ctx context.Context, payload NotifyDispatchPayload) error {
	// Asynq guarantees at-least-once delivery; the idempotency key keeps a
	// re-delivered task from mailing the unit twice.
	idemKey := ""
	if payload.NotificationID != 0 && d.idempotency != nil {
		idemKey = fmt.Sprintf("notify:%d", payload.NotificationID)
		if err := d.idempotency.CheckAndInsert(ctx, idemKey, "NOTIFICACAO"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				d.logger.Info("notification already delivered", slog.Int64("notification_id", payload.NotificationID))
				return nil
			}
			return err
		}
	}
	recipients, err := d.unitRecipients(ctx, payload.UnitID)
	if err != nil {
		d.releaseKey(ctx, idemKey)
		return err
	}
	if len(recipients) > 0 && d.smtpAddr != "" {
		subject := fmt.Sprintf("[conformia] %s", payload.EventKind)
		body := d.renderBody(payload)
		msg := []byte("From: " + d.smtpFrom + "\r\nTo: " + strings.Join(recipients, ",") +
			"\r\nSubject: " + subject + "\r\n\r\n" + body)
		if err := smtp.SendMail(d.smtpAddr, nil, d.smtpFrom, recipients, msg); err != nil {
			d.logger.Warn("deliver notification", slog.Int64("unit_id", payload.UnitID), slog.Any("error", err))
			d.releaseKey(ctx, idemKey)
			return err
		}
		d.metrics.AddDispatched(payload.EventKind, len(recipients))
	} else {
		d.logger.Info("notification dispatched (log only)",
			slog.Int64("unit_id", payload.UnitID),
			slog.String("event", payload.EventKind))
	}
	if payload.NotificationID != 0 && d.pool != nil {
		if _, err := d.pool.Exec(ctx, `UPDATE notifications SET dispatched_at=$1 WHERE id=$2 AND dispatched_at IS NULL`,
			time.Now(), payload.NotificationID); err != nil {
			d.logger.Warn("mark notification dispatched", slog.Any("error", err))
		}
	}
	return nil
}

func (d *Dispatcher) releaseKey(ctx context.Context, key string) {
	if key == "" || d.idempotency == nil {
		return
	}
	if err := d.idempotency.Delete(ctx, key); err != nil {
		d.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

func (d *Dispatcher) unitRecipients(ctx context.Context, unitID int64) ([]string, error) {
	if d.pool == nil {
		return nil, nil
	}
	rows, err := d.pool.Query(ctx, `SELECT email FROM users WHERE unit_id=$1 AND is_active`, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recipients []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		recipients = append(recipients, email)
	}
	return recipients, rows.Err()
}

func (d *Dispatcher) renderBody(payload NotifyDispatchPayload) string {
	var b strings.Builder
	b.WriteString("Evento: ")
	b.WriteString(payload.EventKind)
	b.WriteString("\n")
	for key, value := range payload.Payload {
		fmt.Fprintf(&b, "%s: %v\n", key, value)
	}
	return b.String()
}
