package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/conformia/conformia/internal/jobs"
	"github.com/conformia/conformia/internal/shared"
)

// Housekeeper runs periodic maintenance tasks.
type Housekeeper struct {
	idempotency *shared.IdempotencyStore
	logger      *slog.Logger
	retention   time.Duration
	metrics     *jobmetrics.Metrics
}

// NewHousekeeper constructs the Housekeeper with the default retention.
func NewHousekeeper(idempotency *shared.IdempotencyStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *Housekeeper {
	return &Housekeeper{idempotency: idempotency, logger: logger, retention: 30 * 24 * time.Hour, metrics: metrics}
}

// HandleIdempotencyCleanup processes TaskTypeIdempotencyCleanup tasks.
func (h *Housekeeper) HandleIdempotencyCleanup(ctx context.Context, _ *asynq.Task) error {
	tracker := h.metrics.Track("idempotency_cleanup")
	if h.idempotency == nil {
		return tracker.End(nil)
	}
	if err := h.idempotency.Cleanup(ctx, h.retention); err != nil {
		h.logger.Warn("idempotency cleanup", slog.Any("error", err))
		return tracker.End(err)
	}
	return tracker.End(nil)
}
