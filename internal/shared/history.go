package shared

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HistoryAction enumerates workflow history actions.
type HistoryAction string

const (
	// HistorySubmit marks a submission into a review gate.
	HistorySubmit HistoryAction = "SUBMIT"
	// HistoryApprove marks a gate approval.
	HistoryApprove HistoryAction = "APPROVE"
	// HistoryRevise marks a revision request.
	HistoryRevise HistoryAction = "REVISE"
	// HistoryReject marks a terminal rejection.
	HistoryReject HistoryAction = "REJECT"
)

// HistoryEntry represents a single workflow history record.
type HistoryEntry struct {
	ID      int64         `json:"id"`
	Module  string        `json:"module"`
	RefID   uuid.UUID     `json:"ref_id"`
	ActorID int64         `json:"actor_id"`
	Gate    string        `json:"gate"`
	Action  HistoryAction `json:"action"`
	Note    string        `json:"note,omitempty"`
	At      time.Time     `json:"at"`
}

// HistoryRecorder persists workflow history per evidence/plan.
type HistoryRecorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewHistoryRecorder constructs HistoryRecorder.
func NewHistoryRecorder(pool *pgxpool.Pool, logger *slog.Logger) *HistoryRecorder {
	return &HistoryRecorder{pool: pool, logger: logger}
}

// withDefaults stamps the entry time. pgx encodes a zero time.Time as year 1
// rather than NULL, so the timestamp has to be filled in here, not by a
// database default.
func (e HistoryEntry) withDefaults() HistoryEntry {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	return e
}

// Record writes a history entry to the database.
func (r *HistoryRecorder) Record(ctx context.Context, entry HistoryEntry) error {
	if r == nil {
		return errors.New("history recorder not initialised")
	}
	if entry.Module == "" {
		return errors.New("history module required")
	}
	if entry.ActorID == 0 {
		return errors.New("history actor required")
	}
	if entry.RefID == uuid.Nil {
		return errors.New("history ref id required")
	}
	if entry.Action == "" {
		return errors.New("history action required")
	}
	entry = entry.withDefaults()
	_, err := r.pool.Exec(ctx, `INSERT INTO workflow_history (module, ref_id, actor_id, gate, action, note, at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, entry.Module, entry.RefID, entry.ActorID, entry.Gate, string(entry.Action), entry.Note, entry.At)
	if err != nil {
		r.logger.Error("record workflow history", slog.Any("error", err))
		return err
	}
	return nil
}

// List returns history for module/ref ordered oldest first.
func (r *HistoryRecorder) List(ctx context.Context, module string, ref uuid.UUID) ([]HistoryEntry, error) {
	if r == nil {
		return nil, errors.New("history recorder not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, module, ref_id, actor_id, gate, action, note, at
FROM workflow_history WHERE module=$1 AND ref_id=$2 ORDER BY at ASC, id ASC`, module, ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var action string
		if err := rows.Scan(&e.ID, &e.Module, &e.RefID, &e.ActorID, &e.Gate, &action, &e.Note, &e.At); err != nil {
			return nil, err
		}
		e.Action = HistoryAction(action)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
