package evidence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conformia/conformia/internal/platform/db"
	"github.com/conformia/conformia/internal/shared"
	"github.com/conformia/conformia/internal/workflow"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const evidenceColumns = `id, assignment_id, unit_id, tipo, content, status, situacao_final, created_by, created_at, updated_at`

// GetEvidence returns one evidence row.
func (r *Repository) GetEvidence(ctx context.Context, id uuid.UUID) (Evidence, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+evidenceColumns+` FROM evidencias WHERE id=$1`, id)
	return scanEvidence(row)
}

// ListByAssignment returns evidence for one assignment, newest first.
func (r *Repository) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]Evidence, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+evidenceColumns+` FROM evidencias WHERE assignment_id=$1 ORDER BY created_at DESC`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Evidence
	for rows.Next() {
		ev, err := scanEvidence(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, ev)
	}
	return items, rows.Err()
}

func (t *txRepo) InsertEvidence(ctx context.Context, ev Evidence) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO evidencias (id, assignment_id, unit_id, tipo, content, status, situacao_final, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, NOW(), NOW())`,
		ev.ID, ev.AssignmentID, ev.UnitID, string(ev.Tipo), ev.Content, string(ev.Status), string(ev.Final), ev.CreatedBy)
	if err != nil {
		return fmt.Errorf("evidence: insert: %w", err)
	}
	return nil
}

func (t *txRepo) GetEvidenceForUpdate(ctx context.Context, id uuid.UUID) (Evidence, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+evidenceColumns+` FROM evidencias WHERE id=$1 FOR UPDATE`, id)
	return scanEvidence(row)
}

func (t *txRepo) UpdateEvidenceStatus(ctx context.Context, id uuid.UUID, status workflow.Status, final workflow.FinalOutcome) error {
	_, err := t.tx.Exec(ctx, `UPDATE evidencias SET status=$1, situacao_final=NULLIF($2, ''), updated_at=NOW() WHERE id=$3`,
		string(status), string(final), id)
	if err != nil {
		return fmt.Errorf("evidence: update status: %w", err)
	}
	return nil
}

func (t *txRepo) UpdateEvidenceContent(ctx context.Context, id uuid.UUID, tipo Tipo, content string) error {
	_, err := t.tx.Exec(ctx, `UPDATE evidencias SET tipo=$1, content=$2, updated_at=NOW() WHERE id=$3`,
		string(tipo), content, id)
	if err != nil {
		return fmt.Errorf("evidence: update content: %w", err)
	}
	return nil
}

func scanEvidence(row pgx.Row) (Evidence, error) {
	var ev Evidence
	var tipo, status string
	var final *string
	err := row.Scan(&ev.ID, &ev.AssignmentID, &ev.UnitID, &tipo, &ev.Content, &status, &final, &ev.CreatedBy, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Evidence{}, fmt.Errorf("evidence: %w", shared.ErrNotFound)
		}
		return Evidence{}, err
	}
	ev.Tipo = Tipo(tipo)
	ev.Status = workflow.Status(status)
	if final != nil {
		ev.Final = workflow.FinalOutcome(*final)
	}
	return ev, nil
}
