package plans

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

const planColumns = `id, assignment_id, unit_id, what, why, "where", who, how, deadline, cost, status, situacao_final, created_by, created_at, updated_at`

// GetPlan returns one action plan.
func (r *Repository) GetPlan(ctx context.Context, id uuid.UUID) (Plan, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM planos_acao WHERE id=$1`, id)
	return scanPlan(row)
}

// ListByAssignment returns plans for one assignment, newest first.
func (r *Repository) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]Plan, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+planColumns+` FROM planos_acao WHERE assignment_id=$1 ORDER BY created_at DESC`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (t *txRepo) InsertPlan(ctx context.Context, p Plan) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO planos_acao (id, assignment_id, unit_id, what, why, "where", who, how, deadline, cost, status, situacao_final, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13, NOW(), NOW())`,
		p.ID, p.AssignmentID, p.UnitID, p.What, p.Why, p.Where, p.Who, p.How, p.Deadline, p.Cost, string(p.Status), string(p.Final), p.CreatedBy)
	if err != nil {
		return fmt.Errorf("plans: insert: %w", err)
	}
	return nil
}

func (t *txRepo) GetPlanForUpdate(ctx context.Context, id uuid.UUID) (Plan, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+planColumns+` FROM planos_acao WHERE id=$1 FOR UPDATE`, id)
	return scanPlan(row)
}

func (t *txRepo) UpdatePlanStatus(ctx context.Context, id uuid.UUID, status workflow.Status, final workflow.FinalOutcome) error {
	_, err := t.tx.Exec(ctx, `UPDATE planos_acao SET status=$1, situacao_final=NULLIF($2, ''), updated_at=NOW() WHERE id=$3`,
		string(status), string(final), id)
	if err != nil {
		return fmt.Errorf("plans: update status: %w", err)
	}
	return nil
}

func scanPlan(row pgx.Row) (Plan, error) {
	var p Plan
	var status string
	var final *string
	err := row.Scan(&p.ID, &p.AssignmentID, &p.UnitID, &p.What, &p.Why, &p.Where, &p.Who, &p.How, &p.Deadline, &p.Cost, &status, &final, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Plan{}, fmt.Errorf("plans: %w", shared.ErrNotFound)
		}
		return Plan{}, err
	}
	p.Status = workflow.Status(status)
	if final != nil {
		p.Final = workflow.FinalOutcome(*final)
	}
	return p, nil
}
