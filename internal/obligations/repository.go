package obligations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conformia/conformia/internal/platform/db"
	"github.com/conformia/conformia/internal/shared"
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

const obligationColumns = `id, norm_id, parent_id, tipo, title, description, due_date, recurrence, priority, decomposed, aggregate_situacao, created_at, updated_at`

// GetObligation returns one obligation.
func (r *Repository) GetObligation(ctx context.Context, id uuid.UUID) (Obligation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+obligationColumns+` FROM obrigacoes WHERE id=$1`, id)
	return scanObligation(row)
}

// GetAssignment returns one obligation/unit assignment.
func (r *Repository) GetAssignment(ctx context.Context, id uuid.UUID) (Assignment, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, obligation_id, unit_id, situacao, updated_at FROM obrigacao_responsaveis WHERE id=$1`, id)
	return scanAssignment(row)
}

// ListAssignments returns every assignment of one obligation.
func (r *Repository) ListAssignments(ctx context.Context, obligationID uuid.UUID) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, obligation_id, unit_id, situacao, updated_at FROM obrigacao_responsaveis WHERE obligation_id=$1 ORDER BY unit_id`, obligationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// ListChildren returns decomposition children of one parent.
func (r *Repository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]Obligation, error) {
	return r.list(ctx, `SELECT `+obligationColumns+` FROM obrigacoes WHERE parent_id=$1 ORDER BY created_at`, parentID)
}

// ListByNorm returns root obligations registered under one norm.
func (r *Repository) ListByNorm(ctx context.Context, normID uuid.UUID) ([]Obligation, error) {
	return r.list(ctx, `SELECT `+obligationColumns+` FROM obrigacoes WHERE norm_id=$1 AND parent_id IS NULL ORDER BY created_at`, normID)
}

func (r *Repository) list(ctx context.Context, query string, arg any) ([]Obligation, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Obligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

func (t *txRepo) InsertObligation(ctx context.Context, o Obligation) error {
	var parent *uuid.UUID
	if o.ParentID != uuid.Nil {
		parent = &o.ParentID
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO obrigacoes (id, norm_id, parent_id, tipo, title, description, due_date, recurrence, priority, decomposed, aggregate_situacao, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, NULL, NOW(), NOW())`,
		o.ID, o.NormID, parent, string(o.Tipo), o.Title, o.Description, o.DueDate, o.Recurrence, string(o.Priority))
	if err != nil {
		return fmt.Errorf("obligations: insert: %w", err)
	}
	return nil
}

func (t *txRepo) InsertAssignment(ctx context.Context, a Assignment) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO obrigacao_responsaveis (id, obligation_id, unit_id, situacao, updated_at)
VALUES ($1, $2, $3, $4, NOW())`, a.ID, a.ObligationID, a.UnitID, string(a.Situacao))
	if err != nil {
		return fmt.Errorf("obligations: insert assignment: %w", err)
	}
	return nil
}

func (t *txRepo) GetObligationForUpdate(ctx context.Context, id uuid.UUID) (Obligation, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+obligationColumns+` FROM obrigacoes WHERE id=$1 FOR UPDATE`, id)
	return scanObligation(row)
}

func (t *txRepo) GetAssignmentForUpdate(ctx context.Context, id uuid.UUID) (Assignment, error) {
	row := t.tx.QueryRow(ctx, `SELECT id, obligation_id, unit_id, situacao, updated_at FROM obrigacao_responsaveis WHERE id=$1 FOR UPDATE`, id)
	return scanAssignment(row)
}

func (t *txRepo) UpdateAssignmentSituacao(ctx context.Context, id uuid.UUID, situacao Situacao) error {
	_, err := t.tx.Exec(ctx, `UPDATE obrigacao_responsaveis SET situacao=$1, updated_at=NOW() WHERE id=$2`, string(situacao), id)
	if err != nil {
		return fmt.Errorf("obligations: update situacao: %w", err)
	}
	return nil
}

func (t *txRepo) MarkDecomposed(ctx context.Context, id uuid.UUID, aggregate AggregateSituacao) error {
	_, err := t.tx.Exec(ctx, `UPDATE obrigacoes SET decomposed=true, aggregate_situacao=$1, updated_at=NOW() WHERE id=$2`, string(aggregate), id)
	if err != nil {
		return fmt.Errorf("obligations: mark decomposed: %w", err)
	}
	return nil
}

func (t *txRepo) UpdateAggregate(ctx context.Context, id uuid.UUID, aggregate AggregateSituacao) error {
	_, err := t.tx.Exec(ctx, `UPDATE obrigacoes SET aggregate_situacao=$1, updated_at=NOW() WHERE id=$2`, string(aggregate), id)
	if err != nil {
		return fmt.Errorf("obligations: update aggregate: %w", err)
	}
	return nil
}

func (t *txRepo) ListChildSituacoes(ctx context.Context, parentID uuid.UUID) ([]Situacao, error) {
	rows, err := t.tx.Query(ctx, `SELECT r.situacao FROM obrigacao_responsaveis r
JOIN obrigacoes o ON o.id = r.obligation_id
WHERE o.parent_id=$1`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var situacoes []Situacao
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		situacoes = append(situacoes, Situacao(s))
	}
	return situacoes, rows.Err()
}

func scanObligation(row pgx.Row) (Obligation, error) {
	var o Obligation
	var parent *uuid.UUID
	var tipo, priority string
	var aggregate *string
	err := row.Scan(&o.ID, &o.NormID, &parent, &tipo, &o.Title, &o.Description, &o.DueDate, &o.Recurrence, &priority, &o.Decomposed, &aggregate, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Obligation{}, fmt.Errorf("obligations: %w", shared.ErrNotFound)
		}
		return Obligation{}, err
	}
	if parent != nil {
		o.ParentID = *parent
	}
	o.Tipo = Tipo(tipo)
	o.Priority = Priority(priority)
	if aggregate != nil {
		o.Aggregate = AggregateSituacao(*aggregate)
	}
	return o, nil
}

func scanAssignment(row pgx.Row) (Assignment, error) {
	var a Assignment
	var situacao string
	err := row.Scan(&a.ID, &a.ObligationID, &a.UnitID, &situacao, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, fmt.Errorf("obligations: assignment: %w", shared.ErrNotFound)
		}
		return Assignment{}, err
	}
	a.Situacao = Situacao(situacao)
	return a, nil
}
