package norms

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conformia/conformia/internal/shared"
)

// ErrDuplicateCode signals a norm code collision.
var ErrDuplicateCode = fmt.Errorf("norms: code already registered: %w", shared.ErrValidation)

// Repository persists norms in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a new norm. Code collisions map to ErrDuplicateCode.
func (r *Repository) Insert(ctx context.Context, norm Norm) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO normas (id, code, kind, title, description, published_at, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`,
		norm.ID, norm.Code, string(norm.Kind), norm.Title, norm.Description, norm.PublishedAt, norm.IsActive)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateCode
		}
		return fmt.Errorf("insert norm: %w", err)
	}
	return nil
}

// Get loads one norm by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Norm, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, code, kind, title, description, published_at, is_active, created_at, updated_at
		FROM normas WHERE id = $1`, id)
	return scanNorm(row)
}

// List returns a page of norms ordered by publication date, newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Norm, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM normas`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count norms: %w", err)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, code, kind, title, description, published_at, is_active, created_at, updated_at
		FROM normas ORDER BY published_at DESC, code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list norms: %w", err)
	}
	defer rows.Close()

	var out []Norm
	for rows.Next() {
		norm, err := scanNorm(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, norm)
	}
	return out, total, rows.Err()
}

// Deactivate flags the norm inactive.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE normas SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate norm: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanNorm(row pgx.Row) (Norm, error) {
	var norm Norm
	var kind string
	err := row.Scan(&norm.ID, &norm.Code, &kind, &norm.Title, &norm.Description, &norm.PublishedAt, &norm.IsActive, &norm.CreatedAt, &norm.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Norm{}, shared.ErrNotFound
	}
	if err != nil {
		return Norm{}, fmt.Errorf("scan norm: %w", err)
	}
	norm.Kind = Kind(kind)
	return norm, nil
}
