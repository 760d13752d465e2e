package units

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conformia/conformia/internal/shared"
)

// ErrDuplicateCode signals a unit code collision.
var ErrDuplicateCode = fmt.Errorf("units: code already registered: %w", shared.ErrValidation)

// Repository persists units in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a new unit and returns it with the generated id.
func (r *Repository) Insert(ctx context.Context, unit Unit) (Unit, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO units (code, name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		unit.Code, unit.Name, unit.IsActive).Scan(&unit.ID, &unit.CreatedAt, &unit.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Unit{}, ErrDuplicateCode
		}
		return Unit{}, fmt.Errorf("insert unit: %w", err)
	}
	return unit, nil
}

// Get loads one unit by id.
func (r *Repository) Get(ctx context.Context, id int64) (Unit, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, code, name, is_active, created_at, updated_at FROM units WHERE id = $1`, id)
	return scanUnit(row)
}

// List returns units ordered by code.
func (r *Repository) List(ctx context.Context, includeInactive bool) ([]Unit, error) {
	query := `SELECT id, code, name, is_active, created_at, updated_at FROM units`
	if !includeInactive {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY code`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	var out []Unit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, unit)
	}
	return out, rows.Err()
}

// Update rewrites the mutable fields.
func (r *Repository) Update(ctx context.Context, unit Unit) error {
	tag, err := r.pool.Exec(ctx, `UPDATE units SET name = $2, updated_at = NOW() WHERE id = $1`, unit.ID, unit.Name)
	if err != nil {
		return fmt.Errorf("update unit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetActive toggles the active flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE units SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set unit active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanUnit(row pgx.Row) (Unit, error) {
	var unit Unit
	err := row.Scan(&unit.ID, &unit.Code, &unit.Name, &unit.IsActive, &unit.CreatedAt, &unit.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Unit{}, shared.ErrNotFound
	}
	if err != nil {
		return Unit{}, fmt.Errorf("scan unit: %w", err)
	}
	return unit, nil
}
