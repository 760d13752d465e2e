package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository reads audit_logs joined with user names.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// TimelineWindow returns one page of timeline rows, newest first.
func (r *PGRepository) TimelineWindow(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	query, args := buildTimelineQuery(filters)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	return r.query(ctx, query, args)
}

// TimelineAll returns every matching row without paging.
func (r *PGRepository) TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	query, args := buildTimelineQuery(filters)
	return r.query(ctx, query, args)
}

func (r *PGRepository) query(ctx context.Context, query string, args []any) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit timeline: %w", err)
	}
	defer rows.Close()

	var out []TimelineRow
	for rows.Next() {
		var row TimelineRow
		if err := rows.Scan(&row.At, &row.Actor, &row.Action, &row.Entity, &row.EntityID, &row.Meta); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func buildTimelineQuery(filters TimelineFilters) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if !filters.From.IsZero() {
		add("l.occurred_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("l.occurred_at < $%d + INTERVAL '1 day'", filters.To)
	}
	if v := strings.TrimSpace(filters.Actor); v != "" {
		add("u.name ILIKE '%%' || $%d || '%%'", v)
	}
	if v := strings.TrimSpace(filters.Entity); v != "" {
		add("l.entity = $%d", v)
	}
	if v := strings.TrimSpace(filters.Action); v != "" {
		add("l.action = $%d", v)
	}
	query := `
		SELECT l.occurred_at, COALESCE(u.name, 'system'), l.action, l.entity, l.entity_id, COALESCE(l.meta::text, '')
		FROM audit_logs l
		LEFT JOIN users u ON u.id = l.actor_id`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY l.occurred_at DESC, l.id DESC"
	return query, args
}
