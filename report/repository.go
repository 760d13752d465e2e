package report

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGSummaryRepository reads aggregate counts from PostgreSQL.
type PGSummaryRepository struct {
	pool *pgxpool.Pool
}

// NewSummaryRepository returns a pgx-backed repository.
func NewSummaryRepository(pool *pgxpool.Pool) *PGSummaryRepository {
	return &PGSummaryRepository{pool: pool}
}

// SituacaoCounts groups assignments by norm, unit and situacao. Decomposition
// children are included; their parents carry a derived aggregate instead of
// assignments and so never appear here.
func (r *PGSummaryRepository) SituacaoCounts(ctx context.Context) ([]SummaryRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT n.id::text, n.code, u.id, u.name, a.situacao, COUNT(*)
		FROM obrigacao_responsaveis a
		JOIN obrigacoes o ON o.id = a.obligation_id
		JOIN normas n ON n.id = o.norm_id
		JOIN units u ON u.id = a.unit_id
		GROUP BY n.id, n.code, u.id, u.name, a.situacao`)
	if err != nil {
		return nil, fmt.Errorf("situacao counts: %w", err)
	}
	defer rows.Close()

	var out []SummaryRow
	for rows.Next() {
		var row SummaryRow
		if err := rows.Scan(&row.NormID, &row.NormCode, &row.UnitID, &row.UnitName, &row.Situacao, &row.Count); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
