package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"
)

// UnitBreakdown counts assignment situacoes for one unit.
type UnitBreakdown struct {
	UnitID        int64          `json:"unit_id"`
	UnitName      string         `json:"unit_name"`
	BySituacao    map[string]int `json:"by_situacao"`
	Total         int            `json:"total"`
	ConformeRatio float64        `json:"conforme_ratio"`
}

// NormBreakdown counts assignment situacoes for one norm.
type NormBreakdown struct {
	NormID        string         `json:"norm_id"`
	NormCode      string         `json:"norm_code"`
	BySituacao    map[string]int `json:"by_situacao"`
	Total         int            `json:"total"`
	ConformeRatio float64        `json:"conforme_ratio"`
}

// Summary is the full compliance snapshot.
type Summary struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Units       []UnitBreakdown `json:"units"`
	Norms       []NormBreakdown `json:"norms"`
}

// SummaryRow is one aggregate row from the repository.
type SummaryRow struct {
	NormID   string
	NormCode string
	UnitID   int64
	UnitName string
	Situacao string
	Count    int
}

// SummaryRepository reads aggregate counts of assignments by situacao.
type SummaryRepository interface {
	SituacaoCounts(ctx context.Context) ([]SummaryRow, error)
}

var conformingSituacoes = map[string]bool{
	"ATENDE_INTEGRALMENTE": true,
	"ATENDE_PARCIALMENTE":  true,
	"NAO_SE_APLICA":        true,
}

// SummaryService builds compliance snapshots. Concurrent requests for the
// same snapshot collapse into one repository scan.
type SummaryService struct {
	repo  SummaryRepository
	group singleflight.Group
	now   func() time.Time
}

// NewSummaryService builds a SummaryService.
func NewSummaryService(repo SummaryRepository) *SummaryService {
	return &SummaryService{repo: repo, now: time.Now}
}

// Build computes the compliance snapshot across all norms and units.
func (s *SummaryService) Build(ctx context.Context) (Summary, error) {
	resultChan := s.group.DoChan("compliance-summary", func() (any, error) {
		return s.build(ctx)
	})
	select {
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return Summary{}, res.Err
		}
		summary, ok := res.Val.(Summary)
		if !ok {
			return Summary{}, fmt.Errorf("report: unexpected summary type %T", res.Val)
		}
		return summary, nil
	}
}

func (s *SummaryService) build(ctx context.Context) (Summary, error) {
	rows, err := s.repo.SituacaoCounts(ctx)
	if err != nil {
		return Summary{}, err
	}
	unitAgg := make(map[int64]*UnitBreakdown)
	normAgg := make(map[string]*NormBreakdown)
	for _, row := range rows {
		unit, ok := unitAgg[row.UnitID]
		if !ok {
			unit = &UnitBreakdown{UnitID: row.UnitID, UnitName: row.UnitName, BySituacao: make(map[string]int)}
			unitAgg[row.UnitID] = unit
		}
		unit.BySituacao[row.Situacao] += row.Count
		unit.Total += row.Count

		norm, ok := normAgg[row.NormID]
		if !ok {
			norm = &NormBreakdown{NormID: row.NormID, NormCode: row.NormCode, BySituacao: make(map[string]int)}
			normAgg[row.NormID] = norm
		}
		norm.BySituacao[row.Situacao] += row.Count
		norm.Total += row.Count
	}

	summary := Summary{GeneratedAt: s.now().UTC()}
	for _, unit := range unitAgg {
		unit.ConformeRatio = conformeRatio(unit.BySituacao, unit.Total)
		summary.Units = append(summary.Units, *unit)
	}
	for _, norm := range normAgg {
		norm.ConformeRatio = conformeRatio(norm.BySituacao, norm.Total)
		summary.Norms = append(summary.Norms, *norm)
	}
	sort.Slice(summary.Units, func(i, j int) bool { return summary.Units[i].UnitID < summary.Units[j].UnitID })
	sort.Slice(summary.Norms, func(i, j int) bool { return summary.Norms[i].NormCode < summary.Norms[j].NormCode })
	return summary, nil
}

func conformeRatio(bySituacao map[string]int, total int) float64 {
	if total == 0 {
		return 0
	}
	conforming := 0
	for situacao, count := range bySituacao {
		if conformingSituacoes[situacao] {
			conforming += count
		}
	}
	return float64(conforming) / float64(total)
}
