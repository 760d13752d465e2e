package audit

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	rows []TimelineRow
}

func (r *fakeRepo) TimelineWindow(_ context.Context, _ TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	if offset >= len(r.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(r.rows) {
		end = len(r.rows)
	}
	return r.rows[offset:end], nil
}

func (r *fakeRepo) TimelineAll(_ context.Context, _ TimelineFilters) ([]TimelineRow, error) {
	return r.rows, nil
}

func makeRows(n int) []TimelineRow {
	rows := make([]TimelineRow, n)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = TimelineRow{
			At:       base.Add(-time.Duration(i) * time.Minute),
			Actor:    "Ana Ribeiro",
			Action:   "EVIDENCE_DECIDE_ACR",
			Entity:   "evidence",
			EntityID: strconv.Itoa(i),
		}
	}
	return rows
}

func TestTimelinePaging(t *testing.T) {
	svc := NewService(&fakeRepo{rows: makeRows(45)})
	ctx := context.Background()

	res, err := svc.Timeline(ctx, TimelineFilters{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, res.Rows, 20)
	require.True(t, res.Paging.HasNext)
	require.Equal(t, 2, res.Paging.NextPage)
	require.Zero(t, res.Paging.PrevPage)

	res, err = svc.Timeline(ctx, TimelineFilters{Page: 3, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, res.Rows, 5)
	require.False(t, res.Paging.HasNext)
	require.Equal(t, 2, res.Paging.PrevPage)
}

func TestTimelineDefaultsAndCaps(t *testing.T) {
	svc := NewService(&fakeRepo{rows: makeRows(120)})
	ctx := context.Background()

	res, err := svc.Timeline(ctx, TimelineFilters{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 20)
	require.Equal(t, 1, res.Paging.Page)

	res, err = svc.Timeline(ctx, TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Len(t, res.Rows, 50)
	require.Equal(t, 50, res.Paging.PageSize)
}

func TestExporterCSV(t *testing.T) {
	exporter := NewExporter(nil)
	rows := []TimelineRow{{
		At:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Actor:    "system",
		Action:   "USER_DEACTIVATE",
		Entity:   "users",
		EntityID: "7",
		Meta:     `{"reason":"desligamento"}`,
	}}

	out, err := exporter.WriteCSV(rows)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "at,actor,action,entity,entity_id,meta", lines[0])
	require.Contains(t, lines[1], "USER_DEACTIVATE")
	require.Contains(t, lines[1], "2026-08-01T12:00:00Z")
}

func TestExporterPDFUnavailable(t *testing.T) {
	exporter := NewExporter(nil)
	_, err := exporter.RenderPDF(context.Background(), ViewModel{})
	require.ErrorIs(t, err, ErrPDFUnavailable)
}
