package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"time"
)

// ErrPDFUnavailable is returned when no PDF renderer is configured.
var ErrPDFUnavailable = errors.New("audit: pdf renderer unavailable")

// PDFRenderer turns a timeline view model into a PDF document.
type PDFRenderer interface {
	RenderAuditTimeline(ctx context.Context, vm ViewModel) ([]byte, error)
}

// Exporter serialises timeline rows for download.
type Exporter struct {
	pdf PDFRenderer
}

// NewExporter builds an Exporter. The PDF renderer may be nil.
func NewExporter(pdf PDFRenderer) *Exporter {
	return &Exporter{pdf: pdf}
}

// WriteCSV encodes rows as a CSV document.
func (e *Exporter) WriteCSV(rows []TimelineRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"at", "actor", "action", "entity", "entity_id", "meta"}); err != nil {
		return nil, err
	}
	for _, row := range rows {
		record := []string{
			row.At.UTC().Format(time.RFC3339),
			row.Actor,
			row.Action,
			row.Entity,
			row.EntityID,
			row.Meta,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderPDF delegates to the configured renderer.
func (e *Exporter) RenderPDF(ctx context.Context, vm ViewModel) ([]byte, error) {
	if e.pdf == nil {
		return nil, ErrPDFUnavailable
	}
	return e.pdf.RenderAuditTimeline(ctx, vm)
}
