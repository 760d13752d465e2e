package report

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/conformia/conformia/internal/audit"
)

// Renderer produces the HTML documents handed to Gotenberg. Numbers are
// formatted for the pt-BR locale because reports go to Brazilian auditors.
type Renderer struct {
	printer *message.Printer
}

// NewRenderer builds a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{printer: message.NewPrinter(language.BrazilianPortuguese)}
}

// ComplianceHTML renders the compliance summary document.
func (r *Renderer) ComplianceHTML(summary Summary) string {
	var b strings.Builder
	b.WriteString("<html><head><meta charset=\"utf-8\"><title>Resumo de Conformidade</title>")
	b.WriteString("<style>body{font-family:sans-serif}table{border-collapse:collapse;width:100%}td,th{border:1px solid #999;padding:4px 8px;text-align:left}</style>")
	b.WriteString("</head><body>")
	b.WriteString("<h1>Resumo de Conformidade</h1>")
	fmt.Fprintf(&b, "<p>Gerado em %s</p>", escape(formatTimestamp(summary.GeneratedAt)))

	b.WriteString("<h2>Por Unidade</h2><table><tr><th>Unidade</th><th>Total</th><th>Conformidade</th></tr>")
	for _, unit := range summary.Units {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td></tr>",
			escape(unit.UnitName),
			r.printer.Sprintf("%d", unit.Total),
			r.printer.Sprintf("%.1f%%", unit.ConformeRatio*100))
	}
	b.WriteString("</table>")

	b.WriteString("<h2>Por Norma</h2><table><tr><th>Norma</th><th>Total</th><th>Conformidade</th></tr>")
	for _, norm := range summary.Norms {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td></tr>",
			escape(norm.NormCode),
			r.printer.Sprintf("%d", norm.Total),
			r.printer.Sprintf("%.1f%%", norm.ConformeRatio*100))
	}
	b.WriteString("</table></body></html>")
	return b.String()
}

// AuditTimelineHTML renders the audit timeline document.
func (r *Renderer) AuditTimelineHTML(vm audit.ViewModel) string {
	var b strings.Builder
	b.WriteString("<html><head><meta charset=\"utf-8\"><title>Trilha de Auditoria</title>")
	b.WriteString("<style>body{font-family:sans-serif}table{border-collapse:collapse;width:100%}td,th{border:1px solid #999;padding:4px 8px;text-align:left}</style>")
	b.WriteString("</head><body>")
	b.WriteString("<h1>Trilha de Auditoria</h1>")
	if !vm.Filters.From.IsZero() || !vm.Filters.To.IsZero() {
		fmt.Fprintf(&b, "<p>Per&iacute;odo: %s a %s</p>",
			escape(vm.Filters.From.Format("02/01/2006")),
			escape(vm.Filters.To.Format("02/01/2006")))
	}
	b.WriteString("<table><tr><th>Quando</th><th>Quem</th><th>A&ccedil;&atilde;o</th><th>Entidade</th></tr>")
	for _, row := range vm.Rows {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s %s</td></tr>",
			escape(formatTimestamp(row.At)),
			escape(row.Actor),
			escape(row.Action),
			escape(row.Entity),
			escape(row.EntityID))
	}
	b.WriteString("</table></body></html>")
	return b.String()
}

// PDFBridge adapts the Gotenberg client and Renderer to the audit exporter.
type PDFBridge struct {
	client   *Client
	renderer *Renderer
}

// NewPDFBridge builds a PDFBridge.
func NewPDFBridge(client *Client, renderer *Renderer) *PDFBridge {
	return &PDFBridge{client: client, renderer: renderer}
}

// RenderAuditTimeline turns the timeline view model into a PDF document.
func (p *PDFBridge) RenderAuditTimeline(ctx context.Context, vm audit.ViewModel) ([]byte, error) {
	if p == nil || p.client == nil {
		return nil, audit.ErrPDFUnavailable
	}
	return p.client.RenderHTML(ctx, p.renderer.AuditTimelineHTML(vm))
}

var _ audit.PDFRenderer = (*PDFBridge)(nil)
