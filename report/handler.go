package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/conformia/conformia/internal/platform/httpx"
	"github.com/conformia/conformia/internal/rbac"
	"github.com/conformia/conformia/internal/shared"
)

// Handler manages report endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *SummaryService
	renderer  *Renderer
	client    *Client
	evaluator *rbac.Evaluator
}

// NewHandler creates a report handler. The Gotenberg client may be nil, in
// which case PDF downloads answer 501.
func NewHandler(logger *slog.Logger, service *SummaryService, renderer *Renderer, client *Client, evaluator *rbac.Evaluator) *Handler {
	return &Handler{logger: logger, service: service, renderer: renderer, client: client, evaluator: evaluator}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
	r.Get("/compliance", h.compliance)
	r.Get("/compliance.csv", h.complianceCSV)
	r.Get("/compliance.pdf", h.compliancePDF)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return
	}
	if err := h.client.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) compliance(w http.ResponseWriter, r *http.Request) {
	if err := h.authorize(r, rbac.ActionRead); err != nil {
		httpx.RespondError(w, err)
		return
	}
	summary, err := h.service.Build(r.Context())
	if err != nil {
		h.logger.Error("build compliance summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) complianceCSV(w http.ResponseWriter, r *http.Request) {
	if err := h.authorize(r, rbac.ActionExport); err != nil {
		httpx.RespondError(w, err)
		return
	}
	summary, err := h.service.Build(r.Context())
	if err != nil {
		h.logger.Error("build compliance summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	_ = cw.Write([]string{"scope", "id", "label", "total", "conforme_ratio"})
	for _, unit := range summary.Units {
		_ = cw.Write([]string{"unit", strconv.FormatInt(unit.UnitID, 10), unit.UnitName, strconv.Itoa(unit.Total), fmt.Sprintf("%.4f", unit.ConformeRatio)})
	}
	for _, norm := range summary.Norms {
		_ = cw.Write([]string{"norm", norm.NormID, norm.NormCode, strconv.Itoa(norm.Total), fmt.Sprintf("%.4f", norm.ConformeRatio)})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Error("encode csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"compliance-summary.csv\"")
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) compliancePDF(w http.ResponseWriter, r *http.Request) {
	if h.client == nil || h.renderer == nil {
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return
	}
	if err := h.authorize(r, rbac.ActionExport); err != nil {
		httpx.RespondError(w, err)
		return
	}
	summary, err := h.service.Build(r.Context())
	if err != nil {
		h.logger.Error("build compliance summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	pdf, err := h.client.RenderHTML(r.Context(), h.renderer.ComplianceHTML(summary))
	if err != nil {
		h.logger.Error("render compliance pdf", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=\"compliance-summary.pdf\"")
	_, _ = w.Write(pdf)
}

func (h *Handler) authorize(r *http.Request, action string) error {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		return shared.ErrUnauthorized
	}
	if !h.evaluator.Authorize(rbac.Role(actor.Role), rbac.ResourceObligations, action) {
		return shared.ErrUnauthorized
	}
	return nil
}

func escape(s string) string {
	return html.EscapeString(s)
}

func formatTimestamp(t time.Time) string {
	return t.Format("02/01/2006 15:04 MST")
}
