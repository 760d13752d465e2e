package plans

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/conformia/conformia/internal/platform/httpx"
	"github.com/conformia/conformia/internal/rbac"
	"github.com/conformia/conformia/internal/shared"
	"github.com/conformia/conformia/internal/workflow"
)

// Handler exposes the action plan workflow endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validate, rbac: rbac}
}

// MountRoutes registers action plan routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResourceObligations, rbac.ActionRead))
		r.Get("/{id}", h.get)
		r.Get("/{id}/history", h.history)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResourceObligations, rbac.ActionCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResourceObligations, rbac.ActionUpdate))
		r.Post("/{id}/submit", h.submit)
	})
	r.Post("/{id}/manager-decision", h.decideGestor)
	r.Post("/{id}/acr-decision", h.decideACR)
}

// MountAssignmentRoutes registers the per-assignment plan listing.
func (h *Handler) MountAssignmentRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResourceObligations, rbac.ActionRead))
		r.Get("/{id}/plans", h.listByAssignment)
	})
}

type createPlanRequest struct {
	AssignmentID string  `json:"assignment_id" validate:"required,uuid4"`
	What         string  `json:"what" validate:"required"`
	Why          string  `json:"why" validate:"required"`
	Where        string  `json:"where"`
	Who          string  `json:"who" validate:"required"`
	How          string  `json:"how" validate:"required"`
	Deadline     string  `json:"deadline" validate:"required"`
	Cost         float64 `json:"cost" validate:"gte=0"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	assignmentID, err := uuid.Parse(req.AssignmentID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "assignment_id must be a UUID")
		return
	}
	deadline, err := time.Parse("2006-01-02", req.Deadline)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "deadline must be YYYY-MM-DD")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	plan, err := h.service.Create(r.Context(), actor, Plan{
		AssignmentID: assignmentID,
		What:         req.What,
		Why:          req.Why,
		Where:        req.Where,
		Who:          req.Who,
		How:          req.How,
		Deadline:     deadline,
		Cost:         req.Cost,
	})
	if err != nil {
		h.logger.Error("create plan", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, plan)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a UUID")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	status, err := h.service.Submit(r.Context(), actor, id)
	if err != nil {
		h.logger.Error("submit plan", slog.Any("error", err), slog.String("id", id.String()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": status})
}

type decisionRequest struct {
	Approved bool   `json:"approved"`
	Notes    string `json:"notes"`
	Final    string `json:"final"`
}

func (h *Handler) decideGestor(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a UUID")
		return
	}
	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	status, err := h.service.DecideGestor(r.Context(), actor, id, req.Approved, req.Notes)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": status})
}

func (h *Handler) decideACR(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a UUID")
		return
	}
	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	status, err := h.service.DecideACR(r.Context(), actor, id, req.Approved, req.Notes, workflow.FinalOutcome(req.Final))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": status})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a UUID")
		return
	}
	plan, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}

func (h *Handler) listByAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a UUID")
		return
	}
	items, err := h.service.ListByAssignment(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a UUID")
		return
	}
	entries, err := h.service.History(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": entries})
}
