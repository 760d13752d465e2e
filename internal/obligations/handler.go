package obligations

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
)

// Handler exposes obligation endpoints.
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

// MountRoutes registers obligation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResourceObligations, rbac.ActionRead))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/children", h.listChildren)
		r.Get("/{id}/assignments", h.listAssignments)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResourceObligations, rbac.ActionCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResourceObligations, rbac.ActionUpdate))
		r.Post("/{id}/decompose", h.decompose)
		r.Post("/{id}/aggregate", h.aggregate)
	})
}

// MountAssignmentRoutes registers the assignment lookup route. Assignments
// get their own top level path because evidence and plans hang off them.
func (h *Handler) MountAssignmentRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResourceObligations, rbac.ActionRead))
		r.Get("/{id}", h.getAssignment)
	})
}

type createObligationRequest struct {
	NormID      string  `json:"norm_id" validate:"required,uuid4"`
	Tipo        string  `json:"tipo" validate:"required,oneof=recomendacao determinacao"`
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description"`
	DueDate     string  `json:"due_date"`
	Recurrence  string  `json:"recurrence"`
	Priority    string  `json:"priority" validate:"omitempty,oneof=baixa media alta"`
	UnitIDs     []int64 `json:"unit_ids" validate:"required,min=1"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createObligationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	normID, err := uuid.Parse(req.NormID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "norm_id must be a UUID")
		return
	}
	var dueDate time.Time
	if req.DueDate != "" {
		dueDate, err = time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "due_date must be YYYY-MM-DD")
			return
		}
	}
	actor, _ := shared.ActorFromContext(r.Context())
	obligation, assignments, err := h.service.Create(r.Context(), actor, CreateInput{
		NormID:      normID,
		Tipo:        Tipo(req.Tipo),
		Title:       req.Title,
		Description: req.Description,
		DueDate:     dueDate,
		Recurrence:  req.Recurrence,
		Priority:    Priority(req.Priority),
		UnitIDs:     req.UnitIDs,
	})
	if err != nil {
		h.logger.Error("create obligation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"obligation": obligation, "assignments": assignments})
}

type decomposeRequest struct {
	UnitIDs []int64 `json:"unit_ids" validate:"required,min=1"`
	Notes   string  `json:"notes"`
}

func (h *Handler) decompose(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a UUID")
		return
	}
	var req decomposeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	childIDs, err := h.service.Decompose(r.Context(), actor, id, req.UnitIDs, req.Notes)
	if err != nil {
		h.logger.Error("decompose obligation", slog.Any("error", err), slog.String("id", id.String()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"children": childIDs})
}

func (h *Handler) aggregate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a UUID")
		return
	}
	aggregate, err := h.service.AggregateParent(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"aggregate": aggregate})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	normID, err := uuid.Parse(r.URL.Query().Get("norm_id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "norm_id must be a UUID")
		return
	}
	items, err := h.service.ListByNorm(r.Context(), normID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a UUID")
		return
	}
	obligation, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, obligation)
}

func (h *Handler) listChildren(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a UUID")
		return
	}
	items, err := h.service.ListChildren(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) getAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a UUID")
		return
	}
	assignment, err := h.service.GetAssignment(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, assignment)
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a UUID")
		return
	}
	items, err := h.service.ListAssignments(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}
