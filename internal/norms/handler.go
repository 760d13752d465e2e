package norms

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/conformia/conformia/internal/obligations"
	"github.com/conformia/conformia/internal/platform/httpx"
	"github.com/conformia/conformia/internal/rbac"
	"github.com/conformia/conformia/internal/shared"
)

// Handler exposes norm endpoints.
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

// MountRoutes registers norm routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResourceNorms, rbac.ActionRead))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/obligations", h.listObligations)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResourceNorms, rbac.ActionCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResourceNorms, rbac.ActionUpdate))
		r.Post("/{id}/obligations", h.registerObligations)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ResourceNorms, rbac.ActionDelete))
		r.Delete("/{id}", h.deactivate)
	})
}

type createNormRequest struct {
	Code        string `json:"code" validate:"required"`
	Kind        string `json:"kind" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	PublishedAt string `json:"published_at" validate:"required"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createNormRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	publishedAt, err := time.Parse("2006-01-02", req.PublishedAt)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "published_at must be YYYY-MM-DD")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	norm, err := h.service.Create(r.Context(), actor, CreateInput{
		Code:        req.Code,
		Kind:        Kind(req.Kind),
		Title:       req.Title,
		Description: req.Description,
		PublishedAt: publishedAt,
	})
	if err != nil {
		h.logger.Error("create norm", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, norm)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	items, total, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list norms", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a UUID")
		return
	}
	norm, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, norm)
}

type registerObligationRequest struct {
	Tipo        string  `json:"tipo" validate:"required"`
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description"`
	DueDate     string  `json:"due_date"`
	Recurrence  string  `json:"recurrence"`
	Priority    string  `json:"priority"`
	UnitIDs     []int64 `json:"unit_ids" validate:"required,min=1"`
}

func (h *Handler) registerObligations(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a UUID")
		return
	}
	var reqs []registerObligationRequest
	if err := httpx.DecodeJSON(r, &reqs); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	inputs := make([]ObligationInput, 0, len(reqs))
	for i, req := range reqs {
		if err := h.validate.Struct(req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fmt.Sprintf("item %d: %v", i, err))
			return
		}
		var dueDate time.Time
		if req.DueDate != "" {
			dueDate, err = time.Parse("2006-01-02", req.DueDate)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fmt.Sprintf("item %d: due_date must be YYYY-MM-DD", i))
				return
			}
		}
		priority := obligations.Priority(req.Priority)
		if req.Priority == "" {
			priority = obligations.PriorityMedia
		}
		inputs = append(inputs, ObligationInput{
			Tipo:        obligations.Tipo(req.Tipo),
			Title:       req.Title,
			Description: req.Description,
			DueDate:     dueDate,
			Recurrence:  req.Recurrence,
			Priority:    priority,
			UnitIDs:     req.UnitIDs,
		})
	}
	actor, _ := shared.ActorFromContext(r.Context())
	created, err := h.service.RegisterObligations(r.Context(), actor, id, inputs)
	if err != nil {
		h.logger.Error("register obligations", slog.Any("error", err), slog.String("norm_id", id.String()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"items": created})
}

func (h *Handler) listObligations(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a UUID")
		return
	}
	items, err := h.service.Obligations(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a UUID")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.Deactivate(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "inactive"})
}
