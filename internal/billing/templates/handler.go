package templates

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atrium-pm/atrium/internal/platform/httpx"
	"github.com/atrium-pm/atrium/internal/shared"
)

// Handler exposes template and charge item endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes attaches template routes. Reads and instantiation are open to
// clerks; catalog and template management is finance work.
func (h *Handler) MountRoutes(r chi.Router, requireRole func(role string) func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(requireRole(shared.RoleClerk))
		r.Get("/templates", h.list)
		r.Get("/templates/{id}", h.get)
		r.Get("/charge-items", h.listChargeItems)
		r.Post("/templates/{id}/instantiate", h.instantiate)
	})
	r.Group(func(r chi.Router) {
		r.Use(requireRole(shared.RoleFinance))
		r.Post("/templates", h.create)
		r.Put("/templates/{id}", h.update)
		r.Delete("/templates/{id}", h.delete)
		r.Post("/charge-items", h.createChargeItem)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	templates, err := h.service.Templates(r.Context(), activeOnly)
	if err != nil {
		h.logger.Error("list templates", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, templates)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.service.Template(r.Context(), pathID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tpl)
}

type templateLineRequest struct {
	ChargeItemID int64  `json:"charge_item_id" validate:"required,gt=0"`
	Required     bool   `json:"required"`
	SortOrder    int    `json:"sort_order"`
	Note         string `json:"note"`
}

type templateRequest struct {
	Name        string                `json:"name" validate:"required"`
	Description string                `json:"description"`
	Active      bool                  `json:"active"`
	Lines       []templateLineRequest `json:"lines" validate:"dive"`
}

func (r templateRequest) toInput() TemplateInput {
	in := TemplateInput{Name: r.Name, Description: r.Description, Active: r.Active}
	for _, line := range r.Lines {
		in.Lines = append(in.Lines, TemplateLineInput{
			ChargeItemID: line.ChargeItemID,
			Required:     line.Required,
			SortOrder:    line.SortOrder,
			Note:         line.Note,
		})
	}
	return in
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	tpl, err := h.service.CreateTemplate(r.Context(), req.toInput())
	if err != nil {
		h.logger.Error("create template", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tpl)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	tpl, err := h.service.UpdateTemplate(r.Context(), pathID(r), req.toInput())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tpl)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTemplate(r.Context(), pathID(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type instantiateRequest struct {
	UnitID     int64  `json:"unit_id" validate:"required,gt=0"`
	TargetDate string `json:"target_date" validate:"required"`
}

func (h *Handler) instantiate(w http.ResponseWriter, r *http.Request) {
	var req instantiateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	target, err := time.Parse("2006-01-02", req.TargetDate)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())

	bill, err := h.service.Instantiate(r.Context(), pathID(r), req.UnitID, target, actor.ID)
	if err != nil {
		h.logger.Error("instantiate template", slog.Int64("unit_id", req.UnitID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bill)
}

func (h *Handler) listChargeItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ChargeItems(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

type chargeItemRequest struct {
	Code string `json:"code" validate:"required"`
	Name string `json:"name" validate:"required"`
}

func (h *Handler) createChargeItem(w http.ResponseWriter, r *http.Request) {
	var req chargeItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	item, err := h.service.CreateChargeItem(r.Context(), req.Code, req.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}
