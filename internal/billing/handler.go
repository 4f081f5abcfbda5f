package billing

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atrium-pm/atrium/internal/platform/httpx"
	"github.com/atrium-pm/atrium/internal/shared"
)

// Handler exposes bill generation and lifecycle endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes attaches billing routes. requireRole builds the role gate for
// each group: clerks generate and submit, finance approves and issues, only
// admins void.
func (h *Handler) MountRoutes(r chi.Router, requireRole func(role string) func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(requireRole(shared.RoleClerk))
		r.Get("/bills", h.listBills)
		r.Get("/bills/{id}", h.getBill)
		r.Get("/bills/{id}/lines", h.listLines)
		r.Get("/bills/{id}/export", h.exportBill)
		r.Post("/generate", h.generate)
		r.Post("/generate-batch", h.generateBatch)
		r.Post("/bills/{id}/submit", h.transitionHandler(h.service.Submit))
	})
	r.Group(func(r chi.Router) {
		r.Use(requireRole(shared.RoleFinance))
		r.Post("/bills/{id}/approve", h.transitionHandler(h.service.Approve))
		r.Post("/bills/{id}/issue", h.transitionHandler(h.service.Issue))
	})
	r.Group(func(r chi.Router) {
		r.Use(requireRole(shared.RoleAdmin))
		r.Post("/bills/{id}/void", h.transitionHandler(h.service.Void))
	})
}

type generateRequest struct {
	UnitID     int64  `json:"unit_id" validate:"required,gt=0"`
	TargetDate string `json:"target_date" validate:"required"`
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
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

	bill, created, err := h.service.GenerateBillForUnit(r.Context(), req.UnitID, target, actor.ID)
	if err != nil {
		h.logger.Error("generate bill", slog.Int64("unit_id", req.UnitID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, map[string]any{"bill": bill, "created": created})
}

type generateBatchRequest struct {
	CompanyID  int64  `json:"company_id" validate:"required,gt=0"`
	TargetDate string `json:"target_date" validate:"required"`
}

func (h *Handler) generateBatch(w http.ResponseWriter, r *http.Request) {
	var req generateBatchRequest
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

	bills, err := h.service.GenerateBatchForCompany(r.Context(), req.CompanyID, target, actor.ID)
	if err != nil {
		h.logger.Error("generate batch", slog.Int64("company_id", req.CompanyID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bills": bills, "count": len(bills)})
}

func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := BillFilters{Status: q.Get("status")}
	filters.CompanyID, _ = strconv.ParseInt(q.Get("company_id"), 10, 64)
	filters.UnitID, _ = strconv.ParseInt(q.Get("unit_id"), 10, 64)
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filters.Limit = limit
	}
	bills, err := h.service.Bills(r.Context(), filters)
	if err != nil {
		h.logger.Error("list bills", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bills)
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	bill, err := h.service.Bill(r.Context(), h.billID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) listLines(w http.ResponseWriter, r *http.Request) {
	lines, err := h.service.Lines(r.Context(), h.billID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lines)
}

func (h *Handler) transitionHandler(fn func(ctx context.Context, billID, actorID int64) (Bill, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := shared.ActorFromContext(r.Context())
		bill, err := fn(r.Context(), h.billID(r), actor.ID)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, bill)
	}
}

func (h *Handler) billID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}
