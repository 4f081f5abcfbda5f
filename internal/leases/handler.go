package leases

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atrium-pm/atrium/internal/platform/httpx"
)

// Handler exposes lease endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes attaches lease routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/units/{id}/leases", h.listForUnit)
	r.Post("/leases", h.create)
}

func (h *Handler) listForUnit(w http.ResponseWriter, r *http.Request) {
	unitID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	leases, err := h.service.LeasesForUnit(r.Context(), unitID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, leases)
}

type createLeaseRequest struct {
	UnitID        int64  `json:"unit_id" validate:"required,gt=0"`
	TenantName    string `json:"tenant_name" validate:"required"`
	TenantMobile  string `json:"tenant_mobile"`
	StartDate     string `json:"start_date" validate:"required"`
	EndDate       string `json:"end_date"`
	RentAmount    string `json:"rent_amount"`
	DepositAmount string `json:"deposit_amount"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createLeaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var end *time.Time
	if req.EndDate != "" {
		parsed, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		end = &parsed
	}

	lease, err := h.service.CreateLease(r.Context(), CreateLeaseParams{
		UnitID:        req.UnitID,
		TenantName:    req.TenantName,
		TenantMobile:  req.TenantMobile,
		StartDate:     start,
		EndDate:       end,
		RentAmount:    req.RentAmount,
		DepositAmount: req.DepositAmount,
	})
	if err != nil {
		h.logger.Error("create lease", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, lease)
}
