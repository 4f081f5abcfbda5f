package meters

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/atrium-pm/atrium/internal/platform/httpx"
)

// Handler exposes meter endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes attaches meter routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/units/{id}/meters", h.listForUnit)
	r.Post("/meters", h.create)
	r.Get("/meters/{id}/readings", h.listReadings)
	r.Post("/meters/{id}/readings", h.recordReading)
}

func (h *Handler) listForUnit(w http.ResponseWriter, r *http.Request) {
	unitID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	meters, err := h.service.MetersForUnit(r.Context(), unitID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, meters)
}

type createMeterRequest struct {
	UnitID   int64  `json:"unit_id" validate:"required,gt=0"`
	Kind     string `json:"kind" validate:"required,oneof=cold_water hot_water elec"`
	Slot     int    `json:"slot"`
	SerialNo string `json:"serial_no"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createMeterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	meter, err := h.service.CreateMeter(r.Context(), req.UnitID, req.Kind, req.Slot, req.SerialNo)
	if err != nil {
		h.logger.Error("create meter", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, meter)
}

type recordReadingRequest struct {
	Period string `json:"period" validate:"required"`
	Value  string `json:"value" validate:"required"`
}

func (h *Handler) recordReading(w http.ResponseWriter, r *http.Request) {
	meterID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req recordReadingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	value, err := decimal.NewFromString(req.Value)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	reading, err := h.service.RecordReading(r.Context(), meterID, req.Period, value)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reading)
}

func (h *Handler) listReadings(w http.ResponseWriter, r *http.Request) {
	meterID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	readings, err := h.service.Readings(r.Context(), meterID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, readings)
}
