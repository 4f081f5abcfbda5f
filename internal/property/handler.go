package property

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atrium-pm/atrium/internal/platform/httpx"
)

// Handler exposes read endpoints over the property hierarchy.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches property routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/companies", h.listCompanies)
	r.Get("/companies/{id}", h.getCompany)
	r.Get("/companies/{id}/communities", h.listCommunities)
	r.Get("/communities/{id}/buildings", h.listBuildings)
	r.Get("/buildings/{id}/units", h.listUnits)
	r.Get("/units/{id}", h.getUnit)
	r.Get("/units/{id}/hierarchy", h.getHierarchy)
}

func (h *Handler) listCompanies(w http.ResponseWriter, r *http.Request) {
	filters := ListFilters{Search: r.URL.Query().Get("search")}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		filters.Limit = limit
	}
	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil {
		filters.Offset = offset
	}
	companies, err := h.service.Companies(r.Context(), filters)
	if err != nil {
		h.logger.Error("list companies", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, companies)
}

func (h *Handler) getCompany(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	company, err := h.service.Company(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, company)
}

func (h *Handler) listCommunities(w http.ResponseWriter, r *http.Request) {
	communities, err := h.service.Communities(r.Context(), pathID(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, communities)
}

func (h *Handler) listBuildings(w http.ResponseWriter, r *http.Request) {
	buildings, err := h.service.Buildings(r.Context(), pathID(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, buildings)
}

func (h *Handler) listUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.service.Units(r.Context(), pathID(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, units)
}

func (h *Handler) getUnit(w http.ResponseWriter, r *http.Request) {
	unit, err := h.service.Unit(r.Context(), pathID(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, unit)
}

func (h *Handler) getHierarchy(w http.ResponseWriter, r *http.Request) {
	hierarchy, err := h.service.Hierarchy(r.Context(), pathID(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"unit":      hierarchy.Unit,
		"building":  hierarchy.Building,
		"community": hierarchy.Community,
		"company":   hierarchy.Company,
	})
}

func pathID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id
}
