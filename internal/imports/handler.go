package imports

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atrium-pm/atrium/internal/platform/httpx"
	"github.com/atrium-pm/atrium/internal/shared"
)

const maxUploadBytes = 16 << 20

// Handler exposes the import upload and polling endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches import routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/rooms", h.uploadHandler(KindRooms))
	r.Post("/leases", h.uploadHandler(KindLeases))
	r.Get("/batches", h.listBatches)
	r.Get("/batches/{id}", h.getBatch)
}

func (h *Handler) uploadHandler(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		defer file.Close()
		actor, _ := shared.ActorFromContext(r.Context())

		batch, err := h.service.CreateBatch(r.Context(), kind, header.Filename, file, actor.ID)
		if err != nil {
			h.logger.Error("create import batch", slog.String("kind", kind), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, batch)
	}
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	batch, err := h.service.Batch(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	batches, err := h.service.Batches(r.Context(), limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batches)
}
