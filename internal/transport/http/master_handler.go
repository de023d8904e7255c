package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/gunturawaludins/mkbd-new/internal/errors"
)

// MasterHandler handles issuer master data requests.
type MasterHandler struct {
	service MasterService
	errors  *apierrors.ErrorHandler
	logger  *slog.Logger
}

// NewMasterHandler creates a MasterHandler.
func NewMasterHandler(service MasterService, errors *apierrors.ErrorHandler, logger *slog.Logger) *MasterHandler {
	return &MasterHandler{
		service: service,
		errors:  errors,
		logger:  logger.With(slog.String("handler", "master")),
	}
}

// Routes mounts the handler.
func (h *MasterHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Upload)
	r.Delete("/", h.Clear)
	r.Post("/default", h.LoadDefault)
	r.Get("/stats", h.Stats)
	r.Get("/{code}", h.Lookup)
	return r
}

// Upload handles POST /api/v1/master.
func (h *MasterHandler) Upload(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(r)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	res, err := h.service.Upload(r.Context(), up.Name, up.Data)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

// LoadDefault handles POST /api/v1/master/default.
func (h *MasterHandler) LoadDefault(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.LoadDefault(r.Context())
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

// Stats handles GET /api/v1/master/stats.
func (h *MasterHandler) Stats(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Stats(r.Context()))
}

// Lookup handles GET /api/v1/master/{code}.
func (h *MasterHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.Lookup(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, entry)
}

// Clear handles DELETE /api/v1/master.
func (h *MasterHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.service.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
