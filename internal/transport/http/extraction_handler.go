package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/gunturawaludins/mkbd-new/internal/errors"
	"github.com/gunturawaludins/mkbd-new/internal/middleware"
	"github.com/gunturawaludins/mkbd-new/internal/operations"
	"github.com/gunturawaludins/mkbd-new/internal/services"
)

var jobStatuses = []string{
	string(operations.JobStatusPending),
	string(operations.JobStatusRunning),
	string(operations.JobStatusCompleted),
	string(operations.JobStatusFailed),
}

// ExtractionHandler handles workbook uploads and job queries.
type ExtractionHandler struct {
	service ExtractionService
	errors  *apierrors.ErrorHandler
	params  *middleware.QueryParamValidator
	logger  *slog.Logger
}

// NewExtractionHandler creates an ExtractionHandler.
func NewExtractionHandler(service ExtractionService, errors *apierrors.ErrorHandler, logger *slog.Logger) *ExtractionHandler {
	return &ExtractionHandler{
		service: service,
		errors:  errors,
		params:  middleware.NewQueryParamValidator(errors),
		logger:  logger.With(slog.String("handler", "extractions")),
	}
}

// Routes mounts the handler.
func (h *ExtractionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	return r
}

// Create handles POST /api/v1/extractions. A synchronous run answers 200
// with the result; a failed run answers 422 with the same body so clients
// still see warnings and the job. async=true answers 202 with the job.
func (h *ExtractionHandler) Create(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(r)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	persist, ok := h.params.ValidateBool(w, r, "persist", false)
	if !ok {
		return
	}
	async, ok := h.params.ValidateBool(w, r, "async", false)
	if !ok {
		return
	}

	out, err := h.service.Extract(r.Context(), services.ExtractRequest{
		FileName: up.Name,
		Data:     up.Data,
		Persist:  persist,
		Async:    async,
	})
	if err != nil {
		h.errors.HandleError(w, r, apierrors.WithCause(apierrors.ErrExtractionFailed, err))
		return
	}

	switch {
	case async:
		w.Header().Set("Location", "/api/v1/extractions/"+out.Job.ID)
		render.Status(r, http.StatusAccepted)
	case out.Result != nil && !out.Result.Success:
		render.Status(r, http.StatusUnprocessableEntity)
	}
	render.JSON(w, r, out)
}

// List handles GET /api/v1/extractions.
func (h *ExtractionHandler) List(w http.ResponseWriter, r *http.Request) {
	status, ok := h.params.ValidateEnum(w, r, "status", jobStatuses, "")
	if !ok {
		return
	}
	limit, ok := h.params.ValidateInt(w, r, "limit", 1, 500, 50)
	if !ok {
		return
	}

	jobs, err := h.service.List(r.Context(), operations.JobFilter{
		Status: operations.JobStatus(status),
		Limit:  limit,
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"jobs": jobs, "count": len(jobs)})
}

// Get handles GET /api/v1/extractions/{id}.
func (h *ExtractionHandler) Get(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, out)
}
