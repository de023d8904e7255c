package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
	apierrors "github.com/gunturawaludins/mkbd-new/internal/errors"
	"github.com/gunturawaludins/mkbd-new/internal/exporter"
	"github.com/gunturawaludins/mkbd-new/internal/middleware"
	"github.com/gunturawaludins/mkbd-new/internal/services"
	"github.com/gunturawaludins/mkbd-new/internal/store"
)

// AppendRecordsRequest is the body of POST /tables/{name}/records.
type AppendRecordsRequest struct {
	Records []store.Record `json:"records" validate:"required,min=1,max=10000"`
}

// ApplyFormulaRequest is the body of POST /tables/{name}/formula.
type ApplyFormulaRequest struct {
	Formula string `json:"formula" validate:"required,max=2000"`
	Target  string `json:"targetColumn" validate:"required,max=128"`
	Save    bool   `json:"save"`
}

// TableHandler handles stored table requests.
type TableHandler struct {
	service   TableService
	errors    *apierrors.ErrorHandler
	validator *middleware.Validator
	params    *middleware.QueryParamValidator
	logger    *slog.Logger
}

// NewTableHandler creates a TableHandler.
func NewTableHandler(service TableService, validator *middleware.Validator, errors *apierrors.ErrorHandler, logger *slog.Logger) *TableHandler {
	return &TableHandler{
		service:   service,
		errors:    errors,
		validator: validator,
		params:    middleware.NewQueryParamValidator(errors),
		logger:    logger.With(slog.String("handler", "tables")),
	}
}

// Routes mounts the handler.
func (h *TableHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/stats", h.Stats)
	r.Route("/{name}", func(r chi.Router) {
		r.Use(h.validName)
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Post("/records", h.Append)
		r.Delete("/records", h.Clear)
		r.Post("/formula", h.ApplyFormula)
	})
	return r
}

func (h *TableHandler) validName(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.validator.ValidateVar("name", chi.URLParam(r, "name"), "tablename"); err != nil {
			h.errors.HandleError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// List handles GET /api/v1/tables.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.service.List(r.Context())
	if err != nil {
		h.errors.HandleError(w, r, apierrors.WithCause(apierrors.ErrStorage, err))
		return
	}
	render.JSON(w, r, map[string]interface{}{"tables": tables, "count": len(tables)})
}

// Stats handles GET /api/v1/tables/stats.
func (h *TableHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.errors.HandleError(w, r, apierrors.WithCause(apierrors.ErrStorage, err))
		return
	}
	render.JSON(w, r, stats)
}

// Get handles GET /api/v1/tables/{name}. format=csv or format=xlsx
// downloads the table instead of returning JSON.
func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	format, ok := h.params.ValidateEnum(w, r, "format",
		[]string{string(exporter.FormatJSON), string(exporter.FormatCSV), string(exporter.FormatXLSX)},
		string(exporter.FormatJSON))
	if !ok {
		return
	}

	data, err := h.service.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	switch exporter.Format(format) {
	case exporter.FormatCSV:
		h.download(w, r, data, "text/csv; charset=utf-8", "csv", func(s dataprocessing.ProcessedSheet) error {
			return exporter.WriteSheetTo(w, s)
		})
	case exporter.FormatXLSX:
		h.download(w, r, data, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx", func(s dataprocessing.ProcessedSheet) error {
			return exporter.WriteXLSX(w, []dataprocessing.ProcessedSheet{s})
		})
	default:
		render.JSON(w, r, data)
	}
}

func (h *TableHandler) download(w http.ResponseWriter, r *http.Request, data *services.TableData, contentType, ext string, write func(dataprocessing.ProcessedSheet) error) {
	sheet := dataprocessing.ProcessedSheet{
		SheetName: data.Table.Name,
		TableName: data.Table.Name,
		Headers:   data.Table.Headers,
		Rows:      store.Rows(data.Records),
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, data.Table.Name, ext))
	if err := write(sheet); err != nil {
		// headers are already sent
		h.logger.ErrorContext(r.Context(), "table download failed",
			slog.String("table", data.Table.Name),
			slog.String("error", err.Error()))
	}
}

// Append handles POST /api/v1/tables/{name}/records.
func (h *TableHandler) Append(w http.ResponseWriter, r *http.Request) {
	var req AppendRecordsRequest
	if !h.validator.DecodeJSON(w, r, &req) {
		return
	}
	n, err := h.service.Append(r.Context(), chi.URLParam(r, "name"), req.Records)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]int{"appended": n})
}

// Clear handles DELETE /api/v1/tables/{name}/records.
func (h *TableHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context(), chi.URLParam(r, "name")); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/tables/{name}.
func (h *TableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyFormula handles POST /api/v1/tables/{name}/formula.
func (h *TableHandler) ApplyFormula(w http.ResponseWriter, r *http.Request) {
	var req ApplyFormulaRequest
	if !h.validator.DecodeJSON(w, r, &req) {
		return
	}
	res, err := h.service.ApplyFormula(r.Context(), chi.URLParam(r, "name"), services.ApplyFormulaRequest{
		Formula: req.Formula,
		Target:  req.Target,
		Save:    req.Save,
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}
