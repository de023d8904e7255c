package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
	apierrors "github.com/gunturawaludins/mkbd-new/internal/errors"
	"github.com/gunturawaludins/mkbd-new/internal/middleware"
	"github.com/gunturawaludins/mkbd-new/internal/services"
)

// EvaluateRequest is the body of POST /formulas/evaluate.
type EvaluateRequest struct {
	Formula string                        `json:"formula" validate:"required,max=2000"`
	Row     dataprocessing.Row            `json:"row"`
	Context map[string]dataprocessing.Row `json:"context"`
}

// TestFormulaRequest is the body of POST /formulas/test.
type TestFormulaRequest struct {
	Formula string             `json:"formula" validate:"required,max=2000"`
	Sample  dataprocessing.Row `json:"sampleData"`
}

// FormulaHandler handles ad-hoc formula evaluation.
type FormulaHandler struct {
	service   FormulaService
	errors    *apierrors.ErrorHandler
	validator *middleware.Validator
	logger    *slog.Logger
}

// NewFormulaHandler creates a FormulaHandler.
func NewFormulaHandler(service FormulaService, validator *middleware.Validator, errors *apierrors.ErrorHandler, logger *slog.Logger) *FormulaHandler {
	return &FormulaHandler{
		service:   service,
		errors:    errors,
		validator: validator,
		logger:    logger.With(slog.String("handler", "formulas")),
	}
}

// Routes mounts the handler.
func (h *FormulaHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/evaluate", h.Evaluate)
	r.Post("/test", h.Test)
	return r
}

// Evaluate handles POST /api/v1/formulas/evaluate. Rejected formulas answer
// 422 with the evaluator's message.
func (h *FormulaHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !h.validator.DecodeJSON(w, r, &req) {
		return
	}
	res, err := h.service.Evaluate(r.Context(), req.Formula, req.Row, req.Context)
	if err != nil {
		var fe *services.FormulaError
		if errors.As(err, &fe) {
			h.errors.HandleError(w, r, apierrors.WithCause(apierrors.ErrInvalidFormula, fe))
			return
		}
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

// Test handles POST /api/v1/formulas/test. The preview result reports
// failures itself, so it is always 200.
func (h *FormulaHandler) Test(w http.ResponseWriter, r *http.Request) {
	var req TestFormulaRequest
	if !h.validator.DecodeJSON(w, r, &req) {
		return
	}
	res, err := h.service.Test(r.Context(), req.Formula, req.Sample)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}
