package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gunturawaludins/mkbd-new/internal/shared/testutil"
)

var errSheetMissing = stderrors.New("table not found")

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantCode   string
	}{
		{
			name:       "api error",
			err:        ErrInvalidFormula,
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeInvalidFormula,
			wantCode:   "INVALID_FORMULA",
		},
		{
			name:       "wrapped api error",
			err:        fmt.Errorf("evaluate: %w", ErrJobNotFound),
			wantStatus: http.StatusNotFound,
			wantType:   TypeJobNotFound,
			wantCode:   "JOB_NOT_FOUND",
		},
		{
			name:       "mapped sentinel",
			err:        fmt.Errorf("append vd59: %w", errSheetMissing),
			wantStatus: http.StatusNotFound,
			wantType:   TypeTableNotFound,
			wantCode:   "TABLE_NOT_FOUND",
		},
		{
			name:       "deadline",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "unknown error",
			err:        stderrors.New("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			h := NewErrorHandler(logger, false, Mapping{Target: errSheetMissing, API: ErrTableNotFound})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/tables/vd59", nil)
			rec := httptest.NewRecorder()
			h.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeProblem(t, rec)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, "/api/v1/tables/vd59", body["instance"])
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["error_code"])
			}
		})
	}
}

func TestErrorHandler_MappedSentinelCarriesCause(t *testing.T) {
	h := NewErrorHandler(nil, false, Mapping{Target: errSheetMissing, API: ErrTableNotFound})
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/tables/x", nil)

	problem := h.ErrorToProblem(fmt.Errorf("delete x: %w", errSheetMissing), req)
	assert.Equal(t, "delete x: table not found", problem.Extensions["details"])
	assert.Nil(t, ErrTableNotFound.Details)
}

func TestErrorHandler_NilErrorWritesNothing(t *testing.T) {
	h := NewErrorHandler(nil, false)
	rec := httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, 0, rec.Body.Len())
}

func TestErrorHandler_LogLevelFollowsStatus(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	h.HandleError(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/a", nil), ErrTableNotFound)
	h.HandleError(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/b", nil), ErrStorage)

	assert.Len(t, logs.Messages(slog.LevelWarn), 1)
	assert.Len(t, logs.Messages(slog.LevelError), 1)
	testutil.AssertLogAttr(t, logs, "component", "error_handler")
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	h := NewErrorHandler(nil, false)

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodPatch, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, decodeProblem(t, rec)["detail"], "PATCH")
}

func TestRecoveryMiddleware(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, true)

	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("sheet index out of range") })
	srv := middleware.RequestID(RecoveryMiddleware(h)(panicky))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/extractions", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeProblem(t, rec)
	assert.Equal(t, "sheet index out of range", body["panic"])
	assert.NotEmpty(t, body["trace_id"])
	testutil.AssertLogContains(t, logs, slog.LevelError, "panic recovered")
}

func TestErrorMiddleware_LogsRequests(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)
	m := NewErrorMiddleware(h, logger)

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	rec := httptest.NewRecorder()
	m.Handler(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/master?x=1", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	testutil.AssertLogContains(t, logs, slog.LevelInfo, "http request")
	testutil.AssertLogAttr(t, logs, "query", "x=1")

	boom := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("x") })
	rec = httptest.NewRecorder()
	m.Handler(boom).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
