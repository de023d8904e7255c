package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
	apierrors "github.com/gunturawaludins/mkbd-new/internal/errors"
	"github.com/gunturawaludins/mkbd-new/internal/formula"
	"github.com/gunturawaludins/mkbd-new/internal/masterdata"
	"github.com/gunturawaludins/mkbd-new/internal/middleware"
	"github.com/gunturawaludins/mkbd-new/internal/operations"
	"github.com/gunturawaludins/mkbd-new/internal/services"
	"github.com/gunturawaludins/mkbd-new/internal/store"
)

// MockExtractionService is a mock implementation of ExtractionService
type MockExtractionService struct {
	mock.Mock
}

func (m *MockExtractionService) Extract(ctx context.Context, req services.ExtractRequest) (*services.Extraction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Extraction), args.Error(1)
}

func (m *MockExtractionService) List(ctx context.Context, filter operations.JobFilter) ([]*operations.Job, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*operations.Job), args.Error(1)
}

func (m *MockExtractionService) Get(ctx context.Context, id string) (*services.Extraction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Extraction), args.Error(1)
}

// MockMasterService is a mock implementation of MasterService
type MockMasterService struct {
	mock.Mock
}

func (m *MockMasterService) Upload(ctx context.Context, fileName string, data []byte) (masterdata.LoadResult, error) {
	args := m.Called(ctx, fileName, data)
	return args.Get(0).(masterdata.LoadResult), args.Error(1)
}

func (m *MockMasterService) LoadDefault(ctx context.Context) (masterdata.LoadResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(masterdata.LoadResult), args.Error(1)
}

func (m *MockMasterService) Stats(ctx context.Context) masterdata.Stats {
	return m.Called(ctx).Get(0).(masterdata.Stats)
}

func (m *MockMasterService) Lookup(ctx context.Context, code string) (masterdata.Entry, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(masterdata.Entry), args.Error(1)
}

func (m *MockMasterService) Clear(ctx context.Context) {
	m.Called(ctx)
}

// MockTableService is a mock implementation of TableService
type MockTableService struct {
	mock.Mock
}

func (m *MockTableService) List(ctx context.Context) ([]store.TableMeta, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.TableMeta), args.Error(1)
}

func (m *MockTableService) Stats(ctx context.Context) (store.Stats, error) {
	args := m.Called(ctx)
	return args.Get(0).(store.Stats), args.Error(1)
}

func (m *MockTableService) Get(ctx context.Context, name string) (*services.TableData, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TableData), args.Error(1)
}

func (m *MockTableService) Append(ctx context.Context, name string, records []store.Record) (int, error) {
	args := m.Called(ctx, name, records)
	return args.Int(0), args.Error(1)
}

func (m *MockTableService) Clear(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockTableService) Delete(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockTableService) ApplyFormula(ctx context.Context, name string, req services.ApplyFormulaRequest) (*services.ApplyFormulaResult, error) {
	args := m.Called(ctx, name, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ApplyFormulaResult), args.Error(1)
}

// MockFormulaService is a mock implementation of FormulaService
type MockFormulaService struct {
	mock.Mock
}

func (m *MockFormulaService) Evaluate(ctx context.Context, expr string, row dataprocessing.Row, refs map[string]dataprocessing.Row) (formula.Result, error) {
	args := m.Called(ctx, expr, row, refs)
	return args.Get(0).(formula.Result), args.Error(1)
}

func (m *MockFormulaService) Test(ctx context.Context, expr string, sample dataprocessing.Row) (formula.TestResult, error) {
	args := m.Called(ctx, expr, sample)
	return args.Get(0).(formula.TestResult), args.Error(1)
}

// MockHealthService is a mock implementation of HealthService
type MockHealthService struct {
	mock.Mock
}

func (m *MockHealthService) HealthCheck(ctx context.Context) services.HealthStatus {
	return m.Called(ctx).Get(0).(services.HealthStatus)
}

func (m *MockHealthService) ReadinessCheck(ctx context.Context) services.HealthStatus {
	return m.Called(ctx).Get(0).(services.HealthStatus)
}

func (m *MockHealthService) LivenessCheck(ctx context.Context) services.HealthStatus {
	return m.Called(ctx).Get(0).(services.HealthStatus)
}

type testDeps struct {
	extractions *MockExtractionService
	master      *MockMasterService
	tables      *MockTableService
	formulas    *MockFormulaService
	health      *MockHealthService
}

func newTestRouter(t *testing.T) (http.Handler, *testDeps) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	errs := apierrors.NewErrorHandler(logger, false, ErrorMappings()...)
	v := middleware.NewValidator(logger, errs)

	d := &testDeps{
		extractions: &MockExtractionService{},
		master:      &MockMasterService{},
		tables:      &MockTableService{},
		formulas:    &MockFormulaService{},
		health:      &MockHealthService{},
	}
	health := NewHealthHandler(d.health, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Get("/healthz", health.HealthCheck)
	r.Get("/readyz", health.ReadinessCheck)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.MaxBodySize(1 << 20))
		r.Mount("/extractions", NewExtractionHandler(d.extractions, errs, logger).Routes())
		r.Mount("/master", NewMasterHandler(d.master, errs, logger).Routes())
		r.Mount("/tables", NewTableHandler(d.tables, v, errs, logger).Routes())
		r.Mount("/formulas", NewFormulaHandler(d.formulas, v, errs, logger).Routes())
	})
	t.Cleanup(func() {
		d.extractions.AssertExpectations(t)
		d.master.AssertExpectations(t)
		d.tables.AssertExpectations(t)
		d.formulas.AssertExpectations(t)
		d.health.AssertExpectations(t)
	})
	return r, d
}

func multipartBody(t *testing.T, field, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("other", "x"))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestExtractionHandler_CreateSync(t *testing.T) {
	h, d := newTestRouter(t)
	body, ct := multipartBody(t, "file", "mkbd.xlsx", []byte("workbook"))

	d.extractions.On("Extract", mock.Anything, services.ExtractRequest{FileName: "mkbd.xlsx", Data: []byte("workbook"), Persist: true}).
		Return(&services.Extraction{
			Job:    &operations.Job{ID: "job-1", Status: operations.JobStatusCompleted},
			Result: &dataprocessing.Result{Success: true, GrandTotal: 740000},
		}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/extractions?persist=true", body)
	req.Header.Set("Content-Type", ct)
	rec := do(h, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeBody(t, rec)
	assert.Equal(t, "job-1", out["job"].(map[string]interface{})["id"])
	assert.Equal(t, 740000.0, out["result"].(map[string]interface{})["grandTotalRankingLiabilities"])
}

func TestExtractionHandler_CreateFailedRun(t *testing.T) {
	h, d := newTestRouter(t)
	body, ct := multipartBody(t, "file", "bad.xlsx", []byte("junk"))

	d.extractions.On("Extract", mock.Anything, mock.Anything).Return(&services.Extraction{
		Job:    &operations.Job{ID: "job-2", Status: operations.JobStatusFailed},
		Result: &dataprocessing.Result{Success: false, Errors: []string{"Extraction Failed: zip: not a valid zip file"}},
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/extractions", body)
	req.Header.Set("Content-Type", ct)
	rec := do(h, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestExtractionHandler_CreateAsync(t *testing.T) {
	h, d := newTestRouter(t)
	body, ct := multipartBody(t, "file", "mkbd.xlsx", []byte("workbook"))

	d.extractions.On("Extract", mock.Anything, mock.MatchedBy(func(r services.ExtractRequest) bool { return r.Async })).
		Return(&services.Extraction{Job: &operations.Job{ID: "job-3", Status: operations.JobStatusPending}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/extractions?async=true", body)
	req.Header.Set("Content-Type", ct)
	rec := do(h, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "/api/v1/extractions/job-3", rec.Header().Get("Location"))
}

func TestExtractionHandler_CreateValidation(t *testing.T) {
	h, _ := newTestRouter(t)

	body, ct := multipartBody(t, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extractions", body)
	req.Header.Set("Content-Type", ct)
	rec := do(h, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_FILE", decodeBody(t, rec)["error_code"])

	body, ct = multipartBody(t, "file", "mkbd.xlsx", []byte("x"))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/extractions?persist=maybe", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusBadRequest, do(h, req).Code)

	body, ct = multipartBody(t, "file", "big.xlsx", bytes.Repeat([]byte("x"), 2<<20))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/extractions", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, do(h, req).Code)
}

func TestExtractionHandler_ListAndGet(t *testing.T) {
	h, d := newTestRouter(t)

	d.extractions.On("List", mock.Anything, operations.JobFilter{Status: operations.JobStatusFailed, Limit: 10}).
		Return([]*operations.Job{{ID: "a"}}, nil)
	rec := do(h, httptest.NewRequest(http.MethodGet, "/api/v1/extractions?status=failed&limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decodeBody(t, rec)["count"])

	assert.Equal(t, http.StatusBadRequest, do(h, httptest.NewRequest(http.MethodGet, "/api/v1/extractions?status=done", nil)).Code)

	d.extractions.On("Get", mock.Anything, "missing").Return(nil, operations.ErrJobNotFound)
	rec = do(h, httptest.NewRequest(http.MethodGet, "/api/v1/extractions/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "JOB_NOT_FOUND", decodeBody(t, rec)["error_code"])
}

func TestMasterHandler(t *testing.T) {
	h, d := newTestRouter(t)

	d.master.On("Lookup", mock.Anything, "BBCA").Return(masterdata.Entry{}, masterdata.ErrNotLoaded).Once()
	rec := do(h, httptest.NewRequest(http.MethodGet, "/api/v1/master/BBCA", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	d.master.On("Lookup", mock.Anything, "ZZZZ").Return(masterdata.Entry{}, services.ErrEntryNotFound)
	assert.Equal(t, http.StatusNotFound, do(h, httptest.NewRequest(http.MethodGet, "/api/v1/master/ZZZZ", nil)).Code)

	d.master.On("Lookup", mock.Anything, "ASII").Return(masterdata.Entry{Code: "ASII", PrimaryGroup: "Jardine"}, nil)
	rec = do(h, httptest.NewRequest(http.MethodGet, "/api/v1/master/ASII", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Jardine", decodeBody(t, rec)["afiliasiUtama"])

	d.master.On("Stats", mock.Anything).Return(masterdata.Stats{TotalEntries: 3})
	rec = do(h, httptest.NewRequest(http.MethodGet, "/api/v1/master/stats", nil))
	assert.Equal(t, 3.0, decodeBody(t, rec)["totalEmiten"])

	d.master.On("Clear", mock.Anything).Return()
	assert.Equal(t, http.StatusNoContent, do(h, httptest.NewRequest(http.MethodDelete, "/api/v1/master", nil)).Code)

	body, ct := multipartBody(t, "file", "master.xlsx", []byte("junk"))
	d.master.On("Upload", mock.Anything, "master.xlsx", []byte("junk")).Return(masterdata.LoadResult{}, services.ErrMasterLoad)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/master", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusUnprocessableEntity, do(h, req).Code)

	d.master.On("LoadDefault", mock.Anything).Return(masterdata.LoadResult{Success: true, Count: 3}, nil)
	rec = do(h, httptest.NewRequest(http.MethodPost, "/api/v1/master/default", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTableHandler_ReadPaths(t *testing.T) {
	h, d := newTestRouter(t)

	d.tables.On("List", mock.Anything).Return([]store.TableMeta{{Name: "vd52"}}, nil)
	rec := do(h, httptest.NewRequest(http.MethodGet, "/api/v1/tables", nil))
	assert.Equal(t, 1.0, decodeBody(t, rec)["count"])

	d.tables.On("Stats", mock.Anything).Return(store.Stats{TotalTables: 1, TotalRecords: 9}, nil)
	rec = do(h, httptest.NewRequest(http.MethodGet, "/api/v1/tables/stats", nil))
	assert.Equal(t, 9.0, decodeBody(t, rec)["totalRecords"])

	d.tables.On("Get", mock.Anything, "nope").Return(nil, store.ErrTableNotFound)
	rec = do(h, httptest.NewRequest(http.MethodGet, "/api/v1/tables/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "TABLE_NOT_FOUND", decodeBody(t, rec)["error_code"])

	assert.Equal(t, http.StatusBadRequest, do(h, httptest.NewRequest(http.MethodGet, "/api/v1/tables/VD52", nil)).Code)
}

func TestTableHandler_Download(t *testing.T) {
	h, d := newTestRouter(t)
	d.tables.On("Get", mock.Anything, "vd58").Return(&services.TableData{
		Table:   store.TableMeta{Name: "vd58", Headers: []string{"Uraian", "Nilai"}},
		Records: []store.Record{{store.FieldID: int64(1), "Uraian": "Total", "Nilai": 740000.0}},
	}, nil)

	rec := do(h, httptest.NewRequest(http.MethodGet, "/api/v1/tables/vd58?format=csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="vd58.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "Uraian,Nilai\nTotal,740000\n")

	rec = do(h, httptest.NewRequest(http.MethodGet, "/api/v1/tables/vd58?format=xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	assert.Equal(t, http.StatusBadRequest, do(h, httptest.NewRequest(http.MethodGet, "/api/v1/tables/vd58?format=pdf", nil)).Code)
}

func TestTableHandler_WritePaths(t *testing.T) {
	h, d := newTestRouter(t)

	d.tables.On("Append", mock.Anything, "vd52", []store.Record{{"Uraian": "x"}}).Return(1, nil)
	rec := do(h, jsonRequest(http.MethodPost, "/api/v1/tables/vd52/records", `{"records":[{"Uraian":"x"}]}`))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(h, jsonRequest(http.MethodPost, "/api/v1/tables/vd52/records", `{"records":[]}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	d.tables.On("Clear", mock.Anything, "vd52").Return(nil)
	assert.Equal(t, http.StatusNoContent, do(h, httptest.NewRequest(http.MethodDelete, "/api/v1/tables/vd52/records", nil)).Code)

	d.tables.On("Delete", mock.Anything, "vd59").Return(store.ErrTableNotFound)
	assert.Equal(t, http.StatusNotFound, do(h, httptest.NewRequest(http.MethodDelete, "/api/v1/tables/vd59", nil)).Code)

	d.tables.On("ApplyFormula", mock.Anything, "vd510", services.ApplyFormulaRequest{Formula: "[a]*2", Target: "b", Save: true}).
		Return(&services.ApplyFormulaResult{RowsResult: formula.RowsResult{SuccessCount: 2}, Saved: true}, nil)
	rec = do(h, jsonRequest(http.MethodPost, "/api/v1/tables/vd510/formula", `{"formula":"[a]*2","targetColumn":"b","save":true}`))
	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeBody(t, rec)
	assert.Equal(t, true, out["saved"])
	assert.Equal(t, 2.0, out["successCount"])
}

func TestFormulaHandler(t *testing.T) {
	h, d := newTestRouter(t)

	d.formulas.On("Evaluate", mock.Anything, "[a]+1", dataprocessing.Row{"a": 1.0}, map[string]dataprocessing.Row(nil)).
		Return(formula.Result{Success: true, Value: 2}, nil)
	rec := do(h, jsonRequest(http.MethodPost, "/api/v1/formulas/evaluate", `{"formula":"[a]+1","row":{"a":1}}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, decodeBody(t, rec)["value"])

	d.formulas.On("Evaluate", mock.Anything, "[x]", mock.Anything, mock.Anything).
		Return(formula.Result{}, &services.FormulaError{Message: `Kolom "x" tidak ditemukan atau nilai null`})
	rec = do(h, jsonRequest(http.MethodPost, "/api/v1/formulas/evaluate", `{"formula":"[x]"}`))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "tidak ditemukan")

	rec = do(h, jsonRequest(http.MethodPost, "/api/v1/formulas/evaluate", `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	d.formulas.On("Test", mock.Anything, "[a]*10", dataprocessing.Row{"a": "1,5"}).
		Return(formula.TestResult{Success: true, Result: 10, Expression: "1 * 10"}, nil)
	rec = do(h, jsonRequest(http.MethodPost, "/api/v1/formulas/test", `{"formula":"[a]*10","sampleData":{"a":"1,5"}}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1 * 10", decodeBody(t, rec)["expression"])
}

func TestHealthHandler(t *testing.T) {
	h, d := newTestRouter(t)

	d.health.On("HealthCheck", mock.Anything).Return(services.HealthStatus{Status: services.StatusOK})
	assert.Equal(t, http.StatusOK, do(h, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)

	d.health.On("ReadinessCheck", mock.Anything).Return(services.HealthStatus{Status: services.StatusNotReady})
	assert.Equal(t, http.StatusServiceUnavailable, do(h, httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)
}
