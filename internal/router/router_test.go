package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogHandler "github.com/jwalitptl/labreport/internal/handler/catalog"
	"github.com/jwalitptl/labreport/internal/handler/health"
	promHandler "github.com/jwalitptl/labreport/internal/handler/prometheus"
	reportHandler "github.com/jwalitptl/labreport/internal/handler/report"
	sequenceHandler "github.com/jwalitptl/labreport/internal/handler/sequence"
	"github.com/jwalitptl/labreport/internal/middleware"
	"github.com/jwalitptl/labreport/internal/model"
	"github.com/jwalitptl/labreport/internal/render"
	"github.com/jwalitptl/labreport/internal/repository/file"
	"github.com/jwalitptl/labreport/internal/repository/memory"
	"github.com/jwalitptl/labreport/internal/router"
	"github.com/jwalitptl/labreport/internal/service/catalog"
	"github.com/jwalitptl/labreport/internal/service/report"
	"github.com/jwalitptl/labreport/internal/service/sequence"
	"github.com/jwalitptl/labreport/pkg/metrics"
	"github.com/jwalitptl/labreport/pkg/validator"
)

var doctors = []string{"Dr. C. B. Patel", "Dr. Rai"}

// APIResponse represents the API response structure
type APIResponse struct {
	Code    int
	Header  http.Header
	Status  string                   `json:"status"`
	Message string                   `json:"message"`
	Data    json.RawMessage          `json:"data"`
	Errors  []map[string]interface{} `json:"errors"`
	Raw     []byte
}

func (r APIResponse) IsSuccess() bool {
	return r.Status == "success"
}

func (r APIResponse) Object(t *testing.T) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(r.Data, &out))
	return out
}

type testAPI struct {
	t      *testing.T
	server *httptest.Server
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	return newTestAPIWithSequence(t, filepath.Join(t.TempDir(), "sequence.json"))
}

func newTestAPIWithSequence(t *testing.T, sequencePath string) *testAPI {
	t.Helper()
	require.NoError(t, middleware.RegisterValidation())

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("labreport", reg)

	cat, err := catalog.Default()
	require.NoError(t, err)

	renderer, err := render.NewRenderer(render.Config{
		PixelsPerMM: 2,
		PageHeight:  295,
		Letterhead:  render.Letterhead{Name: "Maruti Nisarg Laboratory", Signatory: "Mrs. Heena V. Modh"},
	})
	require.NoError(t, err)

	store := file.NewSequenceRepository(sequencePath)
	seq := sequence.NewService(store, time.UTC, m, sequence.WithClock(func() time.Time {
		return time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	}))

	svc := report.NewService(report.Dependencies{
		Drafts:    memory.NewDraftRepository(time.Hour, time.Hour),
		Sequence:  seq,
		Catalog:   cat,
		Renderer:  renderer,
		Validator: validator.New(validator.WithMessages(model.PatientMessages)),
		Doctors:   doctors,
		Metrics:   m,
	})

	r := router.NewRouter(
		reportHandler.NewHandler(svc),
		catalogHandler.NewHandler(cat, doctors),
		sequenceHandler.NewHandler(seq, store.Backend()),
		health.NewHandler(map[string]health.Checker{"sequence": health.CheckerFunc(func(ctx context.Context) error {
			_, err := seq.Current(ctx)
			return err
		})}),
		promHandler.New(reg).Handler(),
		router.RouterConfig{
			Mode:        gin.TestMode,
			RateLimit:   100,
			RateBurst:   100,
			RateEnabled: true,
			CORSConfig:  middleware.DefaultCORSConfig(),
			SizeLimit:   middleware.DefaultSizeLimitConfig(),
			Timeout:     middleware.DefaultTimeoutConfig(),
			MetricsPath: "/api/v1/health/metrics",
			Metrics:     m,
		},
	)
	r.Setup()

	server := httptest.NewServer(r.Engine())
	t.Cleanup(server.Close)
	return &testAPI{t: t, server: server}
}

func (a *testAPI) do(method, path string, body interface{}) APIResponse {
	a.t.Helper()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.server.URL+"/api/v1"+path, reqBody)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.server.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)

	out := APIResponse{Code: resp.StatusCode, Header: resp.Header, Raw: raw}
	if resp.Header.Get("Content-Type") == "application/json; charset=utf-8" && len(raw) > 0 {
		require.NoError(a.t, json.Unmarshal(raw, &out))
	}
	return out
}

func (a *testAPI) createReport() string {
	a.t.Helper()
	resp := a.do(http.MethodPost, "/reports", nil)
	require.Equal(a.t, http.StatusCreated, resp.Code, string(resp.Raw))
	return resp.Object(a.t)["id"].(string)
}

func fillPatient(a *testAPI, id string) {
	a.t.Helper()
	resp := a.do(http.MethodPut, "/reports/"+id+"/patient", map[string]interface{}{
		"name":    "Test Patient",
		"age":     "40",
		"gender":  "Male",
		"contact": "9876543210",
		"doctor":  "Dr. Rai",
	})
	require.Equal(a.t, http.StatusOK, resp.Code, string(resp.Raw))
}

func TestReportFlow(t *testing.T) {
	api := newTestAPI(t)
	id := api.createReport()

	get := api.do(http.MethodGet, "/reports/"+id, nil)
	require.True(t, get.IsSuccess())
	form := get.Object(t)["form"].(map[string]interface{})
	assert.Equal(t, "010124/001", form["patient_id"])

	fillPatient(api, id)

	resp := api.do(http.MethodPut, "/reports/"+id+"/tests", map[string]string{"report_type": "CBC"})
	require.Equal(t, http.StatusOK, resp.Code, string(resp.Raw))
	rows := resp.Object(t)["entry"].(map[string]interface{})["rows"].([]interface{})
	require.NotEmpty(t, rows)
	assert.Equal(t, "Hemoglobin", rows[0].(map[string]interface{})["name"])

	resp = api.do(http.MethodPut, "/reports/"+id+"/tests/rows/0/result", map[string]string{"result": "14.2"})
	require.Equal(t, http.StatusOK, resp.Code, string(resp.Raw))

	resp = api.do(http.MethodPost, "/reports/"+id+"/tests/rows", nil)
	require.Equal(t, http.StatusCreated, resp.Code, string(resp.Raw))
	index := int(resp.Object(t)["index"].(float64))
	assert.Equal(t, len(rows), index)

	resp = api.do(http.MethodPut, fmt.Sprintf("/reports/%s/tests/rows/%d", id, index), map[string]string{
		"name": "ESR", "range": "0 - 20", "unit": "mm/hr",
	})
	require.Equal(t, http.StatusOK, resp.Code, string(resp.Raw))

	resp = api.do(http.MethodPut, "/reports/"+id+"/tests/rows/0", map[string]string{"name": "Renamed"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = api.do(http.MethodPost, "/reports/"+id+"/tests/save", nil)
	require.Equal(t, http.StatusOK, resp.Code, string(resp.Raw))
	tests := resp.Object(t)["tests"].([]interface{})
	assert.Len(t, tests, len(rows)+1)
	assert.Equal(t, "ESR", tests[len(tests)-1].(map[string]interface{})["name"])

	resp = api.do(http.MethodPut, "/reports/"+id+"/options", map[string]interface{}{"description": "Fasting sample"})
	require.Equal(t, http.StatusOK, resp.Code, string(resp.Raw))

	resp = api.do(http.MethodGet, "/reports/"+id+"/preview", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	layout := resp.Object(t)
	assert.Equal(t, "Test Patient_010124-001.pdf", layout["filename"])
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	resp = api.do(http.MethodGet, "/reports/"+id+"/pdf", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, render.ContentTypePDF, resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Test Patient_010124-001.pdf"`, resp.Header.Get("Content-Disposition"))
	assert.NotEmpty(t, resp.Header.Get("X-Page-Count"))
	assert.True(t, bytes.HasPrefix(resp.Raw, []byte("%PDF-")))

	resp = api.do(http.MethodGet, "/reports/"+id+"/xlsx", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, render.ContentTypeXLSX, resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(resp.Raw, []byte("PK")))

	resp = api.do(http.MethodDelete, "/reports/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = api.do(http.MethodGet, "/reports/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	assert.Equal(t, "010124/002", api.do(http.MethodGet, "/reports/"+api.createReport(), nil).
		Object(t)["form"].(map[string]interface{})["patient_id"])
}

func TestUpdatePatient_ValidationKeepsForm(t *testing.T) {
	api := newTestAPI(t)
	id := api.createReport()

	resp := api.do(http.MethodPut, "/reports/"+id+"/patient", map[string]interface{}{
		"name":    "Test Patient",
		"age":     "40",
		"contact": "12345",
		"doctor":  "Dr. Rai",
	})

	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "Please enter valid 10-digit phone number.", resp.Message)
	require.NotEmpty(t, resp.Errors)
	assert.Equal(t, "contact", resp.Errors[0]["field"])

	form := resp.Object(t)["form"].(map[string]interface{})
	assert.Equal(t, "Test Patient", form["name"])
	assert.Equal(t, "12345", form["contact"])
	assert.Nil(t, resp.Object(t)["patient"])
}

func TestReportErrors(t *testing.T) {
	api := newTestAPI(t)
	id := api.createReport()

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"bad id", http.MethodGet, "/reports/not-a-uuid", nil, http.StatusBadRequest},
		{"unknown id", http.MethodGet, "/reports/00000000-0000-0000-0000-000000000000", nil, http.StatusNotFound},
		{"missing report type", http.MethodPut, "/reports/" + id + "/tests", map[string]string{}, http.StatusBadRequest},
		{"unknown report type", http.MethodPut, "/reports/" + id + "/tests", map[string]string{"report_type": "Nope"}, http.StatusBadRequest},
		{"row before selection", http.MethodPost, "/reports/" + id + "/tests/rows", nil, http.StatusBadRequest},
		{"bad index", http.MethodPut, "/reports/" + id + "/tests/rows/x/result", map[string]string{"result": "1"}, http.StatusBadRequest},
		{"index out of range", http.MethodPut, "/reports/" + id + "/tests/rows/99/result", map[string]string{"result": "1"}, http.StatusBadRequest},
		{"save before selection", http.MethodPost, "/reports/" + id + "/tests/save", nil, http.StatusBadRequest},
		{"unknown doctor", http.MethodPut, "/reports/" + id + "/patient", map[string]string{"doctor": "Dr. Who"}, http.StatusBadRequest},
		{"bad email", http.MethodPost, "/reports/" + id + "/email", map[string]string{"to": "nope"}, http.StatusBadRequest},
		{"email not configured", http.MethodPost, "/reports/" + id + "/email", map[string]string{"to": "lab@example.com"}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := api.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.Code, string(resp.Raw))
			assert.Equal(t, "error", resp.Status)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestEmptyReportPreview(t *testing.T) {
	api := newTestAPI(t)
	id := api.createReport()

	resp := api.do(http.MethodGet, "/reports/"+id+"/preview", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Lab_Report_ID.pdf", resp.Object(t)["filename"])
	assert.Contains(t, string(resp.Data), render.PlaceholderText)
}

func TestCatalogRoutes(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(http.MethodGet, "/catalog", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	types := resp.Object(t)["types"].([]interface{})
	assert.Equal(t, "CBC", types[0])
	assert.Contains(t, resp.Header.Get("Cache-Control"), "max-age=300")

	resp = api.do(http.MethodGet, "/catalog/CBC", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	rows := resp.Object(t)["rows"].([]interface{})
	assert.Equal(t, "Hemoglobin", rows[0].(map[string]interface{})["name"])

	resp = api.do(http.MethodGet, "/catalog/Unknown", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = api.do(http.MethodGet, "/doctors", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []interface{}{"Dr. C. B. Patel", "Dr. Rai"}, resp.Object(t)["doctors"])
}

func TestSequenceRoute(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(http.MethodGet, "/sequence", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "file", resp.Object(t)["backend"])
	assert.Nil(t, resp.Object(t)["state"])

	api.createReport()
	api.createReport()

	resp = api.do(http.MethodGet, "/sequence", nil)
	state := resp.Object(t)["state"].(map[string]interface{})
	assert.Equal(t, "2024-01-01", state["date"])
	assert.Equal(t, 2.0, state["series"])
}

func TestCorruptSequenceStopsIdentifiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sequence.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"patientSeries": `), 0o600))
	api := newTestAPIWithSequence(t, path)

	resp := api.do(http.MethodPost, "/reports", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.False(t, resp.IsSuccess())

	resp = api.do(http.MethodGet, "/sequence", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"patientSeries": `, string(data))
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = api.do(http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	api.createReport()
	resp = api.do(http.MethodGet, "/health/metrics", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, string(resp.Raw), "labreport_sequence_identifiers_issued_total 1")
	assert.Contains(t, string(resp.Raw), `labreport_http_requests_total{method="POST",path="/api/v1/reports",status="201"} 1`)
}

func TestRequestHeaders(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(http.MethodGet, "/health/live", nil)
	assert.NotEmpty(t, resp.Header.Get(middleware.HeaderXRequestID))
	assert.Equal(t, "1.0", resp.Header.Get("X-API-Version"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}
