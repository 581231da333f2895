package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/okvist/equipstats/internal/config"
	"github.com/okvist/equipstats/internal/core"
	"github.com/okvist/equipstats/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	st, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{}
	cfg.Server.RequestTimeout = 30 * time.Second
	cfg.Upload.MaxFileSize = 1 << 20
	cfg.Rate.Enabled = false

	service := core.NewService(st, core.ServiceOptions{})
	return NewServer(service, cfg, nil, nil)
}

func multipartUpload(t *testing.T, filename, content string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/datasets/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func doUpload(t *testing.T, s *Server, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, multipartUpload(t, filename, content))
	return rec
}

const validCSV = "name,type,flowrate,pressure,temperature\n" +
	"Pump1,Pump,10,5,300\n" +
	"Valve1,Valve,,3,250\n"

func TestUpload_ReturnsFullDataset(t *testing.T) {
	s := newTestServer(t)

	rec := doUpload(t, s, "plant.csv", validCSV)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var ds struct {
		ID       int64  `json:"id"`
		Filename string `json:"filename"`
		RowCount int    `json:"row_count"`
		Summary  *struct {
			AvgFlowrate    float64        `json:"avg_flowrate"`
			EquipmentTypes map[string]int `json:"equipment_types"`
		} `json:"summary"`
		Records []map[string]any `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ds))

	require.NotZero(t, ds.ID)
	require.Equal(t, "plant.csv", ds.Filename)
	require.Equal(t, 2, ds.RowCount)
	require.NotNil(t, ds.Summary)
	require.Equal(t, 10.0, ds.Summary.AvgFlowrate)
	require.Equal(t, map[string]int{"Pump": 1, "Valve": 1}, ds.Summary.EquipmentTypes)
	require.Len(t, ds.Records, 2)

	// Blank flowrate cell serializes as explicit null.
	require.Contains(t, ds.Records[1], "flowrate")
	require.Nil(t, ds.Records[1]["flowrate"])
}

func TestUpload_WrongExtension(t *testing.T) {
	s := newTestServer(t)

	rec := doUpload(t, s, "plant.xlsx", validCSV)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "FILE001", body.Code)
	require.NotEmpty(t, body.Error)
}

func TestUpload_MissingColumn(t *testing.T) {
	s := newTestServer(t)

	rec := doUpload(t, s, "plant.csv", "name,type,flowrate,temperature\nPump1,Pump,10,300\n")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "CSV001", body.Code)
	require.Contains(t, body.Message, "pressure")

	// No dataset appears in the listing.
	listRec := httptest.NewRecorder()
	s.Router().ServeHTTP(listRec, httptest.NewRequest(http.MethodGet, "/api/datasets", nil))
	require.Equal(t, "[]", strings.TrimSpace(listRec.Body.String()))
}

func TestUpload_NoFileField(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("other", "data"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/datasets/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDatasets(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 3; i++ {
		rec := doUpload(t, s, fmt.Sprintf("plant%d.csv", i), validCSV)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/datasets", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var metas []struct {
		ID       int64  `json:"id"`
		Filename string `json:"filename"`
		RowCount int    `json:"row_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &metas))
	require.Len(t, metas, 3)
	// Newest first; ids are monotonic so the last upload leads.
	require.Equal(t, "plant2.csv", metas[0].Filename)

	// Listing is the lightweight projection, no records key.
	require.NotContains(t, rec.Body.String(), "\"records\"")
}

func TestGetDataset(t *testing.T) {
	s := newTestServer(t)

	up := doUpload(t, s, "plant.csv", validCSV)
	var created core.Dataset
	require.NoError(t, json.Unmarshal(up.Body.Bytes(), &created))

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/datasets/%d", created.ID), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// Reads are idempotent: two gets return identical bodies.
	rec2 := httptest.NewRecorder()
	s.Router().ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/datasets/%d", created.ID), nil))
	require.Equal(t, rec.Body.String(), rec2.Body.String())
}

func TestGetDataset_Unknown(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/datasets/999", "/api/datasets/abc"} {
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusNotFound, rec.Code, "path %s", path)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "DS404", body.Code)
	}
}

func TestDeleteDataset(t *testing.T) {
	s := newTestServer(t)

	up := doUpload(t, s, "plant.csv", validCSV)
	var created core.Dataset
	require.NoError(t, json.Unmarshal(up.Body.Bytes(), &created))

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/datasets/%d", created.ID), nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/datasets/%d", created.ID), nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadReport(t *testing.T) {
	s := newTestServer(t)

	up := doUpload(t, s, "plant.csv", validCSV)
	var created core.Dataset
	require.NoError(t, json.Unmarshal(up.Body.Bytes(), &created))

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/datasets/%d/report", created.ID), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.Equal(t,
		fmt.Sprintf("attachment; filename=equipment_report_%d.pdf", created.ID),
		rec.Header().Get("Content-Disposition"))
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestDownloadReport_Unknown(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/datasets/12345/report", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestStatistics(t *testing.T) {
	s := newTestServer(t)

	doUpload(t, s, "a.csv", validCSV)
	doUpload(t, s, "b.csv", validCSV)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/statistics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats core.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, int64(2), stats.TotalDatasets)
	require.Equal(t, int64(4), stats.TotalRecords)
	require.Len(t, stats.TypeDistribution, 2)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	st, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{}
	cfg.Server.RequestTimeout = 30 * time.Second
	cfg.Upload.MaxFileSize = 1 << 20
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 2

	s := NewServer(core.NewService(st, core.ServiceOptions{}), cfg, nil, nil)

	var last int
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("X-Real-IP", "10.0.0.1")
		s.Router().ServeHTTP(rec, req)
		last = rec.Code
	}
	require.Equal(t, http.StatusTooManyRequests, last)
}
