package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/geoimport/internal/config"
	"github.com/JonMunkholm/geoimport/internal/core"
	"github.com/JonMunkholm/geoimport/internal/core/tables"
	"github.com/JonMunkholm/geoimport/internal/staging"
	"github.com/JonMunkholm/geoimport/internal/store/memory"
)

func testConfig() *config.Config {
	return &config.Config{
		Import: config.ImportConfig{
			MaxFileSize:   1 << 20,
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
			Timeout:       10 * time.Second,
			Concurrency:   2,
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *memory.Store) {
	t.Helper()
	reg, err := tables.Registry()
	require.NoError(t, err)
	st := memory.New(reg.Schema())
	stager, err := staging.NewFileStager(t.TempDir(), reg)
	require.NoError(t, err)

	svc := core.NewService(st, reg, stager, core.ServiceConfig{
		MaxFileSize:   cfg.Import.MaxFileSize,
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWait:       cfg.Import.MaxWaitTime,
		Timeout:       cfg.Import.Timeout,
		Concurrency:   cfg.Import.Concurrency,
	})
	s := NewServer(svc, cfg)
	t.Cleanup(func() { _ = s.Shutdown(t.Context()) })
	return s, st
}

func siteFile(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("../core/testdata/site.ags")
	require.NoError(t, err)
	return data
}

func multipartBody(t *testing.T, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "site.ags")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
}

func TestListDescriptors(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/descriptors", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	views := decode[[]descriptorView](t, rec)
	require.Len(t, views, 4)
	assert.Equal(t, "LOCA", views[0].Group)
	assert.Empty(t, views[0].Parent)
	assert.Equal(t, "name", views[0].Columns["LOCA_ID"])
}

func TestInspect(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/inspect", bytes.NewReader(siteFile(t)))
	req.Header.Set("Content-Type", "text/plain")
	rec := do(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[struct {
		Groups []groupView `json:"groups"`
	}](t, rec)
	names := make(map[string]int)
	for _, g := range body.Groups {
		names[g.Name] = g.Rows
	}
	assert.Equal(t, 2, names["LOCA"])
	assert.Equal(t, 3, names["SAMP"])
}

func TestImportFlow(t *testing.T) {
	s, st := newTestServer(t, testConfig())

	body, contentType := multipartBody(t, siteFile(t))
	req := httptest.NewRequest(http.MethodPost, "/api/projects/p1/imports", body)
	req.Header.Set("Content-Type", contentType)
	rec := do(s, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	run := decode[runResponse](t, rec)
	assert.Equal(t, "p1", run.Scope)
	assert.Equal(t, 10, run.Totals["new"])
	assert.Zero(t, run.Totals["updated"])
	assert.Equal(t, "/api/imports/"+run.RunID.String(), rec.Header().Get("Location"))
	assert.Zero(t, st.Count("location"), "summarize must not write")

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/imports/"+run.RunID.String()+"?batches=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	staged := decode[runResponse](t, rec)
	require.Contains(t, staged.Batches, "location")
	assert.Len(t, staged.Batches["location"].New, 2)

	rec = do(s, httptest.NewRequest(http.MethodPost, "/api/imports/"+run.RunID.String()+"/commit", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[core.CommitResult](t, rec)
	assert.Equal(t, 2, result.Counts["location"].Created)
	assert.Equal(t, 2, st.Count("location"))

	rec = do(s, httptest.NewRequest(http.MethodPost, "/api/imports/"+run.RunID.String()+"/commit", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "IMP002", decode[ErrorResponse](t, rec).Code)
}

func TestImportErrors(t *testing.T) {
	cfg := testConfig()
	cfg.Import.MaxFileSize = 256
	s, _ := newTestServer(t, cfg)

	tests := []struct {
		name        string
		path        string
		body        string
		contentType string
		wantStatus  int
		wantCode    string
	}{
		{"unknown run", "/api/imports/8d3b3a52-93b8-4c1e-8a7e-5d1c1f0f2a10/commit", "", "", http.StatusNotFound, "IMP002"},
		{"malformed run id", "/api/imports/nope/commit", "", "", http.StatusNotFound, "IMP002"},
		{"no file", "/api/projects/p1/imports", "", "text/plain", http.StatusBadRequest, "FILE002"},
		{"malformed group", "/api/projects/p1/imports", "\"GROUP\",\"LOCA\"\n\"DATA\",\"BH1\"\n", "text/plain", http.StatusUnprocessableEntity, "AGS001"},
		{"too large", "/api/projects/p1/imports", strings.Repeat("x", 1024), "text/plain", http.StatusRequestEntityTooLarge, "FILE001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := do(s, req)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestImportRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, ImportLimit: 1}
	s, _ := newTestServer(t, cfg)

	inspect := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/inspect", bytes.NewReader(siteFile(t)))
		req.Header.Set("Content-Type", "text/plain")
		return do(s, req).Code
	}
	assert.Equal(t, http.StatusOK, inspect())
	assert.Equal(t, http.StatusTooManyRequests, inspect())

	// Read-only routes are not limited by the import budget.
	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/descriptors", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	s, _ := newTestServer(t, cfg)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/descriptors", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/descriptors", nil)
	req.Header.Set("X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, do(s, req).Code)

	// Health checks stay open.
	assert.Equal(t, http.StatusOK, do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}
