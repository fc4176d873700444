package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazarus-engine/lazarus/config"
	"github.com/lazarus-engine/lazarus/log"
)

func newTestServer(t *testing.T) *server {
	t.Helper()
	cfg := config.Default()
	cfg.Memory.Dir = t.TempDir()
	cfg.GitHub.Token = ""
	s, err := newServer(cfg, log.NewNullLogger())
	require.NoError(t, err)
	return s
}

func TestPreflightCORS(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/resurrect", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestResurrectValidation(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/resurrect", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/resurrect", strings.NewReader("{}")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/resurrect", strings.NewReader("not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommitValidation(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/commit", strings.NewReader("{}")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// A well-formed request without a configured token surfaces the error
	// in the result payload, not as an HTTP failure.
	body := `{"repo_url":"https://github.com/acme/legacy","filename":"a.txt","content":"hi"}`
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/commit", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "error", result.Status)
	assert.Contains(t, result.Message, "GITHUB_TOKEN")
}

func TestMemoryEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/memory", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/memory?repo_url=https://github.com/acme/legacy", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var summary struct {
		TotalAttempts int `json:"total_attempts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Zero(t, summary.TotalAttempts)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/memory?repo_url=https://github.com/acme/legacy", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
