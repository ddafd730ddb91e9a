package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robocurse/robocurse/internal/health"
	"github.com/robocurse/robocurse/internal/state"
)

func newTestServer(t *testing.T) (*Server, *state.RunState, string) {
	gin.SetMode(gin.TestMode)
	profiles := []*state.Profile{{Name: "nightly backup"}}
	rs := state.NewRunState(profiles)
	rs.SetPhase(state.PhaseReplicating)

	healthPath := filepath.Join(t.TempDir(), "health.json")
	s := New("127.0.0.1:0", rs, healthPath)
	return s, rs, healthPath
}

func TestHealthzReturnsServiceUnavailableBeforeFirstWrite(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthzReturnsWrittenStatus(t *testing.T) {
	s, _, healthPath := newTestServer(t)
	w := health.NewWriter(healthPath, 0)
	require.NoError(t, w.Write(health.Status{SessionId: "sess-1", Healthy: true, Timestamp: time.Now()}, false))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var got health.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "sess-1", got.SessionId)
}

func TestCurrentProfileReturnsSlug(t *testing.T) {
	s, rs, _ := newTestServer(t)
	_ = rs.CurrentProfile()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/profiles/current", nil)
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var got currentProfileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "nightly backup", got.Name)
	assert.Equal(t, "nightly-backup", got.Slug)
}

func TestProgressReturnsEmptyJobsWhenIdle(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/progress", nil)
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"jobs":[]`)
}
