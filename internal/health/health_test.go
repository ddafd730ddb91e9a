package health

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robocurse/robocurse/internal/state"
)

func TestWriteLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "health.json")
	w := NewWriter(path, 0)

	s := Status{
		Timestamp:      time.Now(),
		Phase:          state.PhaseReplicating,
		SessionId:      "sess-1",
		ChunksTotal:    10,
		ChunksCompleted: 3,
		Healthy:        true,
		Message:        "replicating",
	}
	require.NoError(t, w.Write(s, false))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "sess-1", loaded.SessionId)
	assert.True(t, loaded.Healthy)
}

func TestLoadReturnsNilWhenAbsent(t *testing.T) {
	loaded, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestWriteThrottlesWithinInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "health.json")
	w := NewWriter(path, time.Hour)

	require.NoError(t, w.Write(Status{Message: "first"}, false))
	require.NoError(t, w.Write(Status{Message: "second"}, false))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "first", loaded.Message)
}

func TestWriteForceBypassesThrottle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "health.json")
	w := NewWriter(path, time.Hour)

	require.NoError(t, w.Write(Status{Message: "first"}, false))
	require.NoError(t, w.Write(Status{Message: "second"}, true))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "second", loaded.Message)
}

func TestStaleDetectsOldTimestamp(t *testing.T) {
	s := Status{Timestamp: time.Now().Add(-time.Hour)}
	assert.True(t, s.Stale(time.Now(), time.Minute))
	assert.False(t, s.Stale(time.Now(), 2*time.Hour))
}

func TestBuildStatusUnhealthyOnFailures(t *testing.T) {
	r := state.NewRunState(nil)
	r.SetPhase(state.PhaseReplicating)

	s := BuildStatus(r, 5, true, "one chunk failed")
	assert.False(t, s.Healthy)

	s = BuildStatus(r, 5, false, "on track")
	assert.True(t, s.Healthy)
}

func TestBuildStatusUnhealthyWhenStopped(t *testing.T) {
	r := state.NewRunState(nil)
	r.SetPhase(state.PhaseStopped)

	s := BuildStatus(r, 5, false, "stopped")
	assert.False(t, s.Healthy)
}
