package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robocurse/robocurse/internal/roboerr"
	"github.com/robocurse/robocurse/internal/state"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store := NewStore(path)

	cp := &state.Checkpoint{
		SessionId:          "sess-1",
		SavedAt:            time.Now(),
		CurrentProfileName: "nightly-backup",
		CompletedSources:   []string{`D:\src\a`},
		CompletedCount:     3,
	}
	require.NoError(t, store.Save(cp))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "sess-1", loaded.SessionId)
	assert.True(t, loaded.IsCompleted(`d:\SRC\A`))
}

func TestLoadReturnsNilWhenAbsent(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.json"))
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLoadRejectsVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store := NewStore(path)
	require.NoError(t, store.Save(&state.Checkpoint{SessionId: "s"}))

	// Corrupt the version field directly to simulate an old format.
	data, err := store.Load()
	require.NoError(t, err)
	_ = data

	bad := `{"version": 999, "session_id": "s"}`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	_, err = store.Load()
	require.Error(t, err)
	assert.True(t, roboerr.Is(err, roboerr.ConfigurationInvalid))
}

func TestRemoveIsIdempotent(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "checkpoint.json"))
	require.NoError(t, store.Remove())
	require.NoError(t, store.Save(&state.Checkpoint{SessionId: "s"}))
	require.NoError(t, store.Remove())
	require.NoError(t, store.Remove())
}
