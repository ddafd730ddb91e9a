package joblog

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		events = append(events, e)
	}
	return events
}

func TestSessionAndChunkLifecycleAppendsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.jsonl")
	tr, err := New(path)
	require.NoError(t, err)
	defer tr.Close()

	tr.SessionStarted("sess-1")
	tr.ProfileStarted("sess-1", "nightly")
	tr.ChunkStarted("sess-1", "nightly", 1)
	tr.ChunkEnded("sess-1", "nightly", 1, StatusCompleted, nil)
	tr.ChunkStarted("sess-1", "nightly", 2)
	tr.ChunkEnded("sess-1", "nightly", 2, StatusFailed, errors.New("copier exited 8"))
	tr.ProfileEnded("sess-1", "nightly", StatusCompleted)
	tr.SessionEnded("sess-1", StatusCompleted, nil)

	events := readEvents(t, path)
	require.Len(t, events, 8)
	assert.Equal(t, "session", events[0].Kind)
	assert.Equal(t, StatusFailed, events[5].Status)
	assert.Equal(t, "copier exited 8", events[5].Error)
	require.NotNil(t, events[5].ChunkId)
	assert.Equal(t, int64(2), *events[5].ChunkId)
}

func TestStatusIsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
}

func TestNewAppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.jsonl")
	tr1, err := New(path)
	require.NoError(t, err)
	tr1.SessionStarted("sess-1")
	require.NoError(t, tr1.Close())

	tr2, err := New(path)
	require.NoError(t, err)
	tr2.SessionStarted("sess-2")
	require.NoError(t, tr2.Close())

	events := readEvents(t, path)
	require.Len(t, events, 2)
	assert.Equal(t, "sess-1", events[0].SessionId)
	assert.Equal(t, "sess-2", events[1].SessionId)
}
