package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherRunReturnsAfterStopFollowingRewrite(t *testing.T) {
	path := writeFile(t, "config.json", validJSON)

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Close()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		w.Run(stop)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(validJSON+"\n"), 0o644))
	time.Sleep(50 * time.Millisecond)

	close(stop)
	<-done
}

func TestWatcherRejectsMissingDirectory(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope", "config.json"))
	require.Error(t, err)
}
