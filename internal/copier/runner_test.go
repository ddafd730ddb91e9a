package copier

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robocurse/robocurse/internal/state"
)

// fakeCopier writes a tiny shell (or batch, on windows) script that
// prints a couple of progress lines and exits with a chosen code, so the
// runner can be exercised without depending on a real robocopy binary.
func fakeCopier(t *testing.T, exitCode int) string {
	t.Helper()
	dir := t.TempDir()
	if runtime.GOOS == "windows" {
		path := filepath.Join(dir, "fake.bat")
		script := "@echo off\r\necho New File 100 a.txt\r\necho 50%%\r\necho New File 200 b.txt\r\nexit /b " + itoa(exitCode) + "\r\n"
		require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
		return path
	}
	path := filepath.Join(dir, "fake.sh")
	script := "#!/bin/sh\necho 'New File 100 a.txt'\necho '50%'\necho 'New File 200 b.txt'\nexit " + itoa(exitCode) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func TestRunnerLaunchAndWaitParsesProgressAndExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake copier script targets POSIX shells in this sandbox")
	}
	script := fakeCopier(t, 1)
	runner := NewRunner("/bin/sh")
	progress := state.NewProgressBuffer()

	handle, err := runner.Launch(context.Background(), []string{script}, progress)
	require.NoError(t, err)

	code, err := handle.Wait(5 * time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, code)
	require.GreaterOrEqual(t, progress.LineCount(), 3)
}

func TestRunnerWaitTimesOutAndKills(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake copier script targets POSIX shells in this sandbox")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "sleep.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nsleep 5\n"), 0o755))

	runner := NewRunner("/bin/sh")
	progress := state.NewProgressBuffer()
	handle, err := runner.Launch(context.Background(), []string{script}, progress)
	require.NoError(t, err)

	_, err = handle.Wait(50 * time.Millisecond)
	require.Error(t, err)
}
