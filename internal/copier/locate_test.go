package copier

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robocurse/robocurse/internal/roboerr"
)

func TestLocateReturnsExistingOverridePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mycopier")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))

	got, err := Locate(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestLocateFailsOnMissingOverride(t *testing.T) {
	_, err := Locate(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
	assert.True(t, roboerr.Is(err, roboerr.CopierNotFound))
}

func TestLocateFallsBackToPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("PATH lookup fallback exercised on POSIX only")
	}
	got, err := Locate("")
	if err != nil {
		assert.True(t, roboerr.Is(err, roboerr.CopierNotFound))
		return
	}
	assert.NotEmpty(t, got)
}
