package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestProfileDirectoryAccumulatesSizesAndFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), 100)
	writeFile(t, filepath.Join(root, "sub", "b.txt"), 200)
	writeFile(t, filepath.Join(root, "sub", "nested", "c.txt"), 300)

	s := New(16, 4)
	profile, err := s.ProfileDirectory(context.Background(), root)
	require.NoError(t, err)

	require.Equal(t, int64(600), profile.TotalSize)
	require.Equal(t, 3, profile.TotalFiles)
}

func TestProfileDirectoryWarnsOnUnreadableSubdirAndContinues(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ok.txt"), 50)
	blocked := filepath.Join(root, "blocked")
	require.NoError(t, os.MkdirAll(blocked, 0o000))
	defer os.Chmod(blocked, 0o755)

	s := New(16, 2)
	profile, err := s.ProfileDirectory(context.Background(), root)
	require.NoError(t, err)
	require.GreaterOrEqual(t, profile.TotalSize, int64(50))
}
