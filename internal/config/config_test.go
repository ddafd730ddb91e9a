package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robocurse/robocurse/internal/roboerr"
	"github.com/robocurse/robocurse/internal/state"
)

func profileStub(name string) *state.Profile {
	return &state.Profile{Name: name, Source: `D:\a`, Destination: `D:\b`}
}

const validJSON = `{
  "global": {
    "max_concurrent_jobs": 4,
    "threads_per_job": 8,
    "bandwidth_limit_mbps": 100,
    "default_mismatch_severity": "warning",
    "retry_count": 3,
    "retry_base_wait_seconds": 5,
    "retry_multiplier": 2,
    "retry_max_wait_seconds": 120,
    "checkpoint_save_frequency": 1,
    "health_check_interval_seconds": 10
  },
  "profiles": [
    {"name": "nightly", "source": "D:\\src", "destination": "\\\\srv\\share", "scan_mode": "flat"}
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidJSON(t *testing.T) {
	path := writeFile(t, "config.json", validJSON)
	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, f.Global.MaxConcurrentJobs)
	require.Len(t, f.Profiles, 1)
	assert.Equal(t, "nightly", f.Profiles[0].Name)
}

func TestLoadValidYAML(t *testing.T) {
	yamlContent := `
global:
  max_concurrent_jobs: 2
  threads_per_job: 4
  default_mismatch_severity: warning
profiles:
  - name: nightly
    source: D:\src
    destination: \\srv\share
    scan_mode: flat
`
	path := writeFile(t, "config.yaml", yamlContent)
	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Global.MaxConcurrentJobs)
}

func TestLoadRejectsOutOfRangeConcurrency(t *testing.T) {
	bad := `{"global":{"max_concurrent_jobs":999,"threads_per_job":8,"default_mismatch_severity":"warning"},
	"profiles":[{"name":"a","source":"D:\\a","destination":"D:\\b"}]}`
	path := writeFile(t, "config.json", bad)
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, roboerr.Is(err, roboerr.ConfigurationInvalid))
}

func TestLoadRejectsUnknownField(t *testing.T) {
	bad := `{"global":{"max_concurrent_jobs":4,"threads_per_job":8,"default_mismatch_severity":"warning"},
	"profiles":[{"name":"a","source":"D:\\a","destination":"D:\\b"}],
	"unexpected_field": true}`
	path := writeFile(t, "config.json", bad)
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, roboerr.Is(err, roboerr.ConfigurationInvalid))
}

func TestLoadRejectsDuplicateProfileNames(t *testing.T) {
	f := &File{
		Global: DefaultGlobalSettings(),
	}
	f.Profiles = append(f.Profiles, profileStub("a"), profileStub("a"))
	err := Validate(f)
	require.Error(t, err)
	assert.True(t, roboerr.Is(err, roboerr.ConfigurationInvalid))
}

func TestLoadRejectsNoProfiles(t *testing.T) {
	f := &File{Global: DefaultGlobalSettings()}
	err := Validate(f)
	require.Error(t, err)
}
