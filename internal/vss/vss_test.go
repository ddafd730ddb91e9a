package vss

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robocurse/robocurse/internal/state"
)

type scriptedRunner struct {
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func (r *scriptedRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	key := name
	for _, a := range args {
		key += " " + a
	}
	r.calls = append(r.calls, key)
	for prefix, out := range r.responses {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			return out, r.errs[prefix]
		}
	}
	return "", nil
}

func TestRegistryRoundTripAndAtomicSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	reg, err := OpenRegistry(path)
	require.NoError(t, err)

	rec := &state.SnapshotRecord{ShadowId: "abc", SourceVolume: `C:\`, CreatedAt: time.Now()}
	require.NoError(t, reg.Add(rec))

	reloaded, err := OpenRegistry(path)
	require.NoError(t, err)
	got, ok := reloaded.Get("abc")
	require.True(t, ok)
	assert.Equal(t, `C:\`, got.SourceVolume)

	require.NoError(t, reloaded.Remove("abc"))
	_, ok = reloaded.Get("abc")
	assert.False(t, ok)
}

func TestApplyRetentionKeepsNewestOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	reg, err := OpenRegistry(path)
	require.NoError(t, err)

	now := time.Now()
	for i, id := range []string{"a", "b", "c", "d"} {
		rec := &state.SnapshotRecord{
			ShadowId:     id,
			SourceVolume: `C:\`,
			CreatedAt:    now.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, reg.Add(rec))
	}

	var deleted []string
	errs := reg.ApplyRetention(`C:\`, 2,
		func(r *state.SnapshotRecord) bool { return r.SourceVolume == `C:\` },
		func(r *state.SnapshotRecord) error { deleted = append(deleted, r.ShadowId); return nil },
	)
	assert.Empty(t, errs)
	assert.ElementsMatch(t, []string{"a", "b"}, deleted)
	assert.Len(t, reg.All(), 2)
}

func TestCreateLocalParsesVssadminOutputAndRetriesTransientFailures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	reg, err := OpenRegistry(path)
	require.NoError(t, err)

	runner := &scriptedRunner{
		responses: map[string]string{
			"vssadmin create shadow": "Shadow Copy ID: {11111111-2222-3333-4444-555555555555}\nShadow Copy Volume Name: \\\\?\\GLOBALROOT\\Device\\HarddiskVolumeShadowCopy1\n",
		},
	}

	m := NewManager(reg)
	m.Runner = runner
	m.Policy = RetryPolicy{MaxAttempts: 1, Delay: time.Millisecond}

	rec, err := m.CreateLocal(context.Background(), `C:\data`)
	require.NoError(t, err)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", rec.ShadowId)
	assert.Contains(t, rec.ShadowPath, "HarddiskVolumeShadowCopy1")

	got, ok := reg.Get(rec.ShadowId)
	require.True(t, ok)
	assert.False(t, got.IsRemote)
}

func TestParseUNCSplitsServerShareRelative(t *testing.T) {
	parts, err := ParseUNC(`\\fileserver\backups\2026\q3`)
	require.NoError(t, err)
	assert.Equal(t, "fileserver", parts.Server)
	assert.Equal(t, "backups", parts.Share)
	assert.Equal(t, `2026\q3`, parts.Relative)
}

func TestParseUNCRejectsNonUNCPath(t *testing.T) {
	_, err := ParseUNC(`C:\local\path`)
	assert.Error(t, err)
}

func TestClassifyRetryableVsPermanent(t *testing.T) {
	assert.Equal(t, "vss_transient", string(classify("the volume is currently busy")))
	assert.Equal(t, "vss_permanent", string(classify("unsupported device")))
}
