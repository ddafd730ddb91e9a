package mount

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robocurse/robocurse/internal/state"
)

func TestRegistryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mounts.json")
	reg, err := OpenRegistry(path)
	require.NoError(t, err)

	rec := &state.MountRecord{DriveLetter: "Z:", UNCRoot: `\\srv\share`, CreatedAt: time.Now()}
	require.NoError(t, reg.Add(rec))

	reloaded, err := OpenRegistry(path)
	require.NoError(t, err)
	got, ok := reloaded.Get("Z:")
	require.True(t, ok)
	assert.Equal(t, `\\srv\share`, got.UNCRoot)

	byRoot := reloaded.FindByUNCRoot(`\\srv\share`)
	require.Len(t, byRoot, 1)

	require.NoError(t, reloaded.Remove("Z:"))
	_, ok = reloaded.Get("Z:")
	assert.False(t, ok)
}

func TestUNCShareRootExtractsServerAndShareOnly(t *testing.T) {
	root, err := uncShareRoot(`\\fileserver\backups\2026\q3`)
	require.NoError(t, err)
	assert.Equal(t, `\\fileserver\backups`, root)
}

func TestUNCShareRootRejectsNonUNC(t *testing.T) {
	_, err := uncShareRoot(`D:\local`)
	assert.Error(t, err)
}

func TestReservationPreventsDoubleAllocation(t *testing.T) {
	r := newReservation()
	assert.True(t, r.reserve("Z:"))
	assert.False(t, r.reserve("Z:"))
	r.unreserve("Z:")
	assert.True(t, r.reserve("Z:"))
}

func TestCandidateLettersScansZDownToD(t *testing.T) {
	require.Equal(t, "Z:", candidateLetters[0])
	require.Equal(t, "D:", candidateLetters[len(candidateLetters)-1])
	assert.Len(t, candidateLetters, 23)
}
