package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robocurse/robocurse/internal/scanner"
	"github.com/robocurse/robocurse/internal/state"
)

func tree(perSubdir map[string]scanner.DirProfile) *scanner.TreeProfile {
	return &scanner.TreeProfile{PerSubdir: perSubdir}
}

func TestPlanSmartSingleFittingSubtreeIsOneChunk(t *testing.T) {
	tp := tree(map[string]scanner.DirProfile{
		".": {Size: 600, Files: 3},
	})
	profile := &state.Profile{ScanMode: state.ScanSmart}
	limits := Limits{MaxSizeBytes: 1024, MaxFiles: 100}

	chunks := Plan(profile, tp, limits)
	require.Len(t, chunks, 1)
	assert.EqualValues(t, 600, chunks[0].EstimatedSize)
	assert.EqualValues(t, 0, chunks[0].ChunkId)
}

func TestPlanSmartSplitsOversizeSubtree(t *testing.T) {
	tp := tree(map[string]scanner.DirProfile{
		".":       {Size: 3000, Files: 30},
		"a":       {Size: 1000, Files: 10},
		"b":       {Size: 1000, Files: 10},
		"c":       {Size: 1000, Files: 10},
	})
	profile := &state.Profile{ScanMode: state.ScanSmart}
	limits := Limits{MaxSizeBytes: 1500, MaxFiles: 100}

	chunks := Plan(profile, tp, limits)
	// root loose-files chunk (/LEV:1) + merged/individual children.
	require.NotEmpty(t, chunks)
	var sawLevArg bool
	for _, c := range chunks {
		for _, a := range c.ExtraArgs {
			if a == "/LEV:1" {
				sawLevArg = true
			}
		}
	}
	assert.True(t, sawLevArg, "oversize subtree split must carry /LEV:1 on the loose-files chunk")

	ids := map[int64]bool{}
	for _, c := range chunks {
		assert.False(t, ids[c.ChunkId], "chunk ids must be unique")
		ids[c.ChunkId] = true
	}
}

func TestPlanSmartEmptyDirectoryProducesValidZeroChunk(t *testing.T) {
	tp := tree(map[string]scanner.DirProfile{
		".": {Size: 0, Files: 0},
	})
	profile := &state.Profile{ScanMode: state.ScanSmart}
	limits := Limits{MaxSizeBytes: 1000, MaxFiles: 10}

	chunks := Plan(profile, tp, limits)
	require.Len(t, chunks, 1)
	assert.EqualValues(t, 0, chunks[0].EstimatedSize)
	assert.Equal(t, state.ChunkPending, chunks[0].Status)
}

func TestPlanFlatProducesOneChunkPerTopLevelChildPlusFilesOnly(t *testing.T) {
	tp := tree(map[string]scanner.DirProfile{
		".":    {Size: 700, Files: 7},
		"dirA": {Size: 300, Files: 3},
		"dirB": {Size: 300, Files: 3},
	})
	profile := &state.Profile{ScanMode: state.ScanFlat}
	limits := Limits{MaxSizeBytes: 10_000, MaxFiles: 1000}

	chunks := Plan(profile, tp, limits)
	require.Len(t, chunks, 3)
	assert.Equal(t, ".", chunks[0].SourceSubpath)
	assert.Contains(t, chunks[0].ExtraArgs, "/LEV:1")
	assert.EqualValues(t, 100, chunks[0].EstimatedSize) // 700 - 300 - 300
}

func TestChunkIdsAreDeterministicForSameScanResult(t *testing.T) {
	tp := tree(map[string]scanner.DirProfile{
		".":    {Size: 700, Files: 7},
		"dirA": {Size: 300, Files: 3},
		"dirB": {Size: 300, Files: 3},
	})
	profile := &state.Profile{ScanMode: state.ScanFlat}
	limits := Limits{MaxSizeBytes: 10_000, MaxFiles: 1000}

	first := Plan(profile, tp, limits)
	second := Plan(profile, tp, limits)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ChunkId, second[i].ChunkId)
		assert.Equal(t, first[i].SourceSubpath, second[i].SourceSubpath)
	}
}

func TestPlanSmartMergedSiblingsEachKeepTheirOwnSize(t *testing.T) {
	tp := tree(map[string]scanner.DirProfile{
		".": {Size: 240, Files: 3},
		"a": {Size: 80, Files: 1},
		"b": {Size: 80, Files: 1},
		"c": {Size: 80, Files: 1},
	})
	profile := &state.Profile{ScanMode: state.ScanSmart}
	limits := Limits{MaxSizeBytes: 200, MaxFiles: 1000}

	chunks := Plan(profile, tp, limits)

	sizes := map[string]int64{}
	var total int64
	for _, c := range chunks {
		sizes[c.SourceSubpath] = c.EstimatedSize
		total += c.EstimatedSize
	}

	assert.EqualValues(t, 80, sizes["a"], "a merged with b must keep its own size, not the pair's sum")
	assert.EqualValues(t, 80, sizes["b"])
	assert.EqualValues(t, 80, sizes["c"])
	assert.EqualValues(t, 240, total, "declared EstimatedSize across chunks must equal actual scanned bytes")
}

func TestChunkPreservesRelativePathForDestination(t *testing.T) {
	c := &state.Chunk{SourceSubpath: `sub\dir`, DestSubpath: `sub\dir`}
	p := &state.Profile{Source: `D:\src`, Destination: `E:\dst`}
	src, dst := c.ResolvedPaths(p)
	assert.Equal(t, `D:\src\sub\dir`, src)
	assert.Equal(t, `E:\dst\sub\dir`, dst)
}
