package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseOnlyMovesForward(t *testing.T) {
	r := NewRunState(nil)
	require.True(t, r.SetPhase(PhaseScanning))
	require.True(t, r.SetPhase(PhaseReplicating))
	assert.False(t, r.SetPhase(PhaseScanning), "phase must not move backward")
	assert.Equal(t, PhaseReplicating, r.Phase())
	require.True(t, r.SetPhase(PhaseComplete))
}

func TestActiveJobMapExtractIsAtMostOnce(t *testing.T) {
	m := NewActiveJobMap()
	job := &Job{Pid: 42, Chunk: &Chunk{ChunkId: 1}}
	m.Insert(42, job)

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ok := m.Extract(42)
			results[i] = ok
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range results {
		if ok {
			count++
		}
	}
	assert.Equal(t, 1, count, "exactly one extractor should win")
	assert.Equal(t, 0, m.Count())
}

func TestChunkQueueDrainDoesNotReassignUnderConcurrentSnapshotRead(t *testing.T) {
	q := NewChunkQueue()
	for i := int64(0); i < 5; i++ {
		q.Push(&Chunk{ChunkId: i})
	}
	assert.Equal(t, 5, q.Count())
	drained := q.Drain()
	assert.Len(t, drained, 5)
	assert.Equal(t, 0, q.Count())
}

func TestCheckpointIsCompletedCaseInsensitive(t *testing.T) {
	ckpt := &Checkpoint{CompletedSources: []string{`D:\Data\foo`}}
	assert.True(t, ckpt.IsCompleted(`d:\data\FOO`))
	assert.False(t, ckpt.IsCompleted(`d:\data\bar`))
}

func TestCounterIntegrityInvariant(t *testing.T) {
	r := NewRunState(nil)
	r.CompletedChunks.Append(&Chunk{ChunkId: 1})
	r.CompletedChunks.Append(&Chunk{ChunkId: 2})
	r.FailedChunks.Append(&Chunk{ChunkId: 3})
	r.AddCompleted(3)
	r.AddSkipped(0)

	completedCount := r.CompletedCount()
	assert.EqualValues(t, completedCount, int64(r.CompletedChunks.Len())+r.SkippedCount()+int64(r.FailedChunks.Len()))
}
