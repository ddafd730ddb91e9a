// Package state holds the data model shared by every orchestration
// component: Profile, Chunk, Job, ProgressBuffer and the single
// SharedRunState instance mutated by the tick loop and read by
// callbacks and the status API (spec §3).
package state

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Phase is the run's coarse lifecycle stage. Phase transitions only move
// forward: Idle -> Scanning -> Replicating -> {Complete|Stopped} (spec §3
// invariant 7).
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseScanning    Phase = "scanning"
	PhaseReplicating Phase = "replicating"
	PhaseComplete    Phase = "complete"
	PhaseStopped     Phase = "stopped"
)

var phaseRank = map[Phase]int{
	PhaseIdle: 0, PhaseScanning: 1, PhaseReplicating: 2, PhaseComplete: 3, PhaseStopped: 3,
}

// RunState is the single shared-state instance for one orchestrator run.
// Scalar counters are atomics; reference-typed fields share one mutex;
// queues and the active-job map manage their own concurrency.
type RunState struct {
	SessionId string

	phaseMu sync.RWMutex
	phase   Phase

	Profiles            []*Profile
	currentProfileIndex atomic.Int64

	ChunkQueue      *ChunkQueue
	ActiveJobs      *ActiveJobMap
	CompletedChunks *ChunkResultQueue
	FailedChunks    *ChunkResultQueue
	ProfileResults  *ProfileResultQueue
	ErrorMessages   *StringQueue

	completedCount          atomic.Int64
	skippedCount            atomic.Int64
	bytesComplete           atomic.Int64
	completedChunkBytes     atomic.Int64
	completedChunkFiles     atomic.Int64
	skippedChunkBytes       atomic.Int64
	profileStartFiles       atomic.Int64

	stopRequested  atomic.Bool
	pauseRequested atomic.Bool

	StartedAt time.Time

	refMu          sync.Mutex
	currentOptions Options
	currentSnapshot *SnapshotRecord
}

// NewRunState constructs a fresh shared state for a set of profiles.
func NewRunState(profiles []*Profile) *RunState {
	return &RunState{
		SessionId:       uuid.New().String(),
		phase:           PhaseIdle,
		Profiles:        profiles,
		ChunkQueue:      NewChunkQueue(),
		ActiveJobs:      NewActiveJobMap(),
		CompletedChunks: NewChunkResultQueue(),
		FailedChunks:    NewChunkResultQueue(),
		ProfileResults:  NewProfileResultQueue(),
		ErrorMessages:   NewStringQueue(),
		StartedAt:       time.Now(),
	}
}

// Phase returns the current phase.
func (r *RunState) Phase() Phase {
	r.phaseMu.RLock()
	defer r.phaseMu.RUnlock()
	return r.phase
}

// SetPhase advances the phase, refusing to move backward (invariant 7).
// Returns false (no-op) if the requested phase is not a forward move.
func (r *RunState) SetPhase(p Phase) bool {
	r.phaseMu.Lock()
	defer r.phaseMu.Unlock()
	if phaseRank[p] < phaseRank[r.phase] {
		return false
	}
	r.phase = p
	return true
}

// CurrentProfileIndex returns the index of the profile currently being
// replicated.
func (r *RunState) CurrentProfileIndex() int {
	return int(r.currentProfileIndex.Load())
}

// AdvanceProfile moves to the next profile index, returning it.
func (r *RunState) AdvanceProfile() int {
	return int(r.currentProfileIndex.Add(1))
}

// CurrentProfile returns the profile at the current index, or nil if the
// run has advanced past the last profile.
func (r *RunState) CurrentProfile() *Profile {
	idx := r.CurrentProfileIndex()
	if idx < 0 || idx >= len(r.Profiles) {
		return nil
	}
	return r.Profiles[idx]
}

// RequestStop sets the cooperative stop flag.
func (r *RunState) RequestStop() { r.stopRequested.Store(true) }

// StopRequested reports whether a stop has been requested.
func (r *RunState) StopRequested() bool { return r.stopRequested.Load() }

// RequestPause sets the cooperative pause flag.
func (r *RunState) RequestPause() { r.pauseRequested.Store(true) }

// RequestResume clears the pause flag.
func (r *RunState) RequestResume() { r.pauseRequested.Store(false) }

// PauseRequested reports whether the run is currently paused.
func (r *RunState) PauseRequested() bool { return r.pauseRequested.Load() }

// CompletedCount, SkippedCount, BytesComplete, CompletedChunkBytes,
// CompletedChunkFiles, SkippedChunkBytes are exposed both as atomic
// accessors (for the tick loop) and as plain getters (for read-only
// snapshots consumed by callbacks and the status API).

func (r *RunState) AddCompleted(n int64)            { r.completedCount.Add(n) }
func (r *RunState) CompletedCount() int64           { return r.completedCount.Load() }
func (r *RunState) AddSkipped(n int64)              { r.skippedCount.Add(n) }
func (r *RunState) SkippedCount() int64             { return r.skippedCount.Load() }
func (r *RunState) AddBytesComplete(n int64)        { r.bytesComplete.Add(n) }
func (r *RunState) BytesComplete() int64            { return r.bytesComplete.Load() }
func (r *RunState) AddCompletedChunkBytes(n int64)  { r.completedChunkBytes.Add(n) }
func (r *RunState) CompletedChunkBytes() int64      { return r.completedChunkBytes.Load() }
func (r *RunState) AddCompletedChunkFiles(n int64)  { r.completedChunkFiles.Add(n) }
func (r *RunState) CompletedChunkFiles() int64      { return r.completedChunkFiles.Load() }
func (r *RunState) AddSkippedChunkBytes(n int64)    { r.skippedChunkBytes.Add(n) }
func (r *RunState) SkippedChunkBytes() int64        { return r.skippedChunkBytes.Load() }
func (r *RunState) SetProfileStartFiles(n int64)    { r.profileStartFiles.Store(n) }
func (r *RunState) ProfileStartFiles() int64        { return r.profileStartFiles.Load() }

// SetCurrentOptions / CurrentOptions guard the current copier option
// bundle under the shared reference mutex.
func (r *RunState) SetCurrentOptions(o Options) {
	r.refMu.Lock()
	r.currentOptions = o
	r.refMu.Unlock()
}

func (r *RunState) CurrentOptions() Options {
	r.refMu.Lock()
	defer r.refMu.Unlock()
	return r.currentOptions
}

// SetCurrentSnapshot / CurrentSnapshot guard the current profile's VSS
// snapshot reference.
func (r *RunState) SetCurrentSnapshot(s *SnapshotRecord) {
	r.refMu.Lock()
	r.currentSnapshot = s
	r.refMu.Unlock()
}

func (r *RunState) CurrentSnapshot() *SnapshotRecord {
	r.refMu.Lock()
	defer r.refMu.Unlock()
	return r.currentSnapshot
}

// Snapshot is a read-only view of run-level counters for callbacks and
// the status API — never a live reference into RunState.
type Snapshot struct {
	SessionId           string    `json:"session_id"`
	Phase               Phase     `json:"phase"`
	CurrentProfileIndex int       `json:"current_profile_index"`
	CurrentProfileName  string    `json:"current_profile_name"`
	ChunksPending       int       `json:"chunks_pending"`
	ChunksActive        int       `json:"chunks_active"`
	CompletedCount      int64     `json:"completed_count"`
	SkippedCount        int64     `json:"skipped_count"`
	FailedCount         int       `json:"failed_count"`
	BytesComplete       int64     `json:"bytes_complete"`
	StartedAt           time.Time `json:"started_at"`
}

// Snapshot takes a consistent-enough read of run state for observers.
func (r *RunState) Snapshot() Snapshot {
	name := ""
	if p := r.CurrentProfile(); p != nil {
		name = p.Name
	}
	return Snapshot{
		SessionId:           r.SessionId,
		Phase:               r.Phase(),
		CurrentProfileIndex: r.CurrentProfileIndex(),
		CurrentProfileName:  name,
		ChunksPending:       r.ChunkQueue.Count(),
		ChunksActive:        r.ActiveJobs.Count(),
		CompletedCount:      r.CompletedCount(),
		SkippedCount:        r.SkippedCount(),
		FailedCount:         r.FailedChunks.Len(),
		BytesComplete:       r.BytesComplete(),
		StartedAt:           r.StartedAt,
	}
}
