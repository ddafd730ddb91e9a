// Package health maintains the atomic health file the orchestrator
// writes for external readers, and the staleness check those readers
// apply to it (spec §4.8).
package health

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/robocurse/robocurse/internal/roboerr"
	"github.com/robocurse/robocurse/internal/state"
)

const component = "health"

// Status is the JSON shape written to the health file and served at
// /healthz.
type Status struct {
	Timestamp              time.Time   `json:"timestamp"`
	Phase                  state.Phase `json:"phase"`
	SessionId              string      `json:"session_id"`
	CurrentProfileName     string      `json:"current_profile_name"`
	CurrentProfileIndex    int         `json:"current_profile_index"`
	ChunksCompleted        int         `json:"chunks_completed"`
	ChunksTotal            int         `json:"chunks_total"`
	ChunksPending          int         `json:"chunks_pending"`
	ChunksFailed           int         `json:"chunks_failed"`
	ActiveJobCount         int         `json:"active_job_count"`
	BytesComplete          int64       `json:"bytes_complete"`
	EstimatedSecondsRemain *int64      `json:"estimated_seconds_remaining,omitempty"`
	Healthy                bool        `json:"healthy"`
	Message                string      `json:"message"`
}

// Stale reports whether this status is older than threshold as of now.
// External readers that don't trust the Healthy flag alone (e.g. a
// process that crashed mid-write leaving a last-good file behind) use
// this instead.
func (s Status) Stale(now time.Time, threshold time.Duration) bool {
	return now.Sub(s.Timestamp) > threshold
}

// Writer rewrites the health file at most once per interval, guarding
// against the orchestrator's tick loop calling Write far more often
// than any reader cares about (spec §4.8 "at most every
// HealthCheckIntervalSeconds").
type Writer struct {
	path     string
	interval time.Duration

	mu       sync.Mutex
	lastWrite time.Time
}

// NewWriter constructs a Writer. interval <= 0 disables throttling
// (every Write call hits disk), which is useful for tests.
func NewWriter(path string, interval time.Duration) *Writer {
	return &Writer{path: path, interval: interval}
}

// Write rewrites the health file atomically (tmp-then-rename), unless
// less than the configured interval has elapsed since the last write
// and force is false.
func (w *Writer) Write(s Status, force bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	if !force && w.interval > 0 && !w.lastWrite.IsZero() && now.Sub(w.lastWrite) < w.interval {
		return nil
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return roboerr.Wrap(roboerr.HealthIoError, component, "cannot marshal health status", err)
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return roboerr.Wrap(roboerr.HealthIoError, component, "cannot write health tmp file", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return roboerr.Wrap(roboerr.HealthIoError, component, "cannot install health file", err)
	}

	w.lastWrite = now
	return nil
}

// BuildStatus derives a Status from the run's shared state and the
// given failure/phase context. message is the human-readable summary
// line; anyFailures reflects whether any chunk has ever failed this
// session, since Healthy must go false once a failure has occurred
// even if the phase itself hasn't moved to Stopped.
func BuildStatus(r *state.RunState, chunksTotal int, anyFailures bool, message string) Status {
	snap := r.Snapshot()
	healthy := snap.Phase != state.PhaseStopped && !anyFailures

	return Status{
		Timestamp:           time.Now(),
		Phase:               snap.Phase,
		SessionId:           snap.SessionId,
		CurrentProfileName:  snap.CurrentProfileName,
		CurrentProfileIndex: snap.CurrentProfileIndex,
		ChunksCompleted:     int(snap.CompletedCount),
		ChunksTotal:         chunksTotal,
		ChunksPending:       snap.ChunksPending,
		ChunksFailed:        snap.FailedCount,
		ActiveJobCount:      snap.ChunksActive,
		BytesComplete:       snap.BytesComplete,
		Healthy:             healthy,
		Message:             message,
	}
}

// Load reads a health file back, used by the status API handler and by
// tests. Returns (nil, nil) if the file doesn't exist yet.
func Load(path string) (*Status, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, roboerr.Wrap(roboerr.HealthIoError, component, "cannot read health file", err)
	}
	var s Status
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, roboerr.Wrap(roboerr.HealthIoError, component, "cannot parse health file", err)
	}
	return &s, nil
}
