// Package joblog records the lifecycle of the run and its chunks as a
// structured event stream, adapted from the teacher's
// database-backed job tracker (`oma/joblog`, `sendense-backup-client/internal/joblog`)
// to a DB-free shape: this tool has no database (see DESIGN.md
// "Dropped teacher dependencies"), so events land in a JSON-lines file
// plus `sirupsen/logrus` rather than a `job_tracking`/`job_steps` table
// pair.
package joblog

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/robocurse/robocurse/internal/roboerr"
)

const component = "joblog"

// Status mirrors the teacher's job/step status vocabulary.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusSkipped   Status = "skipped"
)

// IsTerminal reports whether the status represents an ended job/chunk.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled || s == StatusSkipped
}

// Event is one line of the job log: a job-level or chunk-level
// lifecycle transition.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	SessionId   string    `json:"session_id"`
	ProfileName string    `json:"profile_name,omitempty"`
	ChunkId     *int64    `json:"chunk_id,omitempty"`
	Kind        string    `json:"kind"` // "session", "profile" or "chunk"
	Status      Status    `json:"status"`
	Message     string    `json:"message,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Tracker appends Events to a JSON-lines file and mirrors each one to
// logrus, matching the teacher's dual "persist + log" StartJob/EndJob
// idiom without the database leg.
type Tracker struct {
	mu   sync.Mutex
	file *os.File
}

// New opens (creating if absent, appending if present) the job log
// file at path.
func New(path string) (*Tracker, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, roboerr.Wrap(roboerr.HealthIoError, component, "cannot open job log", err)
	}
	return &Tracker{file: f}, nil
}

// Close closes the underlying file.
func (t *Tracker) Close() error {
	return t.file.Close()
}

func (t *Tracker) write(e Event) {
	e.Timestamp = time.Now()

	t.mu.Lock()
	data, err := json.Marshal(e)
	if err == nil {
		_, _ = t.file.Write(append(data, '\n'))
	}
	t.mu.Unlock()

	fields := log.Fields{
		"component":  component,
		"session_id": e.SessionId,
		"kind":       e.Kind,
		"status":     e.Status,
	}
	if e.ProfileName != "" {
		fields["profile"] = e.ProfileName
	}
	if e.ChunkId != nil {
		fields["chunk_id"] = *e.ChunkId
	}
	entry := log.WithFields(fields)
	if e.Error != "" {
		entry = entry.WithField("error", e.Error)
	}
	switch e.Status {
	case StatusFailed:
		entry.Warn(e.Message)
	default:
		entry.Info(e.Message)
	}
}

// SessionStarted records the start of a run.
func (t *Tracker) SessionStarted(sessionId string) {
	t.write(Event{SessionId: sessionId, Kind: "session", Status: StatusRunning, Message: "session started"})
}

// SessionEnded records the end of a run.
func (t *Tracker) SessionEnded(sessionId string, status Status, err error) {
	e := Event{SessionId: sessionId, Kind: "session", Status: status, Message: "session ended"}
	if err != nil {
		e.Error = err.Error()
	}
	t.write(e)
}

// ProfileStarted records the start of a profile within the run.
func (t *Tracker) ProfileStarted(sessionId, profileName string) {
	t.write(Event{SessionId: sessionId, ProfileName: profileName, Kind: "profile", Status: StatusRunning, Message: "profile started"})
}

// ProfileEnded records the end of a profile within the run.
func (t *Tracker) ProfileEnded(sessionId, profileName string, status Status) {
	t.write(Event{SessionId: sessionId, ProfileName: profileName, Kind: "profile", Status: status, Message: "profile ended"})
}

// ChunkStarted records a chunk's dispatch.
func (t *Tracker) ChunkStarted(sessionId, profileName string, chunkId int64) {
	t.write(Event{SessionId: sessionId, ProfileName: profileName, ChunkId: &chunkId, Kind: "chunk", Status: StatusRunning, Message: "chunk dispatched"})
}

// ChunkEnded records a chunk's terminal outcome.
func (t *Tracker) ChunkEnded(sessionId, profileName string, chunkId int64, status Status, err error) {
	e := Event{SessionId: sessionId, ProfileName: profileName, ChunkId: &chunkId, Kind: "chunk", Status: status, Message: "chunk ended"}
	if err != nil {
		e.Error = err.Error()
	}
	t.write(e)
}
