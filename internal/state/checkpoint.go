package state

import "time"

// CheckpointVersion is bumped whenever the on-disk shape changes
// incompatibly; Load() rejects older/newer versions it cannot interpret.
const CheckpointVersion = 1

// Checkpoint is the atomic JSON resume/crash-recovery record (spec §3,
// §4.7.5).
type Checkpoint struct {
	Version             int       `json:"version"`
	SessionId           string    `json:"session_id"`
	SavedAt             time.Time `json:"saved_at"`
	CurrentProfileIndex int       `json:"current_profile_index"`
	CurrentProfileName  string    `json:"current_profile_name"`
	CompletedSources    []string  `json:"completed_sources"`
	CompletedCount      int64     `json:"completed_count"`
	SkippedCount        int64     `json:"skipped_count"`
	BytesComplete       int64     `json:"bytes_complete"`
	StartTime           time.Time `json:"start_time"`
}

// IsCompleted reports whether source was already completed according to
// this checkpoint, using Windows case-insensitive path semantics (spec
// §4.7.5).
func (c *Checkpoint) IsCompleted(source string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.CompletedSources {
		if equalFoldPath(s, source) {
			return true
		}
	}
	return false
}

func equalFoldPath(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// ProfileResult summarizes a completed profile run (spec §4.7.4; named
// but not tabulated in spec.md §3, specified in SPEC_FULL.md §3).
type ProfileResult struct {
	ProfileName     string    `json:"profile_name"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	ChunksTotal     int       `json:"chunks_total"`
	ChunksCompleted int       `json:"chunks_completed"`
	ChunksSkipped   int       `json:"chunks_skipped"`
	ChunksFailed    int       `json:"chunks_failed"`
	BytesCopied     int64     `json:"bytes_copied"`
	FilesCopied     int64     `json:"files_copied"`
	Errors          []string  `json:"errors,omitempty"`
}
