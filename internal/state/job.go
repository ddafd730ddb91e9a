package state

import (
	"os/exec"
	"time"
)

// Job is a running copier process attached to a Chunk (spec §3).
type Job struct {
	Cmd      *exec.Cmd
	Pid      int
	Chunk    *Chunk
	Profile  *Profile
	Started  time.Time
	LogPath  string
	DryRun   bool
	Progress *ProgressBuffer
}
