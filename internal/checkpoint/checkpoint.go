// Package checkpoint persists and restores the run's resume/crash
// recovery record via atomic tmp-then-rename JSON writes, the same
// pattern used for the VSS and mount registries (spec §4.7.5).
package checkpoint

import (
	"encoding/json"
	"os"

	"github.com/robocurse/robocurse/internal/roboerr"
	"github.com/robocurse/robocurse/internal/state"
)

const component = "checkpoint"

// Store persists one Checkpoint at a fixed path.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save writes cp atomically: write to .tmp, then rename over the live
// file.
func (s *Store) Save(cp *state.Checkpoint) error {
	cp.Version = state.CheckpointVersion
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return roboerr.Wrap(roboerr.CheckpointIoError, component, "cannot marshal checkpoint", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return roboerr.Wrap(roboerr.CheckpointIoError, component, "cannot write checkpoint tmp file", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return roboerr.Wrap(roboerr.CheckpointIoError, component, "cannot install checkpoint", err)
	}
	return nil
}

// Load reads the checkpoint, returning (nil, nil) if none exists yet.
// A version mismatch is a ConfigurationInvalid error rather than a
// silent reset, since resuming against a checkpoint shape this binary
// doesn't understand would corrupt progress counters.
func (s *Store) Load() (*state.Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, roboerr.Wrap(roboerr.CheckpointIoError, component, "cannot read checkpoint", err)
	}

	var cp state.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, roboerr.Wrap(roboerr.CheckpointIoError, component, "cannot parse checkpoint", err)
	}
	if cp.Version != state.CheckpointVersion {
		return nil, roboerr.New(roboerr.ConfigurationInvalid, component, "checkpoint version mismatch, refusing to resume from it")
	}
	return &cp, nil
}

// Remove deletes the checkpoint file, used once a session completes
// successfully so the next run starts fresh.
func (s *Store) Remove() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return roboerr.Wrap(roboerr.CheckpointIoError, component, "cannot remove checkpoint", err)
	}
	return nil
}
