// Package mount allocates drive letters for UNC sources/destinations and
// tracks the resulting mappings so they can be recovered after a crash
// (spec §4.6). Grounded on oma/volume/mount.go's MountManager, adapted
// from Linux device-path mounting (devicePrefix, /proc/mounts) to
// Windows UNC-to-drive-letter mapping (`net use`).
package mount

import (
	"encoding/json"
	"os"
	"sort"
	"sync"

	"github.com/robocurse/robocurse/internal/roboerr"
	"github.com/robocurse/robocurse/internal/state"
)

const component = "mount"

// Registry is the on-disk JSON tracking file for every UNC-to-drive
// mapping this tool has created, keyed by drive letter.
type Registry struct {
	path string
	mu   sync.Mutex
	recs map[string]*state.MountRecord
}

func OpenRegistry(path string) (*Registry, error) {
	r := &Registry{path: path, recs: make(map[string]*state.MountRecord)}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, roboerr.Wrap(roboerr.CheckpointIoError, component, "cannot read mount registry", err)
	}
	var list []*state.MountRecord
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, roboerr.Wrap(roboerr.CheckpointIoError, component, "cannot parse mount registry", err)
	}
	for _, rec := range list {
		r.recs[rec.DriveLetter] = rec
	}
	return r, nil
}

func (r *Registry) Add(rec *state.MountRecord) error {
	r.mu.Lock()
	r.recs[rec.DriveLetter] = rec
	r.mu.Unlock()
	return r.save()
}

func (r *Registry) Remove(driveLetter string) error {
	r.mu.Lock()
	delete(r.recs, driveLetter)
	r.mu.Unlock()
	return r.save()
}

func (r *Registry) Get(driveLetter string) (*state.MountRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[driveLetter]
	return rec, ok
}

func (r *Registry) FindByUNCRoot(uncRoot string) []*state.MountRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*state.MountRecord
	for _, rec := range r.recs {
		if rec.UNCRoot == uncRoot {
			out = append(out, rec)
		}
	}
	return out
}

func (r *Registry) All() []*state.MountRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*state.MountRecord, 0, len(r.recs))
	for _, rec := range r.recs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriveLetter < out[j].DriveLetter })
	return out
}

// save performs the same tmp-then-rename atomic write as the VSS
// registry (spec §4.5's "atomic registry writes" note applies equally
// to mount tracking per spec §4.6 step 7 "Record to tracking JSON").
func (r *Registry) save() error {
	r.mu.Lock()
	list := make([]*state.MountRecord, 0, len(r.recs))
	for _, rec := range r.recs {
		list = append(list, rec)
	}
	r.mu.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].DriveLetter < list[j].DriveLetter })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return roboerr.Wrap(roboerr.CheckpointIoError, component, "cannot marshal mount registry", err)
	}

	tmp := r.path + ".tmp"
	bak := r.path + ".bak"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return roboerr.Wrap(roboerr.CheckpointIoError, component, "cannot write mount registry tmp file", err)
	}
	if _, err := os.Stat(r.path); err == nil {
		if err := os.Rename(r.path, bak); err != nil {
			return roboerr.Wrap(roboerr.CheckpointIoError, component, "cannot back up live mount registry", err)
		}
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return roboerr.Wrap(roboerr.CheckpointIoError, component, "cannot install new mount registry", err)
	}
	_ = os.Remove(bak)
	return nil
}
