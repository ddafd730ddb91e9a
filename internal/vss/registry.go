// Package vss coordinates Volume Shadow Copy snapshot creation, junction
// exposure, retention, and orphan recovery (spec §4.5). Grounded on the
// teacher's createSnapshot/removeSnapshot lifecycle in
// internal/vmware_nbdkit/vmware_nbdkit.go, generalized from VMware
// snapshots to Windows VSS shadow copies.
package vss

import (
	"encoding/json"
	"os"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/robocurse/robocurse/internal/roboerr"
	"github.com/robocurse/robocurse/internal/state"
)

const component = "vss"

// Registry is the on-disk JSON tracking file for every snapshot this
// tool has created, keyed by ShadowId. Only entries present here count
// toward retention (spec §4.5 "only those present in the in-process
// registry... count toward retention").
type Registry struct {
	path string
	mu   sync.Mutex
	recs map[string]*state.SnapshotRecord
}

func OpenRegistry(path string) (*Registry, error) {
	r := &Registry{path: path, recs: make(map[string]*state.SnapshotRecord)}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, roboerr.Wrap(roboerr.CheckpointIoError, component, "cannot read snapshot registry", err)
	}
	var list []*state.SnapshotRecord
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, roboerr.Wrap(roboerr.CheckpointIoError, component, "cannot parse snapshot registry", err)
	}
	for _, rec := range list {
		r.recs[rec.ShadowId] = rec
	}
	return r, nil
}

func (r *Registry) Add(rec *state.SnapshotRecord) error {
	r.mu.Lock()
	r.recs[rec.ShadowId] = rec
	r.mu.Unlock()
	return r.save()
}

func (r *Registry) Remove(shadowID string) error {
	r.mu.Lock()
	delete(r.recs, shadowID)
	r.mu.Unlock()
	return r.save()
}

// All returns a snapshot of every tracked record, oldest first.
func (r *Registry) All() []*state.SnapshotRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*state.SnapshotRecord, 0, len(r.recs))
	for _, rec := range r.recs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *Registry) Get(shadowID string) (*state.SnapshotRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[shadowID]
	return rec, ok
}

// save performs the tmp-then-rename atomic write the spec requires
// (§4.5 "Atomic registry writes"): write to .tmp, back up the live file
// to .bak if one exists, rename .tmp over the live path, then remove the
// backup.
func (r *Registry) save() error {
	r.mu.Lock()
	list := make([]*state.SnapshotRecord, 0, len(r.recs))
	for _, rec := range r.recs {
		list = append(list, rec)
	}
	r.mu.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return roboerr.Wrap(roboerr.CheckpointIoError, component, "cannot marshal snapshot registry", err)
	}

	tmp := r.path + ".tmp"
	bak := r.path + ".bak"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return roboerr.Wrap(roboerr.CheckpointIoError, component, "cannot write snapshot registry tmp file", err)
	}
	if _, err := os.Stat(r.path); err == nil {
		if err := os.Rename(r.path, bak); err != nil {
			return roboerr.Wrap(roboerr.CheckpointIoError, component, "cannot back up live snapshot registry", err)
		}
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return roboerr.Wrap(roboerr.CheckpointIoError, component, "cannot install new snapshot registry", err)
	}
	_ = os.Remove(bak)
	return nil
}

// RecoverOrphans attempts to delete every tracked snapshot at startup,
// removing each successfully-deleted entry and leaving failures for the
// next invocation to retry (spec §4.5 "Orphan recovery at startup").
func (r *Registry) RecoverOrphans(deleter func(*state.SnapshotRecord) error) {
	for _, rec := range r.All() {
		if err := deleter(rec); err != nil {
			log.WithFields(log.Fields{"component": component, "shadow_id": rec.ShadowId}).
				WithError(err).Warn("orphan snapshot cleanup failed, will retry on next run")
			continue
		}
		if err := r.Remove(rec.ShadowId); err != nil {
			log.WithField("component", component).WithError(err).Warn("cannot update registry after orphan cleanup")
		}
	}
}

// ApplyRetention keeps the newest keepCount entries for a given target
// (a local volume or a remote server+share) and deletes the rest,
// accumulating errors rather than stopping at the first failure (spec
// §4.5 "apply_retention").
func (r *Registry) ApplyRetention(target string, keepCount int, matches func(*state.SnapshotRecord) bool, deleter func(*state.SnapshotRecord) error) []error {
	var candidates []*state.SnapshotRecord
	for _, rec := range r.All() {
		if matches(rec) {
			candidates = append(candidates, rec)
		}
	}
	if len(candidates) <= keepCount {
		return nil
	}
	toDelete := candidates[:len(candidates)-keepCount]

	var errs []error
	for _, rec := range toDelete {
		if err := deleter(rec); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := r.Remove(rec.ShadowId); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
