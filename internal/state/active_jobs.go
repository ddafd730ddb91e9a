package state

import "sync"

// ActiveJobMap is the active-job map keyed by child pid. Removal uses an
// atomic extract (LoadAndDelete) so a chunk is reaped by at most one
// caller even under adversarial concurrent reap attempts (spec §3
// invariant 4, §5 "atomic extract/remove-and-return primitive").
type ActiveJobMap struct {
	m sync.Map // pid(int) -> *Job
}

func NewActiveJobMap() *ActiveJobMap { return &ActiveJobMap{} }

// Insert adds a job to the map.
func (a *ActiveJobMap) Insert(pid int, job *Job) {
	a.m.Store(pid, job)
}

// Extract atomically removes and returns the job for pid, if present.
// The bool reports whether it was still there — false means some other
// caller already extracted it.
func (a *ActiveJobMap) Extract(pid int) (*Job, bool) {
	v, ok := a.m.LoadAndDelete(pid)
	if !ok {
		return nil, false
	}
	return v.(*Job), true
}

// Snapshot returns a point-in-time copy of all active jobs, safe to
// range over while other goroutines mutate the underlying map.
func (a *ActiveJobMap) Snapshot() []*Job {
	var out []*Job
	a.m.Range(func(_, v any) bool {
		out = append(out, v.(*Job))
		return true
	})
	return out
}

// Count returns the number of currently active jobs.
func (a *ActiveJobMap) Count() int {
	n := 0
	a.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Clear removes every entry, returning what was present (used by
// stop-all, spec §4.7.3).
func (a *ActiveJobMap) Clear() []*Job {
	jobs := a.Snapshot()
	for _, j := range jobs {
		a.m.Delete(j.Pid)
	}
	return jobs
}
