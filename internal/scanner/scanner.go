// Package scanner walks a source directory tree recursively, descending
// into subdirectories on concurrent goroutines bounded by a semaphore, and
// accumulates per-directory size and file counts for the chunk planner
// (spec §4.2). The walk is not breadth-first. Individual entry failures are reported as warnings; the
// walk always continues.
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

const component = "scanner"

// DirProfile summarizes one directory's immediate + recursive contents.
type DirProfile struct {
	Size  int64
	Files int
}

// TreeProfile is the result of profiling a whole source tree.
type TreeProfile struct {
	TotalSize  int64
	TotalFiles int
	PerSubdir  map[string]DirProfile // relative path -> recursive totals
	Warnings   []string
}

// Scanner profiles directory trees with a bounded cache shared across
// calls within one run.
type Scanner struct {
	cache       *lruCache
	concurrency int64
}

// New builds a Scanner with a cache sized for cacheSize directories and
// up to concurrency parallel subtree walks (spec "[ADDED]" concurrent
// profiling, grounded on the teacher's round-robin worker distribution
// in internal/vmware_nbdkit/extent_utils.go, generalized from disk
// extents to directory subtrees).
func New(cacheSize int, concurrency int64) *Scanner {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Scanner{cache: newLRUCache(cacheSize), concurrency: concurrency}
}

// Reset clears the bounded cache (spec: "Cache is cleared at run reset").
func (s *Scanner) Reset() { s.cache.Clear() }

// ProfileDirectory walks root and returns per-subdirectory size/file
// totals relative to root.
func (s *Scanner) ProfileDirectory(ctx context.Context, root string) (*TreeProfile, error) {
	logger := log.WithFields(log.Fields{"component": component, "root": root})

	result := &TreeProfile{PerSubdir: make(map[string]DirProfile)}
	var warnMu sync.Mutex
	addWarning := func(msg string) {
		warnMu.Lock()
		result.Warnings = append(result.Warnings, msg)
		warnMu.Unlock()
		logger.Warn(msg)
	}

	sem := semaphore.NewWeighted(s.concurrency)

	var walk func(rel string) (DirProfile, error)
	walk = func(rel string) (DirProfile, error) {
		full := filepath.Join(root, rel)
		if cached, ok := s.cache.Get(full); ok {
			return cached, nil
		}

		entries, err := os.ReadDir(full)
		if err != nil {
			addWarning("cannot read directory " + full + ": " + err.Error())
			return DirProfile{}, nil
		}

		var profile DirProfile
		var dirs []string
		for _, e := range entries {
			if e.IsDir() {
				dirs = append(dirs, filepath.Join(rel, e.Name()))
				continue
			}
			info, err := e.Info()
			if err != nil {
				addWarning("cannot stat " + filepath.Join(full, e.Name()) + ": " + err.Error())
				continue
			}
			profile.Size += info.Size()
			profile.Files++
		}

		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, d := range dirs {
			d := d
			_ = sem.Acquire(ctx, 1)
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				child, err := walk(d)
				if err != nil {
					addWarning(err.Error())
					return
				}
				mu.Lock()
				profile.Size += child.Size
				profile.Files += child.Files
				mu.Unlock()
				warnMu.Lock()
				result.PerSubdir[d] = child
				warnMu.Unlock()
			}()
		}
		wg.Wait()

		s.cache.Put(full, profile)
		return profile, nil
	}

	top, err := walk("")
	if err != nil {
		return nil, err
	}
	result.PerSubdir["."] = top
	result.TotalSize = top.Size
	result.TotalFiles = top.Files
	return result, nil
}

// ImmediateChildren lists the direct child directories and loose files
// of dir (spec §4.3). The planner works from ProfileDirectory's result
// and does not call it.
type Entry struct {
	Name  string
	IsDir bool
	Size  int64
}

func ImmediateChildren(dir string) ([]Entry, error) {
	raw, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raw))
	for _, e := range raw {
		if e.IsDir() {
			out = append(out, Entry{Name: e.Name(), IsDir: true})
			continue
		}
		info, err := e.Info()
		if err != nil {
			log.WithField("component", component).WithError(err).Warn("cannot stat entry " + e.Name())
			continue
		}
		out = append(out, Entry{Name: e.Name(), Size: info.Size()})
	}
	return out, nil
}
