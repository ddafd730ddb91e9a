package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/robocurse/robocurse/internal/roboerr"
)

// Watcher warns when the config file changes on disk while a headless
// run is in flight. It never hot-reloads — the orchestrator reads
// configuration once at startup (spec §6 "read-only"); this exists
// purely so an operator who edits the file mid-run finds out from the
// log rather than silently running against a stale copy until the next
// scheduled invocation.
type Watcher struct {
	fsw  *fsnotify.Watcher
	path string
}

// NewWatcher starts watching path's containing directory (watching the
// directory, not the file itself, tolerates editors that replace the
// file via rename-on-save rather than writing in place).
func NewWatcher(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, roboerr.Wrap(roboerr.ConfigurationInvalid, component, "cannot create config watcher", err)
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, roboerr.Wrap(roboerr.ConfigurationInvalid, component, "cannot watch config directory", err)
	}
	return &Watcher{fsw: fsw, path: path}, nil
}

// Run blocks, logging a warning each time the watched config file is
// created, written, or renamed, until stop is closed.
func (w *Watcher) Run(stop <-chan struct{}) {
	base := filepath.Base(w.path)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			log.WithFields(log.Fields{
				"component": component,
				"path":      event.Name,
				"op":        event.Op.String(),
			}).Warn("configuration file changed on disk; restart to apply")
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.WithField("component", component).WithError(err).Warn("config watcher error")
		case <-stop:
			return
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
