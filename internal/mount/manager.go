package mount

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/robocurse/robocurse/internal/roboerr"
	"github.com/robocurse/robocurse/internal/state"
)

var errNoDriveLettersAvailable = roboerr.New(roboerr.MountContention, component, "no drive letters available in Z..D")

const mutexTimeout = 30 * time.Second

// Manager coordinates UNC-to-drive-letter mounts against a Registry,
// serializing drive-letter allocation behind a named cross-process
// mutex (spec §4.6 step 1).
type Manager struct {
	Registry     *Registry
	reservations *reservation
	Mutex        NamedMutex
}

func NewManager(reg *Registry) *Manager {
	return &Manager{Registry: reg, reservations: newReservation(), Mutex: newNamedMutex("Global\\RobocurseMountAllocation")}
}

// MountOne mounts a single UNC path, following the ordered steps in spec
// §4.6 mount_one. The spec's "AllocationTimeout" failure on a mutex
// acquisition timeout is surfaced as roboerr.MountContention (see
// DESIGN.md) since the taxonomy has no separate allocation-specific
// kind and mount contention is exactly what a timed-out allocation lock
// represents.
func (m *Manager) MountOne(ctx context.Context, uncPath string, cred *state.Credential) (*state.MountRecord, error) {
	uncRoot, err := uncShareRoot(uncPath)
	if err != nil {
		return nil, err
	}

	acquireCtx, cancel := context.WithTimeout(ctx, mutexTimeout)
	defer cancel()
	if !m.Mutex.Acquire(acquireCtx) {
		return nil, roboerr.New(roboerr.MountContention, component, "timed out acquiring drive-letter allocation mutex")
	}
	defer m.Mutex.Release()

	m.removeStaleMappings(ctx, uncRoot)

	letter, err := m.SelectDriveLetter(ctx)
	if err != nil {
		return nil, err
	}

	rec := &state.MountRecord{
		DriveLetter:  letter,
		UNCRoot:      uncRoot,
		OriginalPath: uncPath,
		MappedPath:   strings.Replace(uncPath, uncRoot, letter, 1),
		CreatedAt:    time.Now(),
	}

	if err := m.createPersistentMapping(ctx, letter, uncRoot, cred); err != nil {
		m.reservations.unreserve(letter)
		return nil, err
	}
	m.reservations.unreserve(letter)

	if !m.verify(ctx, letter) {
		_ = m.removeMapping(ctx, letter)
		return nil, roboerr.New(roboerr.MountUnverifiable, component, "mount did not pass verification: "+letter)
	}

	if err := m.Registry.Add(rec); err != nil {
		_ = m.removeMapping(ctx, letter)
		return nil, err
	}
	return rec, nil
}

func (m *Manager) removeStaleMappings(ctx context.Context, uncRoot string) {
	for _, rec := range m.Registry.FindByUNCRoot(uncRoot) {
		if err := m.removeMapping(ctx, rec.DriveLetter); err != nil {
			log.WithFields(log.Fields{"component": component, "drive": rec.DriveLetter}).
				WithError(err).Warn("could not remove stale mapping")
		}
		_ = m.Registry.Remove(rec.DriveLetter)
	}
}

// createPersistentMapping mounts with persist semantics so external
// processes (the copier) can see it (spec §4.6 step 5).
func (m *Manager) createPersistentMapping(ctx context.Context, letter, uncRoot string, cred *state.Credential) error {
	args := []string{"use", letter, uncRoot, "/persistent:yes"}
	if cred != nil && cred.Username != "" {
		user := cred.Username
		if cred.Domain != "" {
			user = cred.Domain + `\` + cred.Username
		}
		args = append(args, cred.Password, "/user:"+user)
	}
	cmd := exec.CommandContext(ctx, "net", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return roboerr.Wrap(roboerr.MountContention, component, fmt.Sprintf("net use failed: %s", strings.TrimSpace(string(out))), err)
	}
	return nil
}

// Dismount removes a mapping, preferring "forget remembered SMB
// mapping" (/delete) over a lighter per-process remove so Windows
// doesn't silently reconnect it later (spec §4.6 dismount).
func (m *Manager) Dismount(ctx context.Context, rec *state.MountRecord) error {
	if err := m.removeMapping(ctx, rec.DriveLetter); err != nil {
		return err
	}
	return m.Registry.Remove(rec.DriveLetter)
}

func (m *Manager) removeMapping(ctx context.Context, letter string) error {
	cmd := exec.CommandContext(ctx, "net", "use", letter, "/delete", "/yes")
	if out, err := cmd.CombinedOutput(); err != nil {
		return roboerr.Wrap(roboerr.MountContention, component, fmt.Sprintf("net use /delete failed: %s", strings.TrimSpace(string(out))), err)
	}
	return nil
}

// verify enumerates one entry from the drive root; a lazy mount that
// never actually authenticated fails here (spec §4.6 step 9).
func (m *Manager) verify(ctx context.Context, letter string) bool {
	entries, err := listOneEntry(letter + `\`)
	return err == nil && entries
}

// RecoverOrphans implements spec §4.6 recover_orphans: for each tracked
// mapping, if the letter is still mapped to the same root, remove it;
// the registry is updated atomically per entry so a crash mid-recovery
// leaves only the remaining, not-yet-processed entries for retry.
func (m *Manager) RecoverOrphans(ctx context.Context) {
	inUse, err := remembered(ctx)
	if err != nil {
		return
	}
	for _, rec := range m.Registry.All() {
		if !inUse[rec.DriveLetter] {
			_ = m.Registry.Remove(rec.DriveLetter)
			continue
		}
		out, _ := exec.CommandContext(ctx, "net", "use", rec.DriveLetter).CombinedOutput()
		if !strings.Contains(strings.ToLower(string(out)), strings.ToLower(rec.UNCRoot)) {
			// The letter now points elsewhere; leave that mapping alone.
			_ = m.Registry.Remove(rec.DriveLetter)
			continue
		}
		if err := m.removeMapping(ctx, rec.DriveLetter); err != nil {
			log.WithFields(log.Fields{"component": component, "drive": rec.DriveLetter}).
				WithError(err).Warn("orphan mount cleanup failed, will retry on next run")
			continue
		}
		_ = m.Registry.Remove(rec.DriveLetter)
	}
}

func uncShareRoot(uncPath string) (string, error) {
	trimmed := strings.TrimPrefix(uncPath, `\\`)
	if trimmed == uncPath {
		return "", roboerr.New(roboerr.UnsafeInput, component, "not a UNC path: "+uncPath)
	}
	segments := strings.SplitN(trimmed, `\`, 3)
	if len(segments) < 2 {
		return "", roboerr.New(roboerr.UnsafeInput, component, "malformed UNC path: "+uncPath)
	}
	return `\\` + segments[0] + `\` + segments[1], nil
}
