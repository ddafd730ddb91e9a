package vss

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/robocurse/robocurse/internal/roboerr"
	"github.com/robocurse/robocurse/internal/state"
)

var shadowIDPattern = regexp.MustCompile(`(?i)Shadow Copy ID:\s*\{?([0-9a-f-]+)\}?`)
var shadowDevicePattern = regexp.MustCompile(`(?i)Shadow Copy Volume(?: Name)?:\s*(\S.*\S)\s*$`)
var shadowStoragePercent = regexp.MustCompile(`(?i)Used Shadow Copy Storage space:.*\(([\d.]+)%\)`)

// Runner abstracts command execution so tests can stub vssadmin-style
// output without a real Windows host.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout string, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// Manager coordinates local and remote snapshot lifecycle against a
// Registry.
type Manager struct {
	Registry *Registry
	Runner   Runner
	Policy   RetryPolicy
	HTTP     *RemoteClient
}

func NewManager(reg *Registry) *Manager {
	return &Manager{Registry: reg, Runner: execRunner{}, Policy: DefaultRetryPolicy(), HTTP: NewRemoteClient()}
}

// CreateLocal creates a shadow copy of a local drive-letter volume (spec
// §4.5 create_local).
func (m *Manager) CreateLocal(ctx context.Context, sourcePath string) (*state.SnapshotRecord, error) {
	volume, err := driveLetterVolume(sourcePath)
	if err != nil {
		return nil, err
	}

	if !hasShadowCopyPrivileges() {
		return nil, roboerr.New(roboerr.InsufficientPrivileges, component, "current security context cannot create shadow copies")
	}

	m.warnIfShadowStorageTight(ctx, volume)

	var rec *state.SnapshotRecord
	err = Retry(m.Policy, func(attempt int) error {
		out, runErr := m.Runner.Run(ctx, "vssadmin", "create", "shadow", "/for="+volume)
		if runErr != nil {
			return roboerr.Wrap(classify(out+runErr.Error()), component, "vssadmin create shadow failed", runErr)
		}

		idMatch := shadowIDPattern.FindStringSubmatch(out)
		deviceMatch := shadowDevicePattern.FindStringSubmatch(out)
		if idMatch == nil || deviceMatch == nil {
			return roboerr.New(roboerr.VssPermanent, component, "cannot parse vssadmin output: "+out)
		}

		rec = &state.SnapshotRecord{
			ShadowId:     idMatch[1],
			SourceVolume: volume,
			ShadowPath:   strings.TrimSpace(deviceMatch[1]),
			CreatedAt:    time.Now(),
			IsRemote:     false,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := m.Registry.Add(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteLocal deletes a tracked shadow copy by id, junction first (the
// caller is responsible for tearing down any exposing junction before
// calling this — spec §4.5 "Cleanup order").
func (m *Manager) DeleteLocal(ctx context.Context, rec *state.SnapshotRecord) error {
	_, err := m.Runner.Run(ctx, "vssadmin", "delete", "shadows", "/shadow="+rec.ShadowId, "/quiet")
	if err != nil {
		return roboerr.Wrap(roboerr.VssPermanent, component, "vssadmin delete shadows failed", err)
	}
	return nil
}

func (m *Manager) warnIfShadowStorageTight(ctx context.Context, volume string) {
	out, err := m.Runner.Run(ctx, "vssadmin", "list", "shadowstorage", "/for="+volume)
	if err != nil {
		return
	}
	match := shadowStoragePercent.FindStringSubmatch(out)
	if match == nil {
		return
	}
	pct, err := strconv.ParseFloat(match[1], 64)
	if err == nil && pct > 90 {
		log.WithFields(log.Fields{"component": component, "volume": volume, "used_percent": pct}).
			Warn("shadow copy storage is nearly exhausted on this volume")
	}
}

func driveLetterVolume(path string) (string, error) {
	path = strings.TrimSpace(path)
	if len(path) < 2 || path[1] != ':' {
		return "", roboerr.New(roboerr.UnsafeInput, component, fmt.Sprintf("not a local drive-letter path: %q", path))
	}
	return strings.ToUpper(path[:2]) + `\`, nil
}
