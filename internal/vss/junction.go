package vss

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robocurse/robocurse/internal/roboerr"
	"github.com/robocurse/robocurse/internal/state"
)

// CreateLocalJunction creates a directory reparse point in the system
// temp directory pointing at the shadow path (plus any requested
// sub-path), via `mklink /J` — junctions don't require elevated
// privileges, unlike symlinks (spec §4.5 "Exposing the snapshot...
// Local").
func (m *Manager) CreateLocalJunction(ctx context.Context, rec *state.SnapshotRecord, subPath string) (string, error) {
	linkPath := filepath.Join(os.TempDir(), "robocurse-vss-"+randomHex(16))
	target := rec.ShadowPath
	if subPath != "" {
		target = filepath.Join(target, subPath)
	}

	if _, err := m.Runner.Run(ctx, "cmd", "/c", "mklink", "/J", linkPath, target); err != nil {
		return "", roboerr.Wrap(roboerr.VssPermanent, component, "cannot create local junction", err)
	}
	rec.JunctionPath = linkPath
	return linkPath, nil
}

// RemoveLocalJunction deletes the reparse point without touching the
// shadow copy it points into. Junctions are removed with `rmdir`, never
// a recursive delete, since `rmdir` on a reparse point only unlinks it.
func (m *Manager) RemoveLocalJunction(ctx context.Context, linkPath string) error {
	if linkPath == "" {
		return nil
	}
	if _, err := m.Runner.Run(ctx, "cmd", "/c", "rmdir", linkPath); err != nil {
		return roboerr.Wrap(roboerr.VssPermanent, component, "cannot remove local junction", err)
	}
	return nil
}

// CreateRemoteJunctionForShare creates the junction on the server inside
// the share directory (spec §4.5 "Exposing the snapshot... Remote"),
// returning the UNC path clients should read through.
func (m *Manager) CreateRemoteJunctionForShare(ctx context.Context, rec *state.SnapshotRecord, subPath string, cred *state.Credential) (string, error) {
	name := ".robocurse-vss-" + randomHex(16)
	linkPath := filepath.Join(rec.ShareLocalPath, name)
	target := rec.ShadowPath
	if subPath != "" {
		target = filepath.Join(target, subPath)
	}

	if err := m.HTTP.CreateRemoteJunction(ctx, rec.ServerName, target, linkPath, cred); err != nil {
		return "", err
	}
	rec.JunctionPath = linkPath
	return fmt.Sprintf(`\\%s\%s\%s`, rec.ServerName, rec.ShareName, name), nil
}

func (m *Manager) RemoveRemoteJunctionForShare(ctx context.Context, rec *state.SnapshotRecord, cred *state.Credential) error {
	if rec.JunctionPath == "" {
		return nil
	}
	return m.HTTP.RemoveRemoteJunction(ctx, rec.ServerName, rec.JunctionPath, cred)
}

func randomHex(n int) string {
	buf := make([]byte, n/2)
	if _, err := rand.Read(buf); err != nil {
		return "fallback000000"
	}
	return hex.EncodeToString(buf)
}
