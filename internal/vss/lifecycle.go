package vss

import (
	"context"

	"github.com/robocurse/robocurse/internal/state"
)

// Cleanup removes a snapshot's exposing junction (if any) before the
// snapshot itself, in that strict order — deleting a snapshot while a
// junction still points into it leaks the junction (spec §4.5 "Cleanup
// order (critical)").
func (m *Manager) Cleanup(ctx context.Context, rec *state.SnapshotRecord, cred *state.Credential) error {
	if rec.IsRemote {
		if err := m.RemoveRemoteJunctionForShare(ctx, rec, cred); err != nil {
			return err
		}
		return m.HTTP.DeleteShadowCopy(ctx, rec.ServerName, rec.ShadowId, cred)
	}
	if err := m.RemoveLocalJunction(ctx, rec.JunctionPath); err != nil {
		return err
	}
	return m.DeleteLocal(ctx, rec)
}
