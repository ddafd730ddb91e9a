//go:build !windows

package copier

import "os/exec"

// attachProcessGroup and assignToProcessGroup are Windows-only concerns
// (job objects); the orchestrator itself is portable and copier runs are
// expected on Windows hosts only (spec's robocopy dependency is
// Windows-specific), so non-Windows builds are no-ops kept only so the
// package compiles for development and testing off Windows.
func attachProcessGroup(cmd *exec.Cmd) {}

func assignToProcessGroup(cmd *exec.Cmd) {}
