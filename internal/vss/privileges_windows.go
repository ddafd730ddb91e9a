//go:build windows

package vss

import "golang.org/x/sys/windows"

// hasShadowCopyPrivileges reports whether the current process token is
// elevated. Shadow copy creation requires local Administrator rights on
// Windows, so an elevated token is used as the practical proxy for
// "has the privileges to create shadow copies" (spec §4.5 step 2).
func hasShadowCopyPrivileges() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
