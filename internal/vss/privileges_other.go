//go:build !windows

package vss

// hasShadowCopyPrivileges always reports true off Windows: shadow copy
// creation is a Windows-only concern, and non-Windows builds exist only
// so the rest of this package (registry, retry policy, remote client)
// is testable without a Windows host.
func hasShadowCopyPrivileges() bool { return true }
