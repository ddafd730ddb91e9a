// Package roboerr defines the error-kind taxonomy shared by every
// orchestration component. Errors are ordinary values wrapped with
// fmt.Errorf("...: %w", err); the Kind is inspected with Is, which walks the Unwrap chain, to
// decide retry/abort/surface behavior without catching generic errors.
package roboerr

import "fmt"

// Kind identifies which branch of the error-handling design (spec §7) an
// error belongs to.
type Kind string

const (
	UnsafeInput            Kind = "unsafe_input"
	CopierNotFound         Kind = "copier_not_found"
	InsufficientPrivileges Kind = "insufficient_privileges"
	VssTransient           Kind = "vss_transient"
	VssPermanent           Kind = "vss_permanent"
	MountContention        Kind = "mount_contention"
	MountUnverifiable      Kind = "mount_unverifiable"
	CopierRetryable        Kind = "copier_retryable"
	CopierTerminal         Kind = "copier_terminal"
	Timeout                Kind = "timeout"
	CheckpointIoError      Kind = "checkpoint_io_error"
	HealthIoError          Kind = "health_io_error"
	ConfigurationInvalid   Kind = "configuration_invalid"
	UncRequiresCredential  Kind = "unc_requires_credential"
	UnsupportedPlatform    Kind = "unsupported_platform"
)

// Error is a taxonomy-tagged error. Component is the subsystem that
// raised it (e.g. "vss", "mount", "copier") for log correlation.
type Error struct {
	Kind      Kind
	Component string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Component, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a tagged error without an underlying cause.
func New(kind Kind, component, message string) *Error {
	return &Error{Kind: kind, Component: component, Message: message}
}

// Wrap builds a tagged error around an underlying cause.
func Wrap(kind Kind, component, message string, err error) *Error {
	return &Error{Kind: kind, Component: component, Message: message, Err: err}
}

// Is reports whether err (or something it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	var re *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			re = e
			if re.Kind == kind {
				return true
			}
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return false
}

// AbortsRun reports whether a Kind should abort the whole session rather
// than just the current profile/chunk (spec §7 propagation policy).
func AbortsRun(kind Kind) bool {
	switch kind {
	case CopierNotFound, ConfigurationInvalid, MountContention, UncRequiresCredential:
		return true
	default:
		return false
	}
}
