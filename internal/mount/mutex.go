package mount

import "context"

// NamedMutex is a cross-process lock, used to serialize drive-letter
// allocation across concurrent robocurse invocations on the same host
// (spec §4.6 step 1).
type NamedMutex interface {
	// Acquire blocks until the mutex is held or ctx is done, returning
	// false on timeout/cancellation.
	Acquire(ctx context.Context) bool
	Release()
}
