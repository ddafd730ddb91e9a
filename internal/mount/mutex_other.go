//go:build !windows

package mount

import (
	"context"
	"sync"
)

// inProcessMutex stands in for the Windows named mutex off Windows, so
// the allocation logic around it (SelectDriveLetter, MountOne) is
// testable without a Windows host. Named-mutex cross-process
// serialization is a Windows-only concern: the platform this tool
// targets for UNC mounting is Windows, so there's no cross-process
// primitive to generalize here.
type inProcessMutex struct {
	mu sync.Mutex
}

func newNamedMutex(name string) NamedMutex {
	return &inProcessMutex{}
}

func (m *inProcessMutex) Acquire(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		m.mu.Lock()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *inProcessMutex) Release() {
	m.mu.Unlock()
}
