//go:build windows

package mount

import (
	"context"
	"syscall"
	"time"

	"golang.org/x/sys/windows"
)

// winNamedMutex wraps a Windows named mutex (visible to every process on
// the host, unlike an in-process sync.Mutex), so drive-letter allocation
// is serialized across concurrent robocurse invocations.
type winNamedMutex struct {
	name   string
	handle windows.Handle
}

func newNamedMutex(name string) NamedMutex {
	return &winNamedMutex{name: name}
}

func (m *winNamedMutex) Acquire(ctx context.Context) bool {
	namePtr, err := syscall.UTF16PtrFromString(m.name)
	if err != nil {
		return false
	}
	h, err := windows.CreateMutex(nil, false, namePtr)
	if err != nil {
		return false
	}
	m.handle = h

	timeoutMs := uint32(windows.INFINITE)
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 {
			timeoutMs = uint32(remaining.Milliseconds())
		} else {
			timeoutMs = 0
		}
	}

	event, err := windows.WaitForSingleObject(h, timeoutMs)
	if err != nil || event == uint32(windows.WAIT_TIMEOUT) {
		windows.CloseHandle(h)
		return false
	}
	return true
}

func (m *winNamedMutex) Release() {
	if m.handle != 0 {
		windows.ReleaseMutex(m.handle)
		windows.CloseHandle(m.handle)
		m.handle = 0
	}
}
