//go:build windows

package copier

import (
	"os/exec"
	"sync"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

// jobOnce guards creation of the single per-run Windows job object that
// every launched copier process is assigned to, so all of them die when
// this process dies regardless of how it exits (spec §4.4 "parent-
// lifetime process group (kill-on-close)").
var jobOnce sync.Once
var jobHandle windows.Handle

func runJob() windows.Handle {
	jobOnce.Do(func() {
		h, err := windows.CreateJobObject(nil, nil)
		if err != nil {
			log.WithField("component", component).WithError(err).Error("cannot create job object for copier process group")
			return
		}
		info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
			BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
				LimitFlags: windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE,
			},
		}
		if err := windows.SetInformationJobObject(
			h,
			windows.JobObjectExtendedLimitInformation,
			uintptr(unsafe.Pointer(&info)),
			uint32(unsafe.Sizeof(info)),
		); err != nil {
			log.WithField("component", component).WithError(err).Error("cannot configure kill-on-close for copier job object")
		}
		jobHandle = h
	})
	return jobHandle
}

// attachProcessGroup is a no-op on Windows; assignment to the job object
// happens after Start() in assignToProcessGroup, once a PID exists.
func attachProcessGroup(cmd *exec.Cmd) {}

// assignToProcessGroup adds the already-started process to the shared
// job object so it is killed when this process exits.
func assignToProcessGroup(cmd *exec.Cmd) {
	h := runJob()
	if h == 0 || cmd.Process == nil {
		return
	}
	proc, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(cmd.Process.Pid))
	if err != nil {
		log.WithField("component", component).WithError(err).Warn("cannot open copier process to assign it to the job object")
		return
	}
	defer windows.CloseHandle(proc)
	if err := windows.AssignProcessToJobObject(h, proc); err != nil {
		log.WithField("component", component).WithError(err).Warn("cannot assign copier process to job object")
	}
}
