package copier

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/robocurse/robocurse/internal/roboerr"
	"github.com/robocurse/robocurse/internal/state"
)

const component = "copier"

var newFileLine = regexp.MustCompile(`^\s*(New File|Newer|Older|Changed)\s+(\d+)\s+(.+)$`)
var percentLine = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*%`)

// Runner launches and supervises one copier invocation against a parsed
// argument list, feeding a ProgressBuffer from its stdout — grounded on
// the teacher's nbdcopy.Run pattern (exec.Command + async line scanning
// + cmd.Wait() on a channel), generalized from a percentage pipe to the
// copier's richer per-file progress lines.
type Runner struct {
	// Path is the copier executable path; overridable for tests and for
	// the CLI's --set-copier-path flag.
	Path string
}

func NewRunner(path string) *Runner {
	if path == "" {
		path = "robocopy"
	}
	return &Runner{Path: path}
}

// Launch starts the copier process in the background and returns a
// handle the orchestrator polls and eventually waits on. The process is
// placed in the shared parent-lifetime process group so it dies with the
// parent regardless of how the parent exits (spec §4.4); that binding is
// platform-specific and lives in the build-tagged process group helpers.
func (r *Runner) Launch(ctx context.Context, args []string, progress *state.ProgressBuffer) (*Handle, error) {
	logger := log.WithFields(log.Fields{"component": component, "path": r.Path})

	cmd := exec.Command(r.Path, args...)
	cmd.Stdin = nil
	cmd.Stderr = os.Stderr
	attachProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, roboerr.Wrap(roboerr.CopierNotFound, component, "cannot open copier stdout pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, roboerr.Wrap(roboerr.CopierNotFound, component, "cannot start copier process: "+r.Path, err)
	}
	assignToProcessGroup(cmd)
	logger.WithField("args", args).Debug("copier process started")

	h := &Handle{cmd: cmd, progress: progress, done: make(chan struct{})}

	go h.scan(stdout)
	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()

	return h, nil
}

// Handle is one in-flight copier invocation.
type Handle struct {
	cmd      *exec.Cmd
	progress *state.ProgressBuffer
	done     chan struct{} // closed once the process has exited
	waitErr  error         // set before done is closed
}

func (h *Handle) scan(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		h.progress.AppendLine(line)

		if m := newFileLine.FindStringSubmatch(line); m != nil {
			h.progress.FinishCurrentFile()
			size, _ := strconv.ParseInt(m[2], 10, 64)
			h.progress.StartFile(m[3], size)
			continue
		}
		if m := percentLine.FindStringSubmatch(line); m != nil {
			pct, err := strconv.ParseFloat(m[1], 64)
			if err == nil {
				h.progress.UpdatePercent(pct)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		log.WithField("component", component).WithError(err).Warn("error reading copier stdout")
	}
}

// Wait blocks for the copier to exit, bounded by timeout when > 0. On
// timeout it kills the process and returns a Timeout error. After exit it
// waits briefly for the async line scanner to stabilize — three
// consecutive identical line-counts 20ms apart — so a burst of
// just-flushed lines isn't lost (spec §4.4).
func (h *Handle) Wait(timeout time.Duration) (int, error) {
	if timeout <= 0 {
		<-h.done
	} else {
		select {
		case <-h.done:
		case <-time.After(timeout):
			_ = h.cmd.Process.Kill()
			<-h.done
			return -1, roboerr.New(roboerr.Timeout, component, fmt.Sprintf("copier exceeded timeout of %s", timeout))
		}
	}
	waitErr := h.waitErr

	h.stabilize()

	exitCode := 0
	if h.cmd.ProcessState != nil {
		exitCode = h.cmd.ProcessState.ExitCode()
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
		return exitCode, nil
	}
	if waitErr != nil {
		return exitCode, roboerr.Wrap(roboerr.CopierTerminal, component, "copier process error", waitErr)
	}
	return exitCode, nil
}

func (h *Handle) stabilize() {
	const stableRounds = 3
	const pollInterval = 20 * time.Millisecond
	const budget = time.Second

	deadline := time.Now().Add(budget)
	last := h.progress.LineCount()
	stable := 0
	for stable < stableRounds && time.Now().Before(deadline) {
		time.Sleep(pollInterval)
		current := h.progress.LineCount()
		if current == last {
			stable++
		} else {
			stable = 0
			last = current
		}
	}
}

// Pid returns the child process id, used by the orchestrator as the
// active-job map key.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Kill forcibly terminates the copier process, used by stop-all
// teardown.
func (h *Handle) Kill() error {
	if h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Kill()
}
