// Package copier synthesizes copier arguments, launches and supervises
// the external copy process, parses its streaming progress and final
// log, and interprets its exit code (spec §4.4). Grounded on the
// teacher's internal/nbdcopy/nbdcopy.go process-launch pattern.
package copier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/robocurse/robocurse/internal/safety"
	"github.com/robocurse/robocurse/internal/state"
)

var managedSwitchPattern = regexp.MustCompile(`(?i)^/(MT|R|W|LOG|MIR|E|TEE|NP|BYTES)(:.*)?$`)
var managedLogPattern = regexp.MustCompile(`(?i)^/LOG:`)

// QuotePath quotes a path for the copier's argument line. A trailing
// backslash is doubled before the closing quote so the shell parser
// doesn't treat `\"` as an escape (spec §4.4 step 1, tested by the
// quoting-invariant property in spec §8).
func QuotePath(path string) string {
	if strings.HasSuffix(path, `\`) {
		return `"` + path + `\"`
	}
	return `"` + path + `"`
}

// BuildArgs synthesizes the full argument list for one chunk's copier
// invocation, in the order specified by spec §4.4.
type BuildInput struct {
	Source      string
	Destination string
	Profile     *state.Profile
	Chunk       *state.Chunk
	ThreadCount int
	LogPath     string
	DryRun      bool
	InterPacketGapMs int
}

func BuildArgs(in BuildInput) []string {
	var args []string

	// 1. quoted source/destination.
	args = append(args, QuotePath(in.Source), QuotePath(in.Destination))

	// 2. copy mode.
	if in.Profile.Options.NoMirror {
		args = append(args, "/E")
	} else {
		args = append(args, "/MIR")
	}

	// 3. profile custom switches, orchestrator-managed ones (/MT, /R, /W,
	// /LOG, /MIR, /E, /TEE, /NP, /BYTES) stripped, then each remaining one
	// checked with safety.ValidateArg, which rejects unsafe characters and
	// patterns. Switches are not checked against a list of known copier
	// switches, and a custom /J or /NDL is kept beside the ones step 4 adds.
	for _, sw := range in.Profile.Options.Switches {
		if managedSwitchPattern.MatchString(sw) || managedLogPattern.MatchString(sw) {
			continue
		}
		if safety.ValidateArg(sw) {
			args = append(args, sw)
		}
	}

	// 4. managed switches.
	threads := in.ThreadCount
	if threads <= 0 {
		threads = 16
	}
	retries := in.Profile.Options.RetryCount
	if retries <= 0 {
		retries = 3
	}
	wait := in.Profile.Options.RetryWait
	if wait <= 0 {
		wait = 2
	}
	args = append(args,
		fmt.Sprintf("/MT:%d", threads),
		"/J",
		fmt.Sprintf("/R:%d", retries),
		fmt.Sprintf("/W:%d", wait),
		fmt.Sprintf("/LOG:%s", QuotePath(in.LogPath)),
		"/TEE",
		"/NDL",
		"/BYTES",
	)

	// 5. junction skip — always on, junctions are never followed since a
	// reparse-point cycle would make a chunk run forever (spec §4.4).
	args = append(args, "/XJD", "/XJF")

	// 6. bandwidth.
	if in.InterPacketGapMs > 0 {
		args = append(args, fmt.Sprintf("/IPG:%d", in.InterPacketGapMs))
	}

	// 7. exclusions.
	xf := safety.SanitizeExcludePatterns(in.Profile.Options.ExcludeFiles, safety.ExcludeFile)
	if len(xf) > 0 {
		args = append(args, "/XF")
		args = append(args, xf...)
	}
	xd := safety.SanitizeExcludePatterns(in.Profile.Options.ExcludeDirs, safety.ExcludeDir)
	if len(xd) > 0 {
		args = append(args, "/XD")
		args = append(args, xd...)
	}

	// 8. chunk extra arguments (already whitelisted by the planner, but
	// re-validated here since chunks can in principle be constructed
	// outside the planner in tests).
	args = append(args, safety.SanitizeChunkArgs(in.Chunk.ExtraArgs)...)

	// 9. dry-run.
	if in.DryRun {
		args = append(args, "/L")
	}

	return args
}
