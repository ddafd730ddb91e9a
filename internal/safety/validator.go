// Package safety rejects unsafe paths, exclude patterns, and copier
// switches before they ever reach argument synthesis. Nothing downstream
// of this package trusts profile input.
package safety

import (
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/robocurse/robocurse/internal/roboerr"
)

const component = "safety"

var (
	controlChars    = regexp.MustCompile(`[\x00-\x1f]`)
	commandSep      = regexp.MustCompile("[;&|]")
	shellRedirect   = regexp.MustCompile("[<>]")
	envExpansion    = regexp.MustCompile(`%[^%]*%`)
	chunkArgPattern = regexp.MustCompile(`^/(LEV:\d+|S|E|MAXAGE:\d+|MINAGE:\d+|MAXLAD:\d+|MINLAD:\d+)$`)
)

// ValidateArg reports whether value is safe to pass to the copier or use
// as a path component, per spec §4.1.
func ValidateArg(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}
	if controlChars.MatchString(value) {
		return false
	}
	if commandSep.MatchString(value) {
		return false
	}
	if shellRedirect.MatchString(value) {
		return false
	}
	if strings.Contains(value, "`") {
		return false
	}
	if strings.Contains(value, "$(") || strings.Contains(value, "${") {
		return false
	}
	if envExpansion.MatchString(value) {
		return false
	}
	if strings.Contains(value, "../") || strings.Contains(value, `..\`) {
		return false
	}
	if strings.HasPrefix(trimmed, "-") {
		return false
	}
	return true
}

// SanitizePath returns path unchanged if safe, or a tagged UnsafeInput
// error otherwise.
func SanitizePath(path string) (string, error) {
	if !ValidateArg(path) {
		return "", roboerr.New(roboerr.UnsafeInput, component, "rejected path: "+path)
	}
	return path, nil
}

// PatternKind distinguishes exclude-file patterns from exclude-directory
// patterns purely for logging.
type PatternKind string

const (
	ExcludeFile PatternKind = "exclude_file"
	ExcludeDir  PatternKind = "exclude_dir"
)

// SanitizeExcludePatterns filters out unsafe entries, logging and
// dropping them rather than failing the whole profile.
func SanitizeExcludePatterns(patterns []string, kind PatternKind) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if ValidateArg(p) {
			out = append(out, p)
			continue
		}
		log.WithFields(log.Fields{
			"component": component,
			"kind":      kind,
			"pattern":   p,
		}).Warn("dropping unsafe exclude pattern")
	}
	return out
}

// SanitizeChunkArgs drops any chunk-level extra argument that is not on
// the whitelist in spec §4.1, logging a warning for each drop.
func SanitizeChunkArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if chunkArgPattern.MatchString(a) {
			out = append(out, a)
			continue
		}
		log.WithFields(log.Fields{
			"component": component,
			"arg":       a,
		}).Warn("dropping unsafe chunk argument")
	}
	return out
}

// ValidateOptions flags dangerous or orchestrator-managed switch
// combinations without blocking the profile — see spec §4.1.
func ValidateOptions(switches []string) []string {
	var warnings []string
	upper := make(map[string]bool, len(switches))
	for _, s := range switches {
		upper[strings.ToUpper(s)] = true
	}

	hasPurge := upper["/PURGE"]
	hasMir := upper["/MIR"]
	if hasPurge && !hasMir {
		warnings = append(warnings, "/PURGE without /MIR deletes destination-only files with no mirrored source guard")
	}
	for _, s := range switches {
		u := strings.ToUpper(s)
		if u == "/MOV" || u == "/MOVE" {
			warnings = append(warnings, "/MOV or /MOVE deletes source files after copy: "+s)
		}
	}
	if upper["/XX"] && (hasMir || hasPurge) {
		warnings = append(warnings, "/XX combined with /MIR or /PURGE disables the deletion /XX is meant to prevent")
	}

	managed := map[string]bool{"/MT": true, "/LOG": true, "/TEE": true, "/BYTES": true, "/NP": true}
	for _, s := range switches {
		u := strings.ToUpper(s)
		base := u
		if idx := strings.Index(u, ":"); idx >= 0 {
			base = u[:idx]
		}
		if managed[base] {
			warnings = append(warnings, "switch collides with orchestrator-managed switch: "+s)
		}
	}
	return warnings
}
