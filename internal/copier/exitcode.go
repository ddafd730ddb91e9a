package copier

import "github.com/robocurse/robocurse/internal/state"

// Severity classifies a finished copier run for the orchestrator's
// retry/advance decision (spec §4.4).
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityFatal   Severity = "fatal"
)

// Result is the interpreted outcome of one copier invocation.
type Result struct {
	ExitCode    int
	Severity    Severity
	Message     string
	ShouldRetry bool
}

const (
	bitFilesCopied = 1 << 0
	bitExtras      = 1 << 1
	bitMismatches  = 1 << 2
	bitCopyErrors  = 1 << 3
	bitFatal       = 1 << 4
)

// InterpretExitCode classifies the copier's bitmask exit code in the
// priority order fixed by spec §4.4, consulting the profile's configured
// mismatch severity for bit 2.
func InterpretExitCode(code int, mismatchSeverity state.MismatchSeverity) Result {
	r := Result{ExitCode: code}

	switch {
	case code&bitFatal != 0:
		r.Severity = SeverityFatal
		r.Message = "copier reported a fatal error"
		r.ShouldRetry = code&bitCopyErrors != 0
		return r

	case code&bitCopyErrors != 0:
		r.Severity = SeverityWarning
		r.Message = "some files failed to copy (already retried per-file by the copier)"
		r.ShouldRetry = false
		return r

	case code&bitMismatches != 0:
		r.Message = "mismatched files detected between source and destination"
		switch mismatchSeverity {
		case state.MismatchError:
			r.Severity = SeverityError
			r.ShouldRetry = true
		case state.MismatchSuccess:
			r.Severity = SeveritySuccess
		default:
			r.Severity = SeverityWarning
		}
		return r

	case code&bitExtras != 0:
		r.Severity = SeveritySuccess
		r.Message = "extra files present at destination"
		return r

	case code&bitFilesCopied != 0:
		r.Severity = SeveritySuccess
		r.Message = "files copied"
		return r

	default:
		r.Severity = SeveritySuccess
		r.Message = "no changes needed"
		return r
	}
}
