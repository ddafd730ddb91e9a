package copier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/robocurse/robocurse/internal/state"
)

func TestInterpretExitCodeFatalRetriesOnlyWithCopyErrors(t *testing.T) {
	pureFatal := InterpretExitCode(bitFatal, state.MismatchWarning)
	assert.Equal(t, SeverityFatal, pureFatal.Severity)
	assert.False(t, pureFatal.ShouldRetry)

	fatalWithErrors := InterpretExitCode(bitFatal|bitCopyErrors, state.MismatchWarning)
	assert.Equal(t, SeverityFatal, fatalWithErrors.Severity)
	assert.True(t, fatalWithErrors.ShouldRetry)
}

func TestInterpretExitCodeCopyErrorsAloneNeverRetried(t *testing.T) {
	r := InterpretExitCode(bitCopyErrors, state.MismatchWarning)
	assert.Equal(t, SeverityWarning, r.Severity)
	assert.False(t, r.ShouldRetry)
}

func TestInterpretExitCodeMismatchSeverityIsConfigurable(t *testing.T) {
	assert.Equal(t, SeverityWarning, InterpretExitCode(bitMismatches, state.MismatchWarning).Severity)
	warn := InterpretExitCode(bitMismatches, state.MismatchError)
	assert.Equal(t, SeverityError, warn.Severity)
	assert.True(t, warn.ShouldRetry)
	assert.Equal(t, SeveritySuccess, InterpretExitCode(bitMismatches, state.MismatchSuccess).Severity)
}

func TestInterpretExitCodeZeroIsSuccessNoChanges(t *testing.T) {
	r := InterpretExitCode(0, state.MismatchWarning)
	assert.Equal(t, SeveritySuccess, r.Severity)
}

func TestInterpretExitCodeFilesCopiedAndExtrasAreSuccess(t *testing.T) {
	assert.Equal(t, SeveritySuccess, InterpretExitCode(bitFilesCopied, state.MismatchWarning).Severity)
	assert.Equal(t, SeveritySuccess, InterpretExitCode(bitExtras, state.MismatchWarning).Severity)
}
