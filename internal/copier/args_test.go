package copier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/robocurse/robocurse/internal/state"
)

func TestQuotePathDoublesTrailingBackslash(t *testing.T) {
	assert.Equal(t, `"D:\src"`, QuotePath(`D:\src`))
	assert.Equal(t, `"D:\\"`, QuotePath(`D:\`))
}

func TestBuildArgsOrderAndManagedSwitchStripping(t *testing.T) {
	profile := &state.Profile{
		Options: state.Options{
			Switches:   []string{"/MT:99", "/XA:SH", "/log:evil.txt"},
			RetryCount: 5,
			RetryWait:  1,
		},
	}
	chunk := &state.Chunk{ExtraArgs: []string{"/LEV:1", "/DANGEROUS"}}

	args := BuildArgs(BuildInput{
		Source:      `D:\src`,
		Destination: `E:\dst`,
		Profile:     profile,
		Chunk:       chunk,
		ThreadCount: 8,
		LogPath:     `C:\logs\chunk.log`,
	})

	assert.Equal(t, `"D:\src"`, args[0])
	assert.Equal(t, `"E:\dst"`, args[1])
	assert.Equal(t, "/MIR", args[2])
	assert.Contains(t, args, "/XA:SH")
	assert.NotContains(t, args, "/MT:99")
	assert.Contains(t, args, "/MT:8")
	assert.Contains(t, args, "/R:5")
	assert.Contains(t, args, "/W:1")
	assert.Contains(t, args, "/LEV:1")
	assert.NotContains(t, args, "/DANGEROUS")
}

func TestBuildArgsDryRunAppendsL(t *testing.T) {
	args := BuildArgs(BuildInput{
		Source:      `D:\src`,
		Destination: `E:\dst`,
		Profile:     &state.Profile{},
		Chunk:       &state.Chunk{},
		DryRun:      true,
	})
	assert.Equal(t, "/L", args[len(args)-1])
}

func TestBuildArgsNoMirrorUsesEModeNotMir(t *testing.T) {
	args := BuildArgs(BuildInput{
		Source:      `D:\src`,
		Destination: `E:\dst`,
		Profile:     &state.Profile{Options: state.Options{NoMirror: true}},
		Chunk:       &state.Chunk{},
	})
	assert.Contains(t, args, "/E")
	assert.NotContains(t, args, "/MIR")
}
