package schedule

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls [][]string
	out   string
	err   error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.out, f.err
}

func TestTaskNameIsDeterministicAndSixteenHex(t *testing.T) {
	a := TaskName(`C:\robocurse\config.json`)
	b := TaskName(`C:\robocurse\config.json`)
	c := TaskName(`C:\robocurse\other.json`)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "Robocurse-"))
	assert.Len(t, strings.TrimPrefix(a, "Robocurse-"), 16)
}

func TestRegisterDailyIssuesCreateWithXML(t *testing.T) {
	runner := &fakeRunner{}
	spec := TaskSpec{
		ConfigPath: `C:\robocurse\config.json`,
		ExePath:    `C:\robocurse\robocurse.exe`,
		Trigger:    Trigger{Kind: TriggerDaily, At: "02:30"},
		Principal:  Principal{Kind: PrincipalCurrentUserLimited},
	}
	require.NoError(t, Register(context.Background(), runner, spec))

	require.Len(t, runner.calls, 1)
	call := runner.calls[0]
	assert.Equal(t, "schtasks.exe", call[0])
	assert.Contains(t, call, "/Create")
	assert.Contains(t, call, "/XML")
}

func TestRegisterWeeklyRequiresWeekdays(t *testing.T) {
	runner := &fakeRunner{}
	spec := TaskSpec{
		ConfigPath: `C:\robocurse\config.json`,
		ExePath:    `C:\robocurse\robocurse.exe`,
		Trigger:    Trigger{Kind: TriggerWeekly, At: "02:30"},
		Principal:  Principal{Kind: PrincipalCurrentUserLimited},
	}
	err := Register(context.Background(), runner, spec)
	require.Error(t, err)
	assert.Empty(t, runner.calls)
}

func TestRegisterExplicitCredentialRequiresPassword(t *testing.T) {
	runner := &fakeRunner{}
	spec := TaskSpec{
		ConfigPath: `C:\robocurse\config.json`,
		ExePath:    `C:\robocurse\robocurse.exe`,
		Trigger:    Trigger{Kind: TriggerHourly},
		Principal:  Principal{Kind: PrincipalExplicitCredential, Username: "svc"},
	}
	err := Register(context.Background(), runner, spec)
	require.Error(t, err)
}

func TestBuildTaskXMLContainsSettingsAndDescription(t *testing.T) {
	spec := TaskSpec{
		ConfigPath:  `C:\robocurse\config.json`,
		ExePath:     `C:\robocurse\robocurse.exe`,
		Trigger:     Trigger{Kind: TriggerWeekly, At: "03:00", Weekdays: []Weekday{Mon, Wed, Fri}},
		Principal:   Principal{Kind: PrincipalServiceAccount, Username: "svc-robocurse"},
		Description: "replicates nightly backup shares",
	}
	doc, err := BuildTaskXML(spec)
	require.NoError(t, err)

	assert.Contains(t, doc, "replicates nightly backup shares")
	assert.Contains(t, doc, "PT72H")
	assert.Contains(t, doc, "IgnoreNew")
	assert.Contains(t, doc, "<Monday />")
	assert.Contains(t, doc, "<Friday />")
}

func TestQueryParsesStatusAndNextRun(t *testing.T) {
	runner := &fakeRunner{out: "TaskName: Robocurse-abc\r\nStatus: Ready\r\nNext Run Time: 2026-08-02 02:30:00\r\n"}
	q, err := Query(context.Background(), runner, `C:\robocurse\config.json`)
	require.NoError(t, err)
	assert.Equal(t, "Ready", q.Status)
	assert.Equal(t, "2026-08-02 02:30:00", q.NextRun)
}

func TestRemoveIssuesDeleteWithForce(t *testing.T) {
	runner := &fakeRunner{}
	require.NoError(t, Remove(context.Background(), runner, `C:\robocurse\config.json`))
	require.Len(t, runner.calls, 1)
	assert.Contains(t, runner.calls[0], "/Delete")
	assert.Contains(t, runner.calls[0], "/F")
}
