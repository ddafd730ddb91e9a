// Package schedule synthesizes and issues the Windows Task Scheduler
// commands that register this tool as a recurring task (spec §6 "Host
// scheduler (produced)"). It only constructs and issues the
// `schtasks.exe` invocation; actually running the task at its trigger
// time is the external OS scheduler's job, out of scope per the spec's
// Non-goals.
package schedule

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/robocurse/robocurse/internal/roboerr"
)

const component = "schedule"

// TriggerKind selects the recurrence pattern.
type TriggerKind string

const (
	TriggerDaily  TriggerKind = "daily"
	TriggerWeekly TriggerKind = "weekly"
	TriggerHourly TriggerKind = "hourly"
)

// PrincipalKind selects which account the task runs as.
type PrincipalKind string

const (
	PrincipalServiceAccount     PrincipalKind = "service_account"
	PrincipalExplicitCredential PrincipalKind = "explicit_credential"
	PrincipalCurrentUserLimited PrincipalKind = "current_user_limited_logon"
)

// Weekday matches Task Scheduler's day-of-week names.
type Weekday string

const (
	Mon Weekday = "Monday"
	Tue Weekday = "Tuesday"
	Wed Weekday = "Wednesday"
	Thu Weekday = "Thursday"
	Fri Weekday = "Friday"
	Sat Weekday = "Saturday"
	Sun Weekday = "Sunday"
)

// Trigger describes when the task fires.
type Trigger struct {
	Kind     TriggerKind
	At       string    // "HH:mm", required for Daily/Weekly
	Weekdays []Weekday // required for Weekly
}

// Principal describes which account runs the task.
type Principal struct {
	Kind     PrincipalKind
	Username string // required for ExplicitCredential and ServiceAccount
	Domain   string
	Password string // required for ExplicitCredential; never logged
}

// TaskSpec fully describes the task to register.
type TaskSpec struct {
	ConfigPath  string
	ExePath     string
	Trigger     Trigger
	Principal   Principal
	Description string
}

// TaskName derives the deterministic task name from the config path, so
// re-registering the same config always targets the same task instead
// of accumulating duplicates.
func TaskName(configPath string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(configPath))
	return fmt.Sprintf("Robocurse-%016x", h.Sum64())
}

// Runner executes an external command. The real implementation shells
// out to schtasks.exe; tests inject a fake that records the arguments
// it was given, the same pattern used by internal/copier's Runner and
// internal/vss's Runner.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout string, err error)
}

type execRunner struct{}

// NewExecRunner returns the real schtasks.exe-shelling Runner, the same
// exec.CommandContext + CombinedOutput shape internal/vss's execRunner
// uses for vssadmin.
func NewExecRunner() Runner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func validate(spec TaskSpec) error {
	switch spec.Trigger.Kind {
	case TriggerDaily:
		if spec.Trigger.At == "" {
			return roboerr.New(roboerr.ConfigurationInvalid, component, "daily trigger requires a time")
		}
	case TriggerWeekly:
		if spec.Trigger.At == "" || len(spec.Trigger.Weekdays) == 0 {
			return roboerr.New(roboerr.ConfigurationInvalid, component, "weekly trigger requires a time and at least one weekday")
		}
	case TriggerHourly:
	default:
		return roboerr.New(roboerr.ConfigurationInvalid, component, fmt.Sprintf("unknown trigger kind %q", spec.Trigger.Kind))
	}

	switch spec.Principal.Kind {
	case PrincipalServiceAccount:
		if spec.Principal.Username == "" {
			return roboerr.New(roboerr.ConfigurationInvalid, component, "service account principal requires a username")
		}
	case PrincipalExplicitCredential:
		if spec.Principal.Username == "" || spec.Principal.Password == "" {
			return roboerr.New(roboerr.ConfigurationInvalid, component, "explicit credential principal requires a username and password")
		}
	case PrincipalCurrentUserLimited:
	default:
		return roboerr.New(roboerr.ConfigurationInvalid, component, fmt.Sprintf("unknown principal kind %q", spec.Principal.Kind))
	}
	return nil
}

func qualifiedUser(p Principal) string {
	if p.Domain != "" {
		return p.Domain + "\\" + p.Username
	}
	return p.Username
}

// Register writes an XML task definition to a temp file and issues
// `schtasks /Create /XML <file>`. The description, 72-hour
// execution-time-limit, normal priority, and ignore-concurrent-start
// policy (spec §6) have no command-line switches on schtasks.exe — only
// the XML task definition format exposes them — so the Settings and
// RegistrationInfo elements carry those, while /RU and /RP are still
// passed on the command line since the XML form can't embed a
// plaintext password.
func Register(ctx context.Context, runner Runner, spec TaskSpec) error {
	if err := validate(spec); err != nil {
		return err
	}
	name := TaskName(spec.ConfigPath)

	xmlDoc, err := BuildTaskXML(spec)
	if err != nil {
		return err
	}

	xmlPath := filepath.Join(os.TempDir(), name+".xml")
	if err := os.WriteFile(xmlPath, []byte(xmlDoc), 0o600); err != nil {
		return roboerr.Wrap(roboerr.ConfigurationInvalid, component, "cannot write task xml", err)
	}
	defer os.Remove(xmlPath)

	args := []string{"/Create", "/TN", name, "/XML", xmlPath, "/F"}
	if spec.Principal.Kind == PrincipalExplicitCredential || spec.Principal.Kind == PrincipalServiceAccount {
		args = append(args, "/RU", qualifiedUser(spec.Principal))
		if spec.Principal.Password != "" {
			args = append(args, "/RP", spec.Principal.Password)
		}
	}

	log.WithFields(log.Fields{
		"component": component,
		"task":      name,
		"trigger":   spec.Trigger.Kind,
	}).Info("registering scheduled task")

	if _, err := runner.Run(ctx, "schtasks.exe", args...); err != nil {
		return roboerr.Wrap(roboerr.ConfigurationInvalid, component, "schtasks /Create failed", err)
	}
	return nil
}

// Remove issues `schtasks /Delete /F` for the task derived from
// configPath.
func Remove(ctx context.Context, runner Runner, configPath string) error {
	name := TaskName(configPath)
	if _, err := runner.Run(ctx, "schtasks.exe", "/Delete", "/TN", name, "/F"); err != nil {
		return roboerr.Wrap(roboerr.ConfigurationInvalid, component, "schtasks /Delete failed", err)
	}
	return nil
}

// SetEnabled issues `schtasks /Change /Enable` or `/Disable`.
func SetEnabled(ctx context.Context, runner Runner, configPath string, enabled bool) error {
	name := TaskName(configPath)
	flag := "/Disable"
	if enabled {
		flag = "/Enable"
	}
	if _, err := runner.Run(ctx, "schtasks.exe", "/Change", "/TN", name, flag); err != nil {
		return roboerr.Wrap(roboerr.ConfigurationInvalid, component, "schtasks /Change failed", err)
	}
	return nil
}

// Start issues `schtasks /Run` to trigger an out-of-band execution now.
func Start(ctx context.Context, runner Runner, configPath string) error {
	name := TaskName(configPath)
	if _, err := runner.Run(ctx, "schtasks.exe", "/Run", "/TN", name); err != nil {
		return roboerr.Wrap(roboerr.ConfigurationInvalid, component, "schtasks /Run failed", err)
	}
	return nil
}

// QueryStatus is the parsed subset of `schtasks /Query` output this
// tool cares about.
type QueryStatus struct {
	TaskName string
	Status   string // e.g. "Ready", "Running", "Disabled"
	NextRun  string
}

// Query issues `schtasks /Query /FO LIST` and parses the Status and
// Next Run Time fields out of its plain-text output.
func Query(ctx context.Context, runner Runner, configPath string) (*QueryStatus, error) {
	name := TaskName(configPath)
	out, err := runner.Run(ctx, "schtasks.exe", "/Query", "/TN", name, "/FO", "LIST")
	if err != nil {
		return nil, roboerr.Wrap(roboerr.ConfigurationInvalid, component, "schtasks /Query failed", err)
	}
	return parseQueryOutput(name, out), nil
}

func parseQueryOutput(name, out string) *QueryStatus {
	q := &QueryStatus{TaskName: name}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if k, v, ok := splitColon(line); ok {
			switch strings.ToLower(k) {
			case "status":
				q.Status = v
			case "next run time":
				q.NextRun = v
			}
		}
	}
	return q
}

func splitColon(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}
