package schedule

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/robocurse/robocurse/internal/roboerr"
)

// Task Scheduler's XML task definition schema (v1.2), trimmed to the
// elements this tool populates.
type taskXML struct {
	XMLName         xml.Name        `xml:"Task"`
	Xmlns           string          `xml:"xmlns,attr"`
	RegistrationInfo registrationXML `xml:"RegistrationInfo"`
	Triggers        triggersXML     `xml:"Triggers"`
	Principals      principalsXML   `xml:"Principals"`
	Settings        settingsXML     `xml:"Settings"`
	Actions         actionsXML      `xml:"Actions"`
}

type registrationXML struct {
	Description string `xml:"Description"`
}

type triggersXML struct {
	CalendarTrigger *calendarTriggerXML `xml:"CalendarTrigger,omitempty"`
	TimeTrigger     *timeTriggerXML     `xml:"TimeTrigger,omitempty"`
}

type calendarTriggerXML struct {
	StartBoundary string        `xml:"StartBoundary"`
	Enabled       bool          `xml:"Enabled"`
	ScheduleByDay *byDayXML     `xml:"ScheduleByDay,omitempty"`
	ScheduleByWeek *byWeekXML   `xml:"ScheduleByWeek,omitempty"`
}

type byDayXML struct {
	DaysInterval int `xml:"DaysInterval"`
}

type byWeekXML struct {
	WeeksInterval int          `xml:"WeeksInterval"`
	DaysOfWeek    daysOfWeekXML `xml:"DaysOfWeek"`
}

type daysOfWeekXML struct {
	Inner string `xml:",innerxml"`
}

type timeTriggerXML struct {
	StartBoundary string      `xml:"StartBoundary"`
	Enabled       bool        `xml:"Enabled"`
	Repetition    repetitionXML `xml:"Repetition"`
}

type repetitionXML struct {
	Interval string `xml:"Interval"`
	StopAtDurationEnd bool `xml:"StopAtDurationEnd"`
}

type principalsXML struct {
	Principal principalXML `xml:"Principal"`
}

type principalXML struct {
	Id        string `xml:"id,attr"`
	UserId    string `xml:"UserId,omitempty"`
	LogonType string `xml:"LogonType"`
	RunLevel  string `xml:"RunLevel"`
}

type settingsXML struct {
	MultipleInstancesPolicy string `xml:"MultipleInstancesPolicy"`
	ExecutionTimeLimit      string `xml:"ExecutionTimeLimit"`
	Priority                int    `xml:"Priority"`
}

type actionsXML struct {
	Context string    `xml:"Context,attr"`
	Exec    execXML   `xml:"Exec"`
}

type execXML struct {
	Command   string `xml:"Command"`
	Arguments string `xml:"Arguments"`
}

const (
	normalPriority       = 7
	executionTimeLimit   = "PT72H"
	ignoreNewInstances   = "IgnoreNew"
)

// BuildTaskXML renders the Task Scheduler XML definition for spec,
// encoding the settings schtasks.exe's flat switches can't express:
// description, 72-hour execution-time-limit, normal priority, and
// ignore-concurrent-start (spec §6).
func BuildTaskXML(spec TaskSpec) (string, error) {
	t := taskXML{
		Xmlns: "http://schemas.microsoft.com/windows/2004/02/mit/task",
		RegistrationInfo: registrationXML{
			Description: spec.Description,
		},
		Principals: principalsXML{
			Principal: principalForSpec(spec),
		},
		Settings: settingsXML{
			MultipleInstancesPolicy: ignoreNewInstances,
			ExecutionTimeLimit:      executionTimeLimit,
			Priority:                normalPriority,
		},
		Actions: actionsXML{
			Context: "principal1",
			Exec: execXML{
				Command:   spec.ExePath,
				Arguments: fmt.Sprintf(`--headless --config "%s"`, spec.ConfigPath),
			},
		},
	}

	trigger, err := triggerForSpec(spec.Trigger)
	if err != nil {
		return "", err
	}
	t.Triggers = trigger

	out, err := xml.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", roboerr.Wrap(roboerr.ConfigurationInvalid, component, "cannot marshal task xml", err)
	}
	return xml.Header + string(out), nil
}

func principalForSpec(spec TaskSpec) principalXML {
	p := principalXML{Id: "principal1"}
	switch spec.Principal.Kind {
	case PrincipalServiceAccount:
		p.UserId = qualifiedUser(spec.Principal)
		p.LogonType = "Password"
		p.RunLevel = "HighestAvailable"
	case PrincipalExplicitCredential:
		p.UserId = qualifiedUser(spec.Principal)
		p.LogonType = "Password"
		p.RunLevel = "HighestAvailable"
	case PrincipalCurrentUserLimited:
		p.LogonType = "InteractiveToken"
		p.RunLevel = "LeastPrivilege"
	}
	return p
}

func triggerForSpec(t Trigger) (triggersXML, error) {
	switch t.Kind {
	case TriggerDaily:
		start, err := startBoundary(t.At)
		if err != nil {
			return triggersXML{}, err
		}
		return triggersXML{
			CalendarTrigger: &calendarTriggerXML{
				StartBoundary:  start,
				Enabled:        true,
				ScheduleByDay:  &byDayXML{DaysInterval: 1},
			},
		}, nil
	case TriggerWeekly:
		start, err := startBoundary(t.At)
		if err != nil {
			return triggersXML{}, err
		}
		inner := ""
		for _, d := range t.Weekdays {
			inner += fmt.Sprintf("<%s />", d)
		}
		return triggersXML{
			CalendarTrigger: &calendarTriggerXML{
				StartBoundary: start,
				Enabled:       true,
				ScheduleByWeek: &byWeekXML{
					WeeksInterval: 1,
					DaysOfWeek:    daysOfWeekXML{Inner: inner},
				},
			},
		}, nil
	case TriggerHourly:
		return triggersXML{
			TimeTrigger: &timeTriggerXML{
				StartBoundary: time.Now().Format("2006-01-02T15:04:05"),
				Enabled:       true,
				Repetition: repetitionXML{
					Interval:          "PT1H",
					StopAtDurationEnd: false,
				},
			},
		}, nil
	default:
		return triggersXML{}, roboerr.New(roboerr.ConfigurationInvalid, component, fmt.Sprintf("unknown trigger kind %q", t.Kind))
	}
}

func startBoundary(at string) (string, error) {
	hm, err := time.Parse("15:04", at)
	if err != nil {
		return "", roboerr.Wrap(roboerr.ConfigurationInvalid, component, fmt.Sprintf("invalid trigger time %q", at), err)
	}
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), hm.Hour(), hm.Minute(), 0, 0, now.Location())
	return start.Format("2006-01-02T15:04:05"), nil
}
