package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robocurse/robocurse/internal/schedule"
)

// scheduleCmd wraps internal/schedule's register/remove/enable/disable/
// start/status operations around the real schtasks.exe-shelling Runner
// (spec §6 "Host scheduler (produced)").
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Register or inspect the recurring Task Scheduler entry for this config",
}

var (
	triggerKind  string
	triggerAt    string
	triggerDays  []string
	principal    string
	principalUser string
	principalDomain string
	principalPassword string
	exePath      string
	description  string
)

var scheduleRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create or replace the scheduled task for this config",
	RunE: func(cmd *cobra.Command, args []string) error {
		weekdays := make([]schedule.Weekday, 0, len(triggerDays))
		for _, d := range triggerDays {
			weekdays = append(weekdays, schedule.Weekday(d))
		}
		spec := schedule.TaskSpec{
			ConfigPath: cfgPath,
			ExePath:    exePath,
			Trigger: schedule.Trigger{
				Kind:     schedule.TriggerKind(triggerKind),
				At:       triggerAt,
				Weekdays: weekdays,
			},
			Principal: schedule.Principal{
				Kind:     schedule.PrincipalKind(principal),
				Username: principalUser,
				Domain:   principalDomain,
				Password: principalPassword,
			},
			Description: description,
		}
		return schedule.Register(cmd.Context(), schedule.NewExecRunner(), spec)
	},
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Delete the scheduled task for this config",
	RunE: func(cmd *cobra.Command, args []string) error {
		return schedule.Remove(cmd.Context(), schedule.NewExecRunner(), cfgPath)
	},
}

var scheduleEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable the scheduled task",
	RunE: func(cmd *cobra.Command, args []string) error {
		return schedule.SetEnabled(cmd.Context(), schedule.NewExecRunner(), cfgPath, true)
	},
}

var scheduleDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable the scheduled task without removing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return schedule.SetEnabled(cmd.Context(), schedule.NewExecRunner(), cfgPath, false)
	},
}

var scheduleStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Trigger an out-of-band run of the scheduled task now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return schedule.Start(cmd.Context(), schedule.NewExecRunner(), cfgPath)
	},
}

var scheduleStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the scheduled task's current status and next run time",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := schedule.Query(cmd.Context(), schedule.NewExecRunner(), cfgPath)
		if err != nil {
			return err
		}
		fmt.Printf("task:     %s\nstatus:   %s\nnext run: %s\n", st.TaskName, st.Status, st.NextRun)
		return nil
	},
}

func init() {
	scheduleRegisterCmd.Flags().StringVar(&triggerKind, "trigger", "daily", "Trigger kind: daily|weekly|hourly")
	scheduleRegisterCmd.Flags().StringVar(&triggerAt, "at", "02:00", "Trigger time, HH:mm (daily/weekly)")
	scheduleRegisterCmd.Flags().StringSliceVar(&triggerDays, "weekday", nil, "Weekdays for a weekly trigger, e.g. Monday,Wednesday")
	scheduleRegisterCmd.Flags().StringVar(&principal, "principal", "current_user_limited_logon", "Principal kind: service_account|explicit_credential|current_user_limited_logon")
	scheduleRegisterCmd.Flags().StringVar(&principalUser, "principal-user", "", "Account username for service_account/explicit_credential")
	scheduleRegisterCmd.Flags().StringVar(&principalDomain, "principal-domain", "", "Account domain")
	scheduleRegisterCmd.Flags().StringVar(&principalPassword, "principal-password", "", "Account password for explicit_credential")
	scheduleRegisterCmd.Flags().StringVar(&exePath, "exe-path", "", "Path to this executable, embedded in the task action")
	scheduleRegisterCmd.Flags().StringVar(&description, "description", "Robocurse scheduled replication", "Task description")

	scheduleCmd.AddCommand(scheduleRegisterCmd, scheduleRemoveCmd, scheduleEnableCmd, scheduleDisableCmd, scheduleStartCmd, scheduleStatusCmd)
}
