package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vitalvault/vitalvault/internal/models"
	"github.com/vitalvault/vitalvault/internal/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage the recurring export schedule",
}

var scheduleShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored schedule and the next fire time",
	RunE:  runScheduleShow,
}

var scheduleSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set frequency and preferred time",
	Example: `  vitalvault schedule set --frequency daily --at 23:00
  vitalvault schedule set --frequency weekly --at 06:30`,
	RunE: runScheduleSet,
}

var scheduleEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable the schedule",
	RunE:  func(cmd *cobra.Command, args []string) error { return setScheduleEnabled(true) },
}

var scheduleDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable the schedule",
	RunE:  func(cmd *cobra.Command, args []string) error { return setScheduleEnabled(false) },
}

var (
	scheduleFrequency string
	scheduleAt        string
)

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(scheduleShowCmd)
	scheduleCmd.AddCommand(scheduleSetCmd)
	scheduleCmd.AddCommand(scheduleEnableCmd)
	scheduleCmd.AddCommand(scheduleDisableCmd)

	scheduleSetCmd.Flags().StringVar(&scheduleFrequency, "frequency", "",
		"Run frequency: daily or weekly")
	scheduleSetCmd.Flags().StringVar(&scheduleAt, "at", "",
		"Preferred local time, HH:MM")
}

func runScheduleShow(cmd *cobra.Command, args []string) error {
	sched, err := appClient.Schedule.Load()
	if err != nil {
		return err
	}

	next := schedule.NextRun(&sched, time.Now())

	if jsonOutput {
		out := map[string]interface{}{
			"is_enabled":     sched.IsEnabled,
			"frequency":      sched.Frequency,
			"preferred_time": fmt.Sprintf("%02d:%02d", sched.PreferredHour, sched.PreferredMinute),
		}
		if sched.IsEnabled {
			out["next_run"] = next.Format(time.RFC3339)
		}
		if sched.LastExportDate != nil {
			out["last_export_date"] = sched.LastExportDate.Format(time.RFC3339)
		}
		printJSON(out)
		return nil
	}

	state := "disabled"
	if sched.IsEnabled {
		state = "enabled"
	}
	fmt.Printf("Schedule: %s\n", state)
	fmt.Printf("   Frequency: %s\n", sched.Frequency)
	fmt.Printf("   Preferred time: %02d:%02d\n", sched.PreferredHour, sched.PreferredMinute)
	if sched.LastExportDate != nil {
		fmt.Printf("   Last run with success: %s\n", sched.LastExportDate.Format("2006-01-02 15:04"))
	}
	if sched.IsEnabled {
		fmt.Printf("   Next run: %s\n", next.Format("2006-01-02 15:04"))
	}
	return nil
}

func runScheduleSet(cmd *cobra.Command, args []string) error {
	sched, err := appClient.Schedule.Load()
	if err != nil {
		return err
	}

	if scheduleFrequency != "" {
		freq := models.Frequency(scheduleFrequency)
		if !freq.Valid() {
			return fmt.Errorf("invalid frequency %q (daily or weekly)", scheduleFrequency)
		}
		sched.Frequency = freq
	}

	if scheduleAt != "" {
		at, err := time.Parse("15:04", scheduleAt)
		if err != nil {
			return fmt.Errorf("parse --at %q: expected HH:MM", scheduleAt)
		}
		sched.PreferredHour = at.Hour()
		sched.PreferredMinute = at.Minute()
	}

	if err := appClient.Schedule.Save(sched); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true})
		return nil
	}
	printSuccess("Schedule updated: %s at %02d:%02d",
		sched.Frequency, sched.PreferredHour, sched.PreferredMinute)
	if !sched.IsEnabled {
		printInfo("The schedule is disabled; enable it with `vitalvault schedule enable`")
	}
	return nil
}

func setScheduleEnabled(enabled bool) error {
	sched, err := appClient.Schedule.Load()
	if err != nil {
		return err
	}

	sched.IsEnabled = enabled
	if err := appClient.Schedule.Save(sched); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "is_enabled": enabled})
		return nil
	}

	if enabled {
		next := schedule.NextRun(&sched, time.Now())
		printSuccess("Schedule enabled, next run %s", next.Format("2006-01-02 15:04"))
	} else {
		printSuccess("Schedule disabled")
	}
	return nil
}
