package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vitalvault/vitalvault/internal/schedule"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pairing, device, vault and schedule state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	paired := appClient.Paired()

	deviceReachable := false
	var deviceErr string
	if paired {
		if err := appClient.API().Ping(ctx); err != nil {
			deviceErr = err.Error()
		} else {
			deviceReachable = true
		}
	}

	vaultReady := appClient.Vault().HasAccess()

	sched, schedErr := appClient.Schedule.Load()

	entries, _ := appClient.History.List()

	if jsonOutput {
		out := map[string]interface{}{
			"paired":           paired,
			"device_reachable": deviceReachable,
			"vault_ready":      vaultReady,
			"runs_recorded":    len(entries),
		}
		if deviceErr != "" {
			out["device_error"] = deviceErr
		}
		if creds := appClient.Credentials(); creds != nil {
			out["device_name"] = creds.DeviceName
			out["encrypted"] = creds.Encrypted()
		}
		if schedErr == nil {
			out["schedule_enabled"] = sched.IsEnabled
			if sched.IsEnabled {
				out["next_run"] = schedule.NextRun(&sched, time.Now()).Format(time.RFC3339)
			}
		}
		if len(entries) > 0 {
			out["last_run"] = entries[0]
		}
		printJSON(out)
		return nil
	}

	if paired {
		name := "device"
		if creds := appClient.Credentials(); creds != nil && creds.DeviceName != "" {
			name = creds.DeviceName
		}
		printSuccess("Paired with %s", name)
		if creds := appClient.Credentials(); creds != nil && creds.Encrypted() {
			printInfo("   Payload encryption: on")
		}
		if deviceReachable {
			printSuccess("Device reachable at %s", cfg.API.BaseURL)
		} else {
			printWarning("Device not reachable: %s", deviceErr)
		}
	} else {
		printWarning("Not paired; run `vitalvault pair` first")
	}

	if vaultReady {
		printSuccess("Vault ready")
	} else {
		printWarning("Vault not configured or missing (set vault.path or use --vault)")
	}

	if schedErr == nil {
		if sched.IsEnabled {
			next := schedule.NextRun(&sched, time.Now())
			printInfo("Schedule: %s at %02d:%02d, next run %s",
				sched.Frequency, sched.PreferredHour, sched.PreferredMinute,
				next.Format("2006-01-02 15:04"))
		} else {
			printInfo("Schedule: disabled")
		}
	}

	if len(entries) > 0 {
		last := entries[0]
		fmt.Printf("Last run: %s %s, %d/%d days",
			last.Timestamp.Format("2006-01-02 15:04"), last.Source,
			last.SuccessCount, last.TotalCount)
		if last.FailureReason != nil {
			_, _ = errorColor.Printf(" (%s)", last.FailureReason.Label())
		}
		fmt.Println()
	} else {
		printInfo("No export runs recorded yet")
	}

	return nil
}
