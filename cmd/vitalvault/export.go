package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/vitalvault/vitalvault/internal/export"
	"github.com/vitalvault/vitalvault/internal/models"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export health data for a day range",
	Long: `Export fetches each day in the range from the paired device, renders
it, and writes one file per day into the vault.

Without flags it exports yesterday, the most recent complete day. A
day that fails is recorded and skipped; the rest of the range still
exports.`,
	Example: `  vitalvault export
  vitalvault export --from 2026-08-01 --to 2026-08-07
  vitalvault export --from 2026-08-01 --vault ~/Notes`,
	RunE: runExport,
}

var (
	exportFrom  string
	exportTo    string
	exportVault string
	exportFmt   string
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportFrom, "from", "",
		"First day to export, YYYY-MM-DD (default yesterday)")
	exportCmd.Flags().StringVar(&exportTo, "to", "",
		"Last day to export, YYYY-MM-DD (default same as --from)")
	exportCmd.Flags().StringVar(&exportVault, "vault", "",
		"Vault folder, overriding the configured one")
	exportCmd.Flags().StringVar(&exportFmt, "format", "",
		"Output format: markdown, json, csv, bases")
}

// resolveExportRange turns the --from/--to flags into a day range.
func resolveExportRange(now time.Time) (start, end time.Time, err error) {
	yesterday := models.Day(now).AddDate(0, 0, -1)

	start = yesterday
	if exportFrom != "" {
		start, err = models.ParseDayLabel(exportFrom)
		if err != nil {
			return start, end, fmt.Errorf("parse --from: %w", err)
		}
	}

	end = start
	if exportTo != "" {
		end, err = models.ParseDayLabel(exportTo)
		if err != nil {
			return start, end, fmt.Errorf("parse --to: %w", err)
		}
	}

	if end.Before(start) {
		return start, end, fmt.Errorf("--to %s is before --from %s",
			models.DayLabel(end), models.DayLabel(start))
	}

	return start, end, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	start, end, err := resolveExportRange(time.Now())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		printWarning("\nExport interrupted, finishing current day...")
		cancel()
	}()

	if jsonOutput {
		return runExportJSON(ctx, start, end)
	}
	return runExportInteractive(ctx, start, end)
}

func runExportInteractive(ctx context.Context, start, end time.Time) error {
	progress := NewProgressDisplay()
	defer progress.Close()

	go func() {
		for event := range appClient.Export.Events() {
			switch event.Type {
			case export.EventStarted:
				progress.SetPhase("Starting...")

			case export.EventDayStarted:
				logger.WithField("day", event.Day).Debug("Day started")

			case export.EventDayExported:
				if event.Progress != nil {
					progress.Update(event.Progress.Current, event.Progress.Total, event.Day)
				}

			case export.EventDayFailed:
				if event.Failure != nil {
					progress.AddError(fmt.Sprintf("%s: %s", event.Day, event.Failure.Reason.Label()))
				}
				if event.Progress != nil {
					progress.Update(event.Progress.Current, event.Progress.Total, event.Day)
				}

			case export.EventCompleted:
				progress.SetPhase("done")
			}
		}
	}()

	startTime := time.Now()
	result, err := appClient.Export.RunManual(ctx, start, end)
	duration := time.Since(startTime)
	if err != nil {
		return err
	}

	progress.Close()
	printExportSummary(result, duration)

	if result.IsTotalFailure() {
		return fmt.Errorf("no day exported")
	}
	return nil
}

func printExportSummary(result *models.ExportResult, duration time.Duration) {
	fmt.Printf("\nExport summary:\n")
	fmt.Printf("   Days exported: %d/%d\n", result.SuccessCount, result.TotalCount)
	fmt.Printf("   Duration: %s\n", duration.Round(time.Millisecond))

	if result.WasCancelled {
		printWarning("   Cancelled before the full range was attempted")
	}

	for _, f := range result.FailedDates {
		printWarning("   %s: %s", models.DayLabel(f.Date), f.Reason.Label())
	}

	switch {
	case result.IsFullSuccess():
		printSuccess("\nAll days exported")
	case result.IsPartialSuccess():
		printWarning("\nExported with failures")
	}
}

func runExportJSON(ctx context.Context, start, end time.Time) error {
	// Collect per-day events for the output document.
	var dayEvents []map[string]interface{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range appClient.Export.Events() {
			if event.Type != export.EventDayExported && event.Type != export.EventDayFailed {
				continue
			}
			ev := map[string]interface{}{
				"type":      string(event.Type),
				"day":       event.Day,
				"timestamp": event.Timestamp,
			}
			if event.Failure != nil {
				ev["reason"] = string(event.Failure.Reason)
			}
			dayEvents = append(dayEvents, ev)
		}
	}()

	result, err := appClient.Export.RunManual(ctx, start, end)
	if err != nil {
		printJSON(map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return err
	}
	<-done

	printJSON(map[string]interface{}{
		"success":       !result.IsTotalFailure(),
		"start":         models.DayLabel(start),
		"end":           models.DayLabel(end),
		"total_count":   result.TotalCount,
		"success_count": result.SuccessCount,
		"failed_dates":  result.FailedDates,
		"was_cancelled": result.WasCancelled,
		"days":          dayEvents,
	})

	if result.IsTotalFailure() {
		return fmt.Errorf("no day exported")
	}
	return nil
}
