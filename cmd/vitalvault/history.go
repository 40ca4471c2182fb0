package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vitalvault/vitalvault/internal/models"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and retry past export runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent export runs, newest first",
	RunE:  runHistoryList,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the export run log",
	RunE:  runHistoryClear,
}

var historyRetryCmd = &cobra.Command{
	Use:   "retry <run-id>",
	Short: "Re-export the failed days of a past run",
	Long: `Retry re-runs only the days that failed in the given run. A run that
recorded no failures is re-exported over its full range. The run ID
may be abbreviated to any unique prefix.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistoryRetry,
}

var historyLimit int

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyRetryCmd)

	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10,
		"Maximum number of runs to show (0 = all)")
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	entries, err := appClient.History.List()
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}

	if historyLimit > 0 && len(entries) > historyLimit {
		entries = entries[:historyLimit]
	}

	if jsonOutput {
		printJSON(entries)
		return nil
	}

	if len(entries) == 0 {
		printInfo("No export runs recorded yet")
		return nil
	}

	for _, e := range entries {
		fmt.Printf("%s  %s  %-9s  %s  %d/%d days",
			shortID(e.ID),
			e.Timestamp.Format("2006-01-02 15:04"),
			e.Source,
			formatRange(e.DateRangeStart, e.DateRangeEnd),
			e.SuccessCount, e.TotalCount,
		)
		if e.FailureReason != nil {
			_, _ = errorColor.Printf("  %s", e.FailureReason.Label())
		} else if len(e.FailedDates) > 0 {
			_, _ = warnColor.Printf("  %d failed", len(e.FailedDates))
		}
		fmt.Println()
	}
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	if err := appClient.History.Clear(); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true})
	} else {
		printSuccess("Export history cleared")
	}
	return nil
}

func runHistoryRetry(cmd *cobra.Command, args []string) error {
	entry, err := findHistoryEntry(args[0])
	if err != nil {
		return err
	}

	days := len(entry.FailedDates)
	if days == 0 {
		printInfo("Run %s recorded no failures, re-exporting its full range", shortID(entry.ID))
	} else {
		printInfo("Retrying %d failed day(s) of run %s", days, shortID(entry.ID))
	}

	startTime := time.Now()
	result, err := appClient.Export.RunRetry(context.Background(), entry)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success":       !result.IsTotalFailure(),
			"retried_run":   entry.ID,
			"total_count":   result.TotalCount,
			"success_count": result.SuccessCount,
			"failed_dates":  result.FailedDates,
		})
	} else {
		printExportSummary(result, time.Since(startTime))
	}

	if result.IsTotalFailure() {
		return fmt.Errorf("no day exported")
	}
	return nil
}

// findHistoryEntry resolves an ID or unique ID prefix to an entry.
func findHistoryEntry(id string) (*models.HistoryEntry, error) {
	entries, err := appClient.History.List()
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	var match *models.HistoryEntry
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
		if strings.HasPrefix(e.ID, id) {
			if match != nil {
				return nil, fmt.Errorf("run ID prefix %q is ambiguous", id)
			}
			match = e
		}
	}

	if match == nil {
		return nil, fmt.Errorf("no run with ID %q", id)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatRange(start, end time.Time) string {
	if models.SameDay(start, end) {
		return models.DayLabel(start)
	}
	return models.DayLabel(start) + ".." + models.DayLabel(end)
}
