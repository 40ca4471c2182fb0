package models

import (
	"time"

	"github.com/google/uuid"
)

// ExportSource identifies what triggered a run.
type ExportSource string

const (
	SourceManual    ExportSource = "manual"
	SourceScheduled ExportSource = "scheduled"
)

// HistoryLimit caps the persisted run log. Recording beyond it evicts
// the oldest entries.
const HistoryLimit = 50

// HistoryEntry is one completed orchestration run. Entries are immutable
// once created and stored newest first.
type HistoryEntry struct {
	ID             string         `json:"id"`
	Timestamp      time.Time      `json:"timestamp"`
	Source         ExportSource   `json:"source"`
	Success        bool           `json:"success"`
	DateRangeStart time.Time      `json:"date_range_start"`
	DateRangeEnd   time.Time      `json:"date_range_end"`
	SuccessCount   int            `json:"success_count"`
	TotalCount     int            `json:"total_count"`
	FailureReason  *FailureReason `json:"failure_reason,omitempty"`
	FailedDates    []FailedDate   `json:"failed_dates,omitempty"`
}

// NewHistoryEntry builds the entry for a completed run. The run-level
// failure reason is set only when no day succeeded, taken from the first
// failed day.
func NewHistoryEntry(source ExportSource, rangeStart, rangeEnd time.Time, result *ExportResult, now time.Time) HistoryEntry {
	entry := HistoryEntry{
		ID:             uuid.NewString(),
		Timestamp:      now,
		Source:         source,
		Success:        result.SuccessCount > 0,
		DateRangeStart: Day(rangeStart),
		DateRangeEnd:   Day(rangeEnd),
		SuccessCount:   result.SuccessCount,
		TotalCount:     result.TotalCount,
		FailedDates:    result.FailedDates,
	}

	if result.SuccessCount == 0 {
		if f := result.FirstFailure(); f != nil {
			reason := f.Reason
			entry.FailureReason = &reason
		}
	}

	return entry
}

// RetryRange returns the day span a retry of this run should cover.
// Retries target only the failed days, so the span is the min..max of
// FailedDates when any exist, else the original range.
func (e *HistoryEntry) RetryRange() (start, end time.Time) {
	if len(e.FailedDates) == 0 {
		return e.DateRangeStart, e.DateRangeEnd
	}

	start = e.FailedDates[0].Date
	end = e.FailedDates[0].Date
	for _, f := range e.FailedDates[1:] {
		if f.Date.Before(start) {
			start = f.Date
		}
		if f.Date.After(end) {
			end = f.Date
		}
	}
	return start, end
}
