package models

import "time"

// Day normalizes an instant to local midnight of its calendar day. All
// per-day bookkeeping uses these normalized instants.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether two instants fall on the same calendar day in
// their respective locations.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// DayLabel formats a day as YYYY-MM-DD.
func DayLabel(t time.Time) string {
	return t.Format("2006-01-02")
}

// ParseDayLabel parses a YYYY-MM-DD label into local midnight of that
// day.
func ParseDayLabel(label string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", label, time.Local)
}

// FailedDate records one day's failure outcome. Immutable once created.
type FailedDate struct {
	Date     time.Time     `json:"date"`
	Reason   FailureReason `json:"reason"`
	RawError string        `json:"raw_error,omitempty"`
}

// ExportResult aggregates one orchestration run.
//
// For a run that was not cancelled, SuccessCount plus the number of
// failed dates always equals TotalCount. A cancelled run counts only the
// days attempted before the cancellation took effect.
type ExportResult struct {
	SuccessCount int          `json:"success_count"`
	TotalCount   int          `json:"total_count"`
	FailedDates  []FailedDate `json:"failed_dates,omitempty"`
	WasCancelled bool         `json:"was_cancelled,omitempty"`
}

// IsFullSuccess reports whether every day exported.
func (r *ExportResult) IsFullSuccess() bool {
	return r.TotalCount > 0 && r.SuccessCount == r.TotalCount
}

// IsPartialSuccess reports whether some but not all days exported.
func (r *ExportResult) IsPartialSuccess() bool {
	return r.SuccessCount > 0 && r.SuccessCount < r.TotalCount
}

// IsTotalFailure reports whether every attempted day failed.
func (r *ExportResult) IsTotalFailure() bool {
	return r.TotalCount > 0 && r.SuccessCount == 0
}

// FirstFailure returns the earliest failed day, or nil.
func (r *ExportResult) FirstFailure() *FailedDate {
	if len(r.FailedDates) == 0 {
		return nil
	}
	return &r.FailedDates[0]
}

// AllFailedWith reports whether every failure shares one reason and at
// least one day failed.
func (r *ExportResult) AllFailedWith(reason FailureReason) bool {
	if len(r.FailedDates) == 0 {
		return false
	}
	for _, f := range r.FailedDates {
		if f.Reason != reason {
			return false
		}
	}
	return true
}

// CatchUpStatus classifies the outcome of a catch-up run.
type CatchUpStatus string

const (
	CatchUpSuccess   CatchUpStatus = "success"
	CatchUpPartial   CatchUpStatus = "partial_success"
	CatchUpFailure   CatchUpStatus = "failure"
	CatchUpNotNeeded CatchUpStatus = "no_export_needed"
)

// CatchUpResult is the caller-facing outcome of a catch-up run, carrying
// the payload matching its status.
type CatchUpResult struct {
	Status       CatchUpStatus `json:"status"`
	DaysExported int           `json:"days_exported,omitempty"`
	TotalDays    int           `json:"total_days,omitempty"`
	Reason       FailureReason `json:"reason,omitempty"`
}

// NeedsRetryReminder reports whether the failure warrants a tap-to-retry
// reminder rather than a failure notification. A locked device resolves
// itself once the user unlocks, so the run is worth repeating as-is.
func (c *CatchUpResult) NeedsRetryReminder() bool {
	return c.Status == CatchUpFailure && c.Reason == FailureDeviceLocked
}
