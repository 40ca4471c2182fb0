// Package schedule owns the recurring-export configuration: when the
// next run fires, and which data-days a catch-up run must backfill.
package schedule

import (
	"time"

	"github.com/vitalvault/vitalvault/internal/models"
)

// NextRun returns the next instant the schedule should fire, strictly
// after now: today at the preferred time, advanced by one interval when
// that moment has already passed. It is a pure function so the value is
// re-derived on demand instead of cached.
func NextRun(s *models.Schedule, now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(),
		s.PreferredHour, s.PreferredMinute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, s.Frequency.IntervalDays())
	}
	return next
}

// MissedDays returns the data-days a catch-up run must backfill, oldest
// first. Empty means the watermark already covers yesterday.
//
// Backfill is bounded so a long absence never triggers an unbounded
// export: a weekly schedule reaches back seven days from yesterday, a
// daily one a single day.
func MissedDays(s *models.Schedule, now time.Time) []time.Time {
	yesterday := models.Day(now).AddDate(0, 0, -1)

	lookback := 1
	if s.Frequency == models.FrequencyWeekly {
		lookback = 7
	}
	oldestAllowed := yesterday.AddDate(0, 0, -lookback)

	// A run on day N covers day N-1's data, so the covered data-day
	// trails the run-time watermark by one day.
	lastDataDay := oldestAllowed.AddDate(0, 0, -1)
	if s.LastExportDate != nil {
		lastDataDay = models.Day(*s.LastExportDate).AddDate(0, 0, -1)
	}

	if !lastDataDay.Before(yesterday) {
		return nil
	}

	from := lastDataDay.AddDate(0, 0, 1)
	if from.Before(oldestAllowed) {
		from = oldestAllowed
	}

	var days []time.Time
	for d := from; !d.After(yesterday); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
