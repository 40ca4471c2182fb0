package export

import (
	"time"

	"github.com/vitalvault/vitalvault/internal/models"
)

// ResolveDates expands a date range into the inclusive, ascending list of
// calendar days it covers. Both endpoints are normalized to local midnight
// first, so the wall-clock time of the inputs never affects the result. A
// reversed range collapses to the single normalized start day.
//
// Days are stepped with AddDate rather than 24h offsets so DST transitions
// cannot skip or duplicate a calendar day.
func ResolveDates(start, end time.Time) []time.Time {
	startDay := models.Day(start)
	endDay := models.Day(end)

	if startDay.After(endDay) {
		return []time.Time{startDay}
	}

	var days []time.Time
	for d := startDay; !d.After(endDay); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
