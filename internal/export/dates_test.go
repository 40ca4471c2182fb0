package export_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvault/vitalvault/internal/export"
	"github.com/vitalvault/vitalvault/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func labels(days []time.Time) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, models.DayLabel(d))
	}
	return out
}

func TestResolveDatesMonthBoundary(t *testing.T) {
	days := export.ResolveDates(day(2026, 1, 30), day(2026, 2, 2))

	assert.Equal(t, []string{
		"2026-01-30",
		"2026-01-31",
		"2026-02-01",
		"2026-02-02",
	}, labels(days))
}

func TestResolveDatesYearBoundary(t *testing.T) {
	days := export.ResolveDates(day(2025, 12, 30), day(2026, 1, 2))

	assert.Equal(t, []string{
		"2025-12-30",
		"2025-12-31",
		"2026-01-01",
		"2026-01-02",
	}, labels(days))
}

func TestResolveDatesSingleDay(t *testing.T) {
	days := export.ResolveDates(day(2026, 3, 15), day(2026, 3, 15))

	require.Len(t, days, 1)
	assert.Equal(t, "2026-03-15", models.DayLabel(days[0]))
}

func TestResolveDatesNormalizesTimeOfDay(t *testing.T) {
	start := time.Date(2026, 3, 10, 22, 45, 13, 0, time.Local)
	end := time.Date(2026, 3, 11, 3, 1, 0, 0, time.Local)

	days := export.ResolveDates(start, end)

	require.Len(t, days, 2)
	for _, d := range days {
		assert.Equal(t, 0, d.Hour())
		assert.Equal(t, 0, d.Minute())
		assert.Equal(t, 0, d.Second())
	}
	assert.Equal(t, []string{"2026-03-10", "2026-03-11"}, labels(days))
}

func TestResolveDatesReversedRange(t *testing.T) {
	days := export.ResolveDates(day(2026, 5, 20), day(2026, 5, 10))

	require.Len(t, days, 1)
	assert.Equal(t, "2026-05-20", models.DayLabel(days[0]))
}

func TestResolveDatesAscendingAndUnique(t *testing.T) {
	days := export.ResolveDates(day(2026, 6, 1), day(2026, 6, 30))

	require.Len(t, days, 30)
	seen := make(map[string]bool)
	for i := 1; i < len(days); i++ {
		assert.True(t, days[i-1].Before(days[i]))
	}
	for _, d := range days {
		label := models.DayLabel(d)
		assert.False(t, seen[label], "day %s repeated", label)
		seen[label] = true
	}
}
