package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvault/vitalvault/internal/models"
)

func TestNewHistoryEntry(t *testing.T) {
	now := time.Date(2025, 6, 3, 9, 30, 0, 0, time.Local)
	start := time.Date(2025, 6, 1, 15, 0, 0, 0, time.Local)
	end := time.Date(2025, 6, 2, 8, 0, 0, 0, time.Local)

	t.Run("full success", func(t *testing.T) {
		result := &models.ExportResult{SuccessCount: 2, TotalCount: 2}
		entry := models.NewHistoryEntry(models.SourceManual, start, end, result, now)

		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, now, entry.Timestamp)
		assert.Equal(t, models.SourceManual, entry.Source)
		assert.True(t, entry.Success)
		assert.Equal(t, models.Day(start), entry.DateRangeStart)
		assert.Equal(t, models.Day(end), entry.DateRangeEnd)
		assert.Equal(t, 2, entry.SuccessCount)
		assert.Equal(t, 2, entry.TotalCount)
		assert.Nil(t, entry.FailureReason)
		assert.Empty(t, entry.FailedDates)
	})

	t.Run("partial success keeps success flag", func(t *testing.T) {
		result := &models.ExportResult{
			SuccessCount: 1,
			TotalCount:   2,
			FailedDates: []models.FailedDate{
				{Date: models.Day(end), Reason: models.FailureAcquisition},
			},
		}
		entry := models.NewHistoryEntry(models.SourceScheduled, start, end, result, now)

		assert.True(t, entry.Success)
		assert.Nil(t, entry.FailureReason)
		assert.Len(t, entry.FailedDates, 1)
	})

	t.Run("total failure records run-level reason", func(t *testing.T) {
		result := &models.ExportResult{
			SuccessCount: 0,
			TotalCount:   2,
			FailedDates: []models.FailedDate{
				{Date: models.Day(start), Reason: models.FailureDeviceLocked},
				{Date: models.Day(end), Reason: models.FailureAcquisition},
			},
		}
		entry := models.NewHistoryEntry(models.SourceScheduled, start, end, result, now)

		assert.False(t, entry.Success)
		require.NotNil(t, entry.FailureReason)
		assert.Equal(t, models.FailureDeviceLocked, *entry.FailureReason)
	})

	t.Run("unique ids", func(t *testing.T) {
		result := &models.ExportResult{SuccessCount: 1, TotalCount: 1}
		a := models.NewHistoryEntry(models.SourceManual, start, end, result, now)
		b := models.NewHistoryEntry(models.SourceManual, start, end, result, now)
		assert.NotEqual(t, a.ID, b.ID)
	})
}

func TestHistoryEntryRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 3, 9, 30, 0, 0, time.Local)
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local)

	reason := models.FailureWrite
	entry := models.HistoryEntry{
		ID:             "e1",
		Timestamp:      now,
		Source:         models.SourceScheduled,
		Success:        false,
		DateRangeStart: day,
		DateRangeEnd:   day,
		SuccessCount:   0,
		TotalCount:     1,
		FailureReason:  &reason,
		FailedDates: []models.FailedDate{
			{Date: day, Reason: models.FailureWrite, RawError: "disk full"},
		},
	}

	data, err := json.Marshal(entry)
	require.NoError(t, err)

	var decoded models.HistoryEntry
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, entry.ID, decoded.ID)
	assert.True(t, entry.Timestamp.Equal(decoded.Timestamp))
	assert.Equal(t, entry.Source, decoded.Source)
	require.NotNil(t, decoded.FailureReason)
	assert.Equal(t, models.FailureWrite, *decoded.FailureReason)
	require.Len(t, decoded.FailedDates, 1)
	assert.True(t, day.Equal(decoded.FailedDates[0].Date))
	assert.Equal(t, "disk full", decoded.FailedDates[0].RawError)

	// Optional fields stay absent when unset.
	success := models.HistoryEntry{ID: "e2", Success: true}
	data, err = json.Marshal(success)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "failure_reason")
	assert.NotContains(t, string(data), "failed_dates")
}

func TestHistoryEntryRetryRange(t *testing.T) {
	day1 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local)
	day3 := day1.AddDate(0, 0, 2)
	day5 := day1.AddDate(0, 0, 4)

	t.Run("failed days only", func(t *testing.T) {
		entry := models.HistoryEntry{
			DateRangeStart: day1,
			DateRangeEnd:   day5,
			FailedDates: []models.FailedDate{
				{Date: day3, Reason: models.FailureWrite},
				{Date: day5, Reason: models.FailureWrite},
			},
		}

		start, end := entry.RetryRange()
		assert.Equal(t, day3, start)
		assert.Equal(t, day5, end)
	})

	t.Run("no failures falls back to original range", func(t *testing.T) {
		entry := models.HistoryEntry{
			DateRangeStart: day1,
			DateRangeEnd:   day5,
		}

		start, end := entry.RetryRange()
		assert.Equal(t, day1, start)
		assert.Equal(t, day5, end)
	})
}
