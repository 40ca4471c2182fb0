package schedule_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvault/vitalvault/internal/events"
	"github.com/vitalvault/vitalvault/internal/models"
	"github.com/vitalvault/vitalvault/internal/schedule"
)

func newTestStore(t *testing.T) (*schedule.Store, string) {
	t.Helper()

	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	path := filepath.Join(t.TempDir(), "state", "schedule.json")
	store, err := schedule.NewStore(path, logger)
	require.NoError(t, err)
	return store, path
}

func TestScheduleStoreDefaults(t *testing.T) {
	store, _ := newTestStore(t)

	sched, err := store.Load()
	require.NoError(t, err)

	assert.False(t, sched.IsEnabled)
	assert.Equal(t, models.FrequencyDaily, sched.Frequency)
	assert.Equal(t, 23, sched.PreferredHour)
	assert.Equal(t, 0, sched.PreferredMinute)
	assert.Nil(t, sched.LastExportDate)
}

func TestScheduleStoreRoundTrip(t *testing.T) {
	store, path := newTestStore(t)

	sched := models.Schedule{
		IsEnabled:       true,
		Frequency:       models.FrequencyWeekly,
		PreferredHour:   7,
		PreferredMinute: 45,
	}
	sched.MarkExported(time.Date(2026, 3, 16, 7, 45, 12, 0, time.Local))

	require.NoError(t, store.Save(sched))

	loaded, err := store.Load()
	require.NoError(t, err)

	assert.True(t, loaded.IsEnabled)
	assert.Equal(t, models.FrequencyWeekly, loaded.Frequency)
	assert.Equal(t, 7, loaded.PreferredHour)
	assert.Equal(t, 45, loaded.PreferredMinute)
	require.NotNil(t, loaded.LastExportDate)
	assert.Equal(t, sched.LastExportDate.Unix(), loaded.LastExportDate.Unix())

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "schedule.json", entries[0].Name())
}

func TestScheduleStoreClearsWatermarkAbsence(t *testing.T) {
	store, _ := newTestStore(t)

	sched := models.DefaultSchedule()
	sched.IsEnabled = true
	require.NoError(t, store.Save(sched))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded.LastExportDate)
}

func TestScheduleStoreRejectsInvalid(t *testing.T) {
	store, _ := newTestStore(t)

	good := models.DefaultSchedule()
	require.NoError(t, store.Save(good))

	bad := good
	bad.PreferredHour = 99
	err := store.Save(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preferred hour")

	// The previous schedule is untouched.
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 23, loaded.PreferredHour)
}

func TestScheduleStoreCorruptFile(t *testing.T) {
	store, path := newTestStore(t)

	require.NoError(t, store.Save(models.DefaultSchedule()))
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0600))

	_, err := store.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse schedule")
}

func TestScheduleStoreInvalidValuesOnDisk(t *testing.T) {
	store, path := newTestStore(t)

	raw := `{"is_enabled":true,"frequency":"hourly","preferred_hour":4,"preferred_minute":0}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0600))

	_, err := store.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
}
