package render_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvault/vitalvault/internal/config"
	"github.com/vitalvault/vitalvault/internal/models"
	"github.com/vitalvault/vitalvault/internal/render"
)

func sampleRecord() *models.HealthRecord {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local)
	return &models.HealthRecord{
		Date: day,
		Sleep: &models.SleepMetrics{
			TotalMinutes: 431,
			DeepMinutes:  62,
			RemMinutes:   98,
			Efficiency:   91.5,
		},
		Activity: &models.ActivityMetrics{
			Steps:            9214,
			ActiveEnergyKcal: 612.4,
			ExerciseMinutes:  48,
			DistanceKm:       7.3,
		},
		Vitals: &models.VitalMetrics{
			RestingHeartRate: 52,
			HRVMillis:        48.2,
		},
		Workouts: []models.Workout{
			{
				Type:            "running",
				Start:           day.Add(7*time.Hour + 15*time.Minute),
				DurationMinutes: 34,
				DistanceKm:      5.1,
				EnergyKcal:      387,
				AvgHeartRate:    151,
			},
		},
	}
}

func TestNewRenderer(t *testing.T) {
	tests := []struct {
		format string
		ext    string
	}{
		{config.FormatMarkdown, ".md"},
		{config.FormatJSON, ".json"},
		{config.FormatCSV, ".csv"},
		{config.FormatBases, ".md"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			r, err := render.New(tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.ext, r.Extension())
		})
	}

	_, err := render.New("xml")
	assert.ErrorContains(t, err, "unknown export format")
}

func TestFilename(t *testing.T) {
	r, err := render.New(config.FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "2025-06-01.json", render.Filename(r, sampleRecord()))
}

func TestMarkdownRender(t *testing.T) {
	r := &render.MarkdownRenderer{}

	out, err := r.Render(sampleRecord())
	require.NoError(t, err)
	text := string(out)

	// Frontmatter fence with day and sections.
	assert.True(t, strings.HasPrefix(text, "---\n"))
	assert.Contains(t, text, "date: \"2025-06-01\"")
	assert.Contains(t, text, "- sleep")
	assert.Contains(t, text, "- workouts")

	// Section content.
	assert.Contains(t, text, "# Health 2025-06-01")
	assert.Contains(t, text, "## Sleep")
	assert.Contains(t, text, "- Asleep: 7h 11m")
	assert.Contains(t, text, "- Steps: 9214")
	assert.Contains(t, text, "- running at 07:15: 34m, 5.1 km, 387 kcal, avg 151 bpm")

	// Empty sections stay absent.
	assert.NotContains(t, text, "## Nutrition")
	assert.NotContains(t, text, "## Body")
}

func TestJSONRenderRoundTrip(t *testing.T) {
	r := &render.JSONRenderer{}
	record := sampleRecord()

	out, err := r.Render(record)
	require.NoError(t, err)

	var decoded models.HealthRecord
	require.NoError(t, json.Unmarshal(out, &decoded))

	require.NotNil(t, decoded.Sleep)
	assert.Equal(t, 431, decoded.Sleep.TotalMinutes)
	require.NotNil(t, decoded.Activity)
	assert.Equal(t, 9214, decoded.Activity.Steps)
	assert.Nil(t, decoded.Nutrition)
	require.Len(t, decoded.Workouts, 1)
	assert.Equal(t, "running", decoded.Workouts[0].Type)
}

func TestCSVRender(t *testing.T) {
	r := &render.CSVRenderer{}

	out, err := r.Render(sampleRecord())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	assert.Equal(t, "date,section,metric,value", lines[0])
	assert.Contains(t, lines, "2025-06-01,sleep,total_minutes,431")
	assert.Contains(t, lines, "2025-06-01,activity,steps,9214")
	assert.Contains(t, lines, "2025-06-01,workout_1,type,running")

	// Zero metrics are omitted.
	for _, line := range lines {
		assert.NotContains(t, line, "in_bed_minutes")
	}
}

func TestBasesRender(t *testing.T) {
	r := &render.BasesRenderer{}

	out, err := r.Render(sampleRecord())
	require.NoError(t, err)
	text := string(out)

	assert.True(t, strings.HasPrefix(text, "---\n"))
	assert.Contains(t, text, "sleep_total_minutes: 431")
	assert.Contains(t, text, "steps: 9214")
	assert.Contains(t, text, "workout_count: 1")
	assert.Contains(t, text, "workout_minutes: 34")

	// Zero metrics are omitted from properties.
	assert.NotContains(t, text, "stand_hours")
	assert.NotContains(t, text, "weight_kg")

	// Body is a single heading after the frontmatter.
	assert.True(t, strings.HasSuffix(text, "# Health 2025-06-01\n"))
}

func TestRenderEmptyRecord(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local)
	record := &models.HealthRecord{Date: day}

	for _, format := range []string{
		config.FormatMarkdown,
		config.FormatJSON,
		config.FormatCSV,
		config.FormatBases,
	} {
		t.Run(format, func(t *testing.T) {
			r, err := render.New(format)
			require.NoError(t, err)

			out, err := r.Render(record)
			require.NoError(t, err)
			assert.NotEmpty(t, out)
		})
	}
}
