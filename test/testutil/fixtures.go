package testutil

import (
	"bytes"
	"encoding/base64"
	"sync"
	"time"

	"github.com/vitalvault/vitalvault/internal/crypto"
	"github.com/vitalvault/vitalvault/internal/events"
	"github.com/vitalvault/vitalvault/internal/models"
)

// NewTestLogger creates a logger for testing.
func NewTestLogger() *events.Logger {
	var buf bytes.Buffer
	return events.NewTestLogger(events.DebugLevel, "json", &buf)
}

// TestPassphrase is the well-known passphrase used by encryption
// fixtures. TestKeyInfo and the TestDevice encryption mode both derive
// their payload key from it.
const TestPassphrase = "correct horse battery staple"

// testSalt is a fixed 32-byte salt so derived keys are stable across
// test runs.
var testSalt = []byte("vitalvault-test-salt-0123456789a")

// testKeyOnce caches the derived fixture key; PBKDF2 at the full
// iteration count is too slow to repeat for every pairing request.
var (
	testKeyOnce sync.Once
	testKey     []byte
)

func baseKeyInfo() crypto.PayloadKeyInfo {
	return crypto.PayloadKeyInfo{
		Version: crypto.EncryptionVersion,
		Salt:    base64.StdEncoding.EncodeToString(testSalt),
	}
}

// TestKeyInfo returns key derivation parameters matching TestPassphrase,
// including the check value a device publishes at pairing time.
func TestKeyInfo() crypto.PayloadKeyInfo {
	info := baseKeyInfo()
	info.Check = crypto.KeyCheck(DeriveTestKey())
	return info
}

// DeriveTestKey returns the payload key for TestPassphrase. Panics on
// derivation failure, which only happens if the fixture itself is
// broken.
func DeriveTestKey() []byte {
	testKeyOnce.Do(func() {
		key, err := crypto.NewProvider().DeriveKey(TestPassphrase, baseKeyInfo())
		if err != nil {
			panic("testutil: derive fixture key: " + err.Error())
		}
		testKey = key
	})
	return testKey
}

// SampleRecord returns a fully populated health record for the given
// day, the kind a device returns after an active day of wear.
func SampleRecord(date time.Time) *models.HealthRecord {
	day := models.Day(date)
	return &models.HealthRecord{
		Date: day,
		Sleep: &models.SleepMetrics{
			TotalMinutes: 432,
			InBedMinutes: 465,
			DeepMinutes:  58,
			CoreMinutes:  240,
			RemMinutes:   98,
			AwakeMinutes: 36,
			Efficiency:   0.93,
		},
		Activity: &models.ActivityMetrics{
			Steps:             11254,
			ActiveEnergyKcal:  612.4,
			RestingEnergyKcal: 1702.8,
			ExerciseMinutes:   47,
			StandHours:        13,
			DistanceKm:        8.9,
			FlightsClimbed:    14,
		},
		Vitals: &models.VitalMetrics{
			RestingHeartRate: 54,
			HeartRateAvg:     72.3,
			HeartRateMax:     158,
			HRVMillis:        48.2,
			RespiratoryRate:  14.8,
			BloodOxygen:      0.98,
		},
		Body: &models.BodyMetrics{
			WeightKg:       74.2,
			BodyFatPercent: 17.8,
			LeanMassKg:     59.6,
			BMI:            22.9,
		},
		Nutrition: &models.NutritionMetrics{
			Calories:     2240,
			ProteinGrams: 132,
			CarbsGrams:   245,
			FatGrams:     78,
			WaterLiters:  2.4,
		},
		Mindfulness: &models.MindfulnessMetrics{
			MindfulMinutes: 15,
			Sessions:       2,
		},
		Mobility: &models.MobilityMetrics{
			WalkingSpeedKmh:         5.2,
			StepLengthCm:            74,
			DoubleSupportPercent:    27.5,
			WalkingAsymmetryPercent: 2.1,
		},
		Workouts: []models.Workout{
			{
				Type:            "Running",
				Start:           day.Add(7*time.Hour + 15*time.Minute),
				DurationMinutes: 38,
				EnergyKcal:      412,
				DistanceKm:      6.4,
				AvgHeartRate:    151,
			},
			{
				Type:            "Yoga",
				Start:           day.Add(19 * time.Hour),
				DurationMinutes: 25,
				EnergyKcal:      84,
				AvgHeartRate:    88,
			},
		},
	}
}

// SparseRecord returns a record with only step data, the kind a device
// returns for a day the watch was barely worn.
func SparseRecord(date time.Time) *models.HealthRecord {
	return &models.HealthRecord{
		Date:     models.Day(date),
		Activity: &models.ActivityMetrics{Steps: 412},
	}
}

// EmptyRecord returns a record with no sections at all.
func EmptyRecord(date time.Time) *models.HealthRecord {
	return &models.HealthRecord{Date: models.Day(date)}
}

// SampleResult returns an all-success result for n days.
func SampleResult(n int) *models.ExportResult {
	return &models.ExportResult{SuccessCount: n, TotalCount: n}
}

// SampleHistoryEntry returns a recorded run covering a single day.
func SampleHistoryEntry(source models.ExportSource, date time.Time) models.HistoryEntry {
	day := models.Day(date)
	return models.NewHistoryEntry(source, day, day, SampleResult(1), day.Add(26*time.Hour))
}
