package render

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/vitalvault/vitalvault/internal/models"
)

// CSVRenderer writes the record in long form: one row per metric with
// date, section, metric and value columns.
type CSVRenderer struct{}

// Extension returns ".csv".
func (r *CSVRenderer) Extension() string { return ".csv" }

// Render serializes the record as CSV.
func (r *CSVRenderer) Render(record *models.HealthRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	day := models.DayLabel(record.Date)
	if err := w.Write([]string{"date", "section", "metric", "value"}); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	row := func(section, metric, value string) {
		_ = w.Write([]string{day, section, metric, value})
	}
	intRow := func(section, metric string, v int) {
		if v != 0 {
			row(section, metric, strconv.Itoa(v))
		}
	}
	floatRow := func(section, metric string, v float64) {
		if v != 0 {
			row(section, metric, formatFloat(v))
		}
	}

	if s := record.Sleep; s != nil {
		intRow("sleep", "total_minutes", s.TotalMinutes)
		intRow("sleep", "in_bed_minutes", s.InBedMinutes)
		intRow("sleep", "deep_minutes", s.DeepMinutes)
		intRow("sleep", "core_minutes", s.CoreMinutes)
		intRow("sleep", "rem_minutes", s.RemMinutes)
		intRow("sleep", "awake_minutes", s.AwakeMinutes)
		floatRow("sleep", "efficiency", s.Efficiency)
	}

	if a := record.Activity; a != nil {
		intRow("activity", "steps", a.Steps)
		floatRow("activity", "active_energy_kcal", a.ActiveEnergyKcal)
		floatRow("activity", "resting_energy_kcal", a.RestingEnergyKcal)
		intRow("activity", "exercise_minutes", a.ExerciseMinutes)
		intRow("activity", "stand_hours", a.StandHours)
		floatRow("activity", "distance_km", a.DistanceKm)
		intRow("activity", "flights_climbed", a.FlightsClimbed)
	}

	if v := record.Vitals; v != nil {
		intRow("vitals", "resting_heart_rate", v.RestingHeartRate)
		floatRow("vitals", "heart_rate_avg", v.HeartRateAvg)
		intRow("vitals", "heart_rate_max", v.HeartRateMax)
		floatRow("vitals", "hrv_millis", v.HRVMillis)
		floatRow("vitals", "respiratory_rate", v.RespiratoryRate)
		floatRow("vitals", "blood_oxygen", v.BloodOxygen)
	}

	if b := record.Body; b != nil {
		floatRow("body", "weight_kg", b.WeightKg)
		floatRow("body", "body_fat_percent", b.BodyFatPercent)
		floatRow("body", "lean_mass_kg", b.LeanMassKg)
		floatRow("body", "bmi", b.BMI)
	}

	if n := record.Nutrition; n != nil {
		floatRow("nutrition", "calories", n.Calories)
		floatRow("nutrition", "protein_grams", n.ProteinGrams)
		floatRow("nutrition", "carbs_grams", n.CarbsGrams)
		floatRow("nutrition", "fat_grams", n.FatGrams)
		floatRow("nutrition", "water_liters", n.WaterLiters)
	}

	if m := record.Mindfulness; m != nil {
		intRow("mindfulness", "mindful_minutes", m.MindfulMinutes)
		intRow("mindfulness", "sessions", m.Sessions)
	}

	if mo := record.Mobility; mo != nil {
		floatRow("mobility", "walking_speed_kmh", mo.WalkingSpeedKmh)
		floatRow("mobility", "step_length_cm", mo.StepLengthCm)
		floatRow("mobility", "double_support_percent", mo.DoubleSupportPercent)
		floatRow("mobility", "walking_asymmetry_percent", mo.WalkingAsymmetryPercent)
	}

	for i, workout := range record.Workouts {
		section := fmt.Sprintf("workout_%d", i+1)
		row(section, "type", workout.Type)
		row(section, "start", workout.Start.Format("15:04"))
		intRow(section, "duration_minutes", workout.DurationMinutes)
		floatRow(section, "energy_kcal", workout.EnergyKcal)
		floatRow(section, "distance_km", workout.DistanceKm)
		intRow(section, "avg_heart_rate", workout.AvgHeartRate)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write rows: %w", err)
	}

	return buf.Bytes(), nil
}
