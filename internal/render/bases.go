package render

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/vitalvault/vitalvault/internal/models"
)

// BasesRenderer writes a note that is all frontmatter: every metric
// becomes a flat property so tabular "bases" views can query the days
// like database rows. The body is a single heading.
type BasesRenderer struct{}

// Extension returns ".md".
func (r *BasesRenderer) Extension() string { return ".md" }

// Render serializes the record as property-only Markdown.
func (r *BasesRenderer) Render(record *models.HealthRecord) ([]byte, error) {
	props := map[string]interface{}{
		"date": models.DayLabel(record.Date),
		"type": "health",
	}

	if s := record.Sleep; s != nil {
		addProp(props, "sleep_total_minutes", s.TotalMinutes)
		addProp(props, "sleep_in_bed_minutes", s.InBedMinutes)
		addProp(props, "sleep_deep_minutes", s.DeepMinutes)
		addProp(props, "sleep_core_minutes", s.CoreMinutes)
		addProp(props, "sleep_rem_minutes", s.RemMinutes)
		addProp(props, "sleep_awake_minutes", s.AwakeMinutes)
		addProp(props, "sleep_efficiency", s.Efficiency)
	}

	if a := record.Activity; a != nil {
		addProp(props, "steps", a.Steps)
		addProp(props, "active_energy_kcal", a.ActiveEnergyKcal)
		addProp(props, "resting_energy_kcal", a.RestingEnergyKcal)
		addProp(props, "exercise_minutes", a.ExerciseMinutes)
		addProp(props, "stand_hours", a.StandHours)
		addProp(props, "distance_km", a.DistanceKm)
		addProp(props, "flights_climbed", a.FlightsClimbed)
	}

	if v := record.Vitals; v != nil {
		addProp(props, "resting_heart_rate", v.RestingHeartRate)
		addProp(props, "heart_rate_avg", v.HeartRateAvg)
		addProp(props, "heart_rate_max", v.HeartRateMax)
		addProp(props, "hrv_millis", v.HRVMillis)
		addProp(props, "respiratory_rate", v.RespiratoryRate)
		addProp(props, "blood_oxygen", v.BloodOxygen)
	}

	if b := record.Body; b != nil {
		addProp(props, "weight_kg", b.WeightKg)
		addProp(props, "body_fat_percent", b.BodyFatPercent)
		addProp(props, "lean_mass_kg", b.LeanMassKg)
		addProp(props, "bmi", b.BMI)
	}

	if n := record.Nutrition; n != nil {
		addProp(props, "calories", n.Calories)
		addProp(props, "protein_grams", n.ProteinGrams)
		addProp(props, "carbs_grams", n.CarbsGrams)
		addProp(props, "fat_grams", n.FatGrams)
		addProp(props, "water_liters", n.WaterLiters)
	}

	if m := record.Mindfulness; m != nil {
		addProp(props, "mindful_minutes", m.MindfulMinutes)
		addProp(props, "mindful_sessions", m.Sessions)
	}

	if mo := record.Mobility; mo != nil {
		addProp(props, "walking_speed_kmh", mo.WalkingSpeedKmh)
		addProp(props, "step_length_cm", mo.StepLengthCm)
		addProp(props, "double_support_percent", mo.DoubleSupportPercent)
		addProp(props, "walking_asymmetry_percent", mo.WalkingAsymmetryPercent)
	}

	if len(record.Workouts) > 0 {
		props["workout_count"] = len(record.Workouts)
		var minutes int
		var kcal float64
		for _, w := range record.Workouts {
			minutes += w.DurationMinutes
			kcal += w.EnergyKcal
		}
		addProp(props, "workout_minutes", minutes)
		addProp(props, "workout_energy_kcal", kcal)
	}

	// yaml.v3 sorts map keys, which keeps property order stable.
	fmBytes, err := yaml.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("marshal properties: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fmBytes)
	buf.WriteString("---\n\n")
	fmt.Fprintf(&buf, "# Health %s\n", models.DayLabel(record.Date))

	return buf.Bytes(), nil
}

// addProp records a metric, skipping zero values so absent measurements
// don't show up as zeros in table views.
func addProp(props map[string]interface{}, key string, value interface{}) {
	switch v := value.(type) {
	case int:
		if v != 0 {
			props[key] = v
		}
	case float64:
		if v != 0 {
			props[key] = v
		}
	default:
		props[key] = value
	}
}
