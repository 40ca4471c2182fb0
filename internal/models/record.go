package models

import "time"

// HealthRecord holds one calendar day of health metrics as returned by
// the device. Sections the device has no data for are nil.
type HealthRecord struct {
	Date        time.Time           `json:"date"`
	Sleep       *SleepMetrics       `json:"sleep,omitempty"`
	Activity    *ActivityMetrics    `json:"activity,omitempty"`
	Vitals      *VitalMetrics       `json:"vitals,omitempty"`
	Body        *BodyMetrics        `json:"body,omitempty"`
	Nutrition   *NutritionMetrics   `json:"nutrition,omitempty"`
	Mindfulness *MindfulnessMetrics `json:"mindfulness,omitempty"`
	Mobility    *MobilityMetrics    `json:"mobility,omitempty"`
	Workouts    []Workout           `json:"workouts,omitempty"`
}

// SleepMetrics summarizes one night of sleep.
type SleepMetrics struct {
	TotalMinutes int     `json:"total_minutes"`
	InBedMinutes int     `json:"in_bed_minutes,omitempty"`
	DeepMinutes  int     `json:"deep_minutes,omitempty"`
	CoreMinutes  int     `json:"core_minutes,omitempty"`
	RemMinutes   int     `json:"rem_minutes,omitempty"`
	AwakeMinutes int     `json:"awake_minutes,omitempty"`
	Efficiency   float64 `json:"efficiency,omitempty"`
}

// ActivityMetrics summarizes daily movement.
type ActivityMetrics struct {
	Steps             int     `json:"steps"`
	ActiveEnergyKcal  float64 `json:"active_energy_kcal,omitempty"`
	RestingEnergyKcal float64 `json:"resting_energy_kcal,omitempty"`
	ExerciseMinutes   int     `json:"exercise_minutes,omitempty"`
	StandHours        int     `json:"stand_hours,omitempty"`
	DistanceKm        float64 `json:"distance_km,omitempty"`
	FlightsClimbed    int     `json:"flights_climbed,omitempty"`
}

// VitalMetrics holds daily vital sign summaries.
type VitalMetrics struct {
	RestingHeartRate int     `json:"resting_heart_rate,omitempty"`
	HeartRateAvg     float64 `json:"heart_rate_avg,omitempty"`
	HeartRateMax     int     `json:"heart_rate_max,omitempty"`
	HRVMillis        float64 `json:"hrv_millis,omitempty"`
	RespiratoryRate  float64 `json:"respiratory_rate,omitempty"`
	BloodOxygen      float64 `json:"blood_oxygen,omitempty"`
}

// BodyMetrics holds body measurements.
type BodyMetrics struct {
	WeightKg       float64 `json:"weight_kg,omitempty"`
	BodyFatPercent float64 `json:"body_fat_percent,omitempty"`
	LeanMassKg     float64 `json:"lean_mass_kg,omitempty"`
	BMI            float64 `json:"bmi,omitempty"`
}

// NutritionMetrics holds dietary intake totals.
type NutritionMetrics struct {
	Calories     float64 `json:"calories,omitempty"`
	ProteinGrams float64 `json:"protein_grams,omitempty"`
	CarbsGrams   float64 `json:"carbs_grams,omitempty"`
	FatGrams     float64 `json:"fat_grams,omitempty"`
	WaterLiters  float64 `json:"water_liters,omitempty"`
}

// MindfulnessMetrics holds meditation session totals.
type MindfulnessMetrics struct {
	MindfulMinutes int `json:"mindful_minutes"`
	Sessions       int `json:"sessions,omitempty"`
}

// MobilityMetrics holds gait and walking quality measurements.
type MobilityMetrics struct {
	WalkingSpeedKmh         float64 `json:"walking_speed_kmh,omitempty"`
	StepLengthCm            float64 `json:"step_length_cm,omitempty"`
	DoubleSupportPercent    float64 `json:"double_support_percent,omitempty"`
	WalkingAsymmetryPercent float64 `json:"walking_asymmetry_percent,omitempty"`
}

// Workout is one recorded exercise session.
type Workout struct {
	Type            string    `json:"type"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
	EnergyKcal      float64   `json:"energy_kcal,omitempty"`
	DistanceKm      float64   `json:"distance_km,omitempty"`
	AvgHeartRate    int       `json:"avg_heart_rate,omitempty"`
}

// HasAnyData reports whether any section carries data. A record without
// data is exported as a no-data day, not an empty file.
func (r *HealthRecord) HasAnyData() bool {
	if r == nil {
		return false
	}
	return r.Sleep != nil ||
		r.Activity != nil ||
		r.Vitals != nil ||
		r.Body != nil ||
		r.Nutrition != nil ||
		r.Mindfulness != nil ||
		r.Mobility != nil ||
		len(r.Workouts) > 0
}

// Sections returns the names of populated sections in display order.
func (r *HealthRecord) Sections() []string {
	var s []string
	if r.Sleep != nil {
		s = append(s, "sleep")
	}
	if r.Activity != nil {
		s = append(s, "activity")
	}
	if r.Vitals != nil {
		s = append(s, "vitals")
	}
	if r.Body != nil {
		s = append(s, "body")
	}
	if r.Nutrition != nil {
		s = append(s, "nutrition")
	}
	if r.Mindfulness != nil {
		s = append(s, "mindfulness")
	}
	if r.Mobility != nil {
		s = append(s, "mobility")
	}
	if len(r.Workouts) > 0 {
		s = append(s, "workouts")
	}
	return s
}
