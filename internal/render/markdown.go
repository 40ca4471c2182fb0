package render

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/vitalvault/vitalvault/internal/models"
)

// MarkdownRenderer writes a daily note: YAML frontmatter followed by one
// section per populated metric group.
type MarkdownRenderer struct{}

type markdownFrontmatter struct {
	Date     string   `yaml:"date"`
	Type     string   `yaml:"type"`
	Sections []string `yaml:"sections,omitempty"`
}

// Extension returns ".md".
func (r *MarkdownRenderer) Extension() string { return ".md" }

// Render serializes the record as Markdown.
func (r *MarkdownRenderer) Render(record *models.HealthRecord) ([]byte, error) {
	var buf bytes.Buffer

	fm := markdownFrontmatter{
		Date:     models.DayLabel(record.Date),
		Type:     "health",
		Sections: record.Sections(),
	}

	fmBytes, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("marshal frontmatter: %w", err)
	}

	buf.WriteString("---\n")
	buf.Write(fmBytes)
	buf.WriteString("---\n\n")

	fmt.Fprintf(&buf, "# Health %s\n", models.DayLabel(record.Date))

	if s := record.Sleep; s != nil {
		buf.WriteString("\n## Sleep\n\n")
		fmt.Fprintf(&buf, "- Asleep: %s\n", formatDuration(s.TotalMinutes))
		if s.InBedMinutes > 0 {
			fmt.Fprintf(&buf, "- In bed: %s\n", formatDuration(s.InBedMinutes))
		}
		if s.DeepMinutes > 0 {
			fmt.Fprintf(&buf, "- Deep: %s\n", formatDuration(s.DeepMinutes))
		}
		if s.CoreMinutes > 0 {
			fmt.Fprintf(&buf, "- Core: %s\n", formatDuration(s.CoreMinutes))
		}
		if s.RemMinutes > 0 {
			fmt.Fprintf(&buf, "- REM: %s\n", formatDuration(s.RemMinutes))
		}
		if s.AwakeMinutes > 0 {
			fmt.Fprintf(&buf, "- Awake: %s\n", formatDuration(s.AwakeMinutes))
		}
		if s.Efficiency > 0 {
			fmt.Fprintf(&buf, "- Efficiency: %s%%\n", formatFloat(s.Efficiency))
		}
	}

	if a := record.Activity; a != nil {
		buf.WriteString("\n## Activity\n\n")
		fmt.Fprintf(&buf, "- Steps: %d\n", a.Steps)
		if a.ActiveEnergyKcal > 0 {
			fmt.Fprintf(&buf, "- Active energy: %s kcal\n", formatFloat(a.ActiveEnergyKcal))
		}
		if a.RestingEnergyKcal > 0 {
			fmt.Fprintf(&buf, "- Resting energy: %s kcal\n", formatFloat(a.RestingEnergyKcal))
		}
		if a.ExerciseMinutes > 0 {
			fmt.Fprintf(&buf, "- Exercise: %s\n", formatDuration(a.ExerciseMinutes))
		}
		if a.StandHours > 0 {
			fmt.Fprintf(&buf, "- Stand hours: %d\n", a.StandHours)
		}
		if a.DistanceKm > 0 {
			fmt.Fprintf(&buf, "- Distance: %s km\n", formatFloat(a.DistanceKm))
		}
		if a.FlightsClimbed > 0 {
			fmt.Fprintf(&buf, "- Flights climbed: %d\n", a.FlightsClimbed)
		}
	}

	if v := record.Vitals; v != nil {
		buf.WriteString("\n## Vitals\n\n")
		if v.RestingHeartRate > 0 {
			fmt.Fprintf(&buf, "- Resting heart rate: %d bpm\n", v.RestingHeartRate)
		}
		if v.HeartRateAvg > 0 {
			fmt.Fprintf(&buf, "- Average heart rate: %s bpm\n", formatFloat(v.HeartRateAvg))
		}
		if v.HeartRateMax > 0 {
			fmt.Fprintf(&buf, "- Max heart rate: %d bpm\n", v.HeartRateMax)
		}
		if v.HRVMillis > 0 {
			fmt.Fprintf(&buf, "- HRV: %s ms\n", formatFloat(v.HRVMillis))
		}
		if v.RespiratoryRate > 0 {
			fmt.Fprintf(&buf, "- Respiratory rate: %s /min\n", formatFloat(v.RespiratoryRate))
		}
		if v.BloodOxygen > 0 {
			fmt.Fprintf(&buf, "- Blood oxygen: %s%%\n", formatFloat(v.BloodOxygen))
		}
	}

	if b := record.Body; b != nil {
		buf.WriteString("\n## Body\n\n")
		if b.WeightKg > 0 {
			fmt.Fprintf(&buf, "- Weight: %s kg\n", formatFloat(b.WeightKg))
		}
		if b.BodyFatPercent > 0 {
			fmt.Fprintf(&buf, "- Body fat: %s%%\n", formatFloat(b.BodyFatPercent))
		}
		if b.LeanMassKg > 0 {
			fmt.Fprintf(&buf, "- Lean mass: %s kg\n", formatFloat(b.LeanMassKg))
		}
		if b.BMI > 0 {
			fmt.Fprintf(&buf, "- BMI: %s\n", formatFloat(b.BMI))
		}
	}

	if n := record.Nutrition; n != nil {
		buf.WriteString("\n## Nutrition\n\n")
		if n.Calories > 0 {
			fmt.Fprintf(&buf, "- Calories: %s kcal\n", formatFloat(n.Calories))
		}
		if n.ProteinGrams > 0 {
			fmt.Fprintf(&buf, "- Protein: %s g\n", formatFloat(n.ProteinGrams))
		}
		if n.CarbsGrams > 0 {
			fmt.Fprintf(&buf, "- Carbs: %s g\n", formatFloat(n.CarbsGrams))
		}
		if n.FatGrams > 0 {
			fmt.Fprintf(&buf, "- Fat: %s g\n", formatFloat(n.FatGrams))
		}
		if n.WaterLiters > 0 {
			fmt.Fprintf(&buf, "- Water: %s L\n", formatFloat(n.WaterLiters))
		}
	}

	if m := record.Mindfulness; m != nil {
		buf.WriteString("\n## Mindfulness\n\n")
		fmt.Fprintf(&buf, "- Mindful minutes: %d\n", m.MindfulMinutes)
		if m.Sessions > 0 {
			fmt.Fprintf(&buf, "- Sessions: %d\n", m.Sessions)
		}
	}

	if mo := record.Mobility; mo != nil {
		buf.WriteString("\n## Mobility\n\n")
		if mo.WalkingSpeedKmh > 0 {
			fmt.Fprintf(&buf, "- Walking speed: %s km/h\n", formatFloat(mo.WalkingSpeedKmh))
		}
		if mo.StepLengthCm > 0 {
			fmt.Fprintf(&buf, "- Step length: %s cm\n", formatFloat(mo.StepLengthCm))
		}
		if mo.DoubleSupportPercent > 0 {
			fmt.Fprintf(&buf, "- Double support: %s%%\n", formatFloat(mo.DoubleSupportPercent))
		}
		if mo.WalkingAsymmetryPercent > 0 {
			fmt.Fprintf(&buf, "- Walking asymmetry: %s%%\n", formatFloat(mo.WalkingAsymmetryPercent))
		}
	}

	if len(record.Workouts) > 0 {
		buf.WriteString("\n## Workouts\n\n")
		for _, w := range record.Workouts {
			fmt.Fprintf(&buf, "- %s at %s: %s", w.Type, w.Start.Format("15:04"), formatDuration(w.DurationMinutes))
			if w.DistanceKm > 0 {
				fmt.Fprintf(&buf, ", %s km", formatFloat(w.DistanceKm))
			}
			if w.EnergyKcal > 0 {
				fmt.Fprintf(&buf, ", %s kcal", formatFloat(w.EnergyKcal))
			}
			if w.AvgHeartRate > 0 {
				fmt.Fprintf(&buf, ", avg %d bpm", w.AvgHeartRate)
			}
			buf.WriteString("\n")
		}
	}

	return buf.Bytes(), nil
}
