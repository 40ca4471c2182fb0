package render

import (
	"encoding/json"
	"fmt"

	"github.com/vitalvault/vitalvault/internal/models"
)

// JSONRenderer writes the record as indented JSON, one file per day.
type JSONRenderer struct{}

// Extension returns ".json".
func (r *JSONRenderer) Extension() string { return ".json" }

// Render serializes the record as JSON.
func (r *JSONRenderer) Render(record *models.HealthRecord) ([]byte, error) {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return append(data, '\n'), nil
}
