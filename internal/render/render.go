// Package render turns one day's health record into file bytes. Renderers
// are pure: same record in, same bytes out, no I/O.
package render

import (
	"fmt"

	"github.com/vitalvault/vitalvault/internal/config"
	"github.com/vitalvault/vitalvault/internal/models"
)

// Renderer serializes one day's record.
type Renderer interface {
	// Render returns the file content for the record.
	Render(record *models.HealthRecord) ([]byte, error)

	// Extension returns the file extension including the dot.
	Extension() string
}

// New returns the renderer for a config format name.
func New(format string) (Renderer, error) {
	switch format {
	case config.FormatMarkdown:
		return &MarkdownRenderer{}, nil
	case config.FormatJSON:
		return &JSONRenderer{}, nil
	case config.FormatCSV:
		return &CSVRenderer{}, nil
	case config.FormatBases:
		return &BasesRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown export format: %s", format)
	}
}

// Filename returns the vault-relative file name for a record rendered by r.
func Filename(r Renderer, record *models.HealthRecord) string {
	return models.DayLabel(record.Date) + r.Extension()
}

// formatDuration renders minutes as "7h 11m" or "45m".
func formatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// formatFloat trims trailing zeros from a metric value.
func formatFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}
