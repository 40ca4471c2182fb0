// Package history persists the export run log. The log keeps the most
// recent models.HistoryLimit runs, newest first; recording beyond the
// cap evicts the oldest entries.
package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/vitalvault/vitalvault/internal/config"
	"github.com/vitalvault/vitalvault/internal/events"
	"github.com/vitalvault/vitalvault/internal/models"
)

// Store manages export history persistence.
type Store interface {
	// Record appends an entry and evicts beyond the retention cap.
	Record(entry *models.HistoryEntry) error

	// List returns all entries, newest first.
	List() ([]*models.HistoryEntry, error)

	// Clear removes all entries.
	Clear() error

	// Close releases resources.
	Close() error
}

// Errors
var (
	ErrHistoryCorrupt = errors.New("history file is corrupt")
)

// CurrentSchemaVersion for migrations.
const CurrentSchemaVersion = 1

// historyFile wraps the entry list with store metadata for the JSON
// backend.
type historyFile struct {
	Entries       []*models.HistoryEntry `json:"entries"`
	SchemaVersion int                    `json:"schema_version"`
	SavedAt       time.Time              `json:"saved_at"`
	Checksum      string                 `json:"checksum,omitempty"`
}

// New creates the store selected by the config backend.
func New(cfg *config.Config, logger *events.Logger) (Store, error) {
	switch cfg.History.Backend {
	case config.HistoryBackendJSON:
		return NewJSONStore(cfg.HistoryPath(), logger)
	case config.HistoryBackendSQLite:
		return NewSQLiteStore(cfg.HistoryPath(), logger)
	default:
		return nil, fmt.Errorf("unknown history backend: %q", cfg.History.Backend)
	}
}
