package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vitalvault/vitalvault/internal/events"
	"github.com/vitalvault/vitalvault/internal/models"
)

// Store persists the schedule across restarts.
type Store struct {
	path   string
	logger *events.Logger
	mu     sync.Mutex
}

// NewStore creates a schedule store writing to path.
func NewStore(path string, logger *events.Logger) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create schedule directory: %w", err)
	}

	return &Store{
		path:   path,
		logger: logger.WithField("component", "schedule_store"),
	}, nil
}

// Load reads the persisted schedule, or the default when none has been
// saved yet.
func (s *Store) Load() (models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return models.DefaultSchedule(), nil
	}
	if err != nil {
		return models.Schedule{}, fmt.Errorf("read schedule: %w", err)
	}

	var sched models.Schedule
	if err := json.Unmarshal(data, &sched); err != nil {
		return models.Schedule{}, fmt.Errorf("parse schedule: %w", err)
	}

	if err := sched.Validate(); err != nil {
		return models.Schedule{}, fmt.Errorf("invalid schedule: %w", err)
	}

	return sched, nil
}

// Save validates and atomically persists the schedule.
func (s *Store) Save(sched models.Schedule) error {
	if err := sched.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(sched, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.tmp.%d", s.path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write schedule: %w", err)
	}

	if f, err := os.Open(tmpPath); err == nil {
		_ = f.Sync()
		_ = f.Close()
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename schedule: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"enabled":   sched.IsEnabled,
		"frequency": string(sched.Frequency),
	}).Debug("Schedule saved")

	return nil
}
