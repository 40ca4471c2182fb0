package history

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vitalvault/vitalvault/internal/events"
	"github.com/vitalvault/vitalvault/internal/models"
)

// JSONStore implements file-based history storage.
type JSONStore struct {
	path   string
	logger *events.Logger

	mu sync.Mutex
}

// NewJSONStore creates a JSON-based history store.
func NewJSONStore(path string, logger *events.Logger) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	return &JSONStore{
		path:   path,
		logger: logger.WithField("component", "json_history_store"),
	}, nil
}

// Record appends an entry newest first and trims to the retention cap.
func (s *JSONStore) Record(entry *models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	entries = append([]*models.HistoryEntry{entry}, entries...)
	if len(entries) > models.HistoryLimit {
		entries = entries[:models.HistoryLimit]
	}

	s.logger.WithFields(map[string]interface{}{
		"id":      entry.ID,
		"source":  entry.Source,
		"entries": len(entries),
	}).Debug("Recording history entry")

	return s.save(entries)
}

// List returns all entries, newest first.
func (s *JSONStore) List() ([]*models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load()
}

// Clear removes all entries.
func (s *JSONStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("Clearing export history")

	_ = os.Remove(s.path)
	_ = os.Remove(s.path + ".backup")

	return nil
}

// Close releases resources.
func (s *JSONStore) Close() error {
	return nil
}

// Helper methods

func (s *JSONStore) load() ([]*models.HistoryEntry, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}

	var wrapper historyFile
	if err := json.Unmarshal(data, &wrapper); err != nil {
		// Try backup file
		if entries, err := s.loadBackup(); err == nil {
			s.logger.Warn("Loaded history from backup due to corruption")
			return entries, nil
		}
		return nil, ErrHistoryCorrupt
	}

	// Verify checksum if present
	if wrapper.Checksum != "" {
		verification := historyFile{
			Entries:       wrapper.Entries,
			SchemaVersion: wrapper.SchemaVersion,
			SavedAt:       wrapper.SavedAt,
		}
		verifyData, _ := json.Marshal(verification)
		hash := sha256.Sum256(verifyData)
		calculated := hex.EncodeToString(hash[:])

		if calculated != wrapper.Checksum {
			s.logger.WithFields(map[string]interface{}{
				"expected": wrapper.Checksum,
				"actual":   calculated,
			}).Error("History checksum mismatch")

			if entries, err := s.loadBackup(); err == nil {
				return entries, nil
			}
			return nil, ErrHistoryCorrupt
		}
	}

	if wrapper.SchemaVersion != CurrentSchemaVersion {
		s.logger.WithField("version", wrapper.SchemaVersion).Warn("History schema version mismatch")
	}

	return wrapper.Entries, nil
}

func (s *JSONStore) save(entries []*models.HistoryEntry) error {
	wrapper := historyFile{
		Entries:       entries,
		SchemaVersion: CurrentSchemaVersion,
		SavedAt:       time.Now(),
	}

	// Calculate checksum (without checksum field)
	checksumData, err := json.Marshal(wrapper)
	if err != nil {
		return fmt.Errorf("marshal history for checksum: %w", err)
	}
	hash := sha256.Sum256(checksumData)
	wrapper.Checksum = hex.EncodeToString(hash[:])

	jsonData, err := json.MarshalIndent(wrapper, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	// Create backup of existing file
	if _, err := os.Stat(s.path); err == nil {
		if err := copyFile(s.path, s.path+".backup"); err != nil {
			s.logger.WithError(err).Warn("Failed to create backup")
		}
	}

	// Write atomically
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, jsonData, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	// Sync to disk
	if file, err := os.Open(tmpPath); err == nil {
		_ = file.Sync()
		file.Close()
	}

	// Rename atomically
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename history file: %w", err)
	}

	return nil
}

func (s *JSONStore) loadBackup() ([]*models.HistoryEntry, error) {
	data, err := os.ReadFile(s.path + ".backup")
	if err != nil {
		return nil, err
	}

	var wrapper historyFile
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, err
	}

	return wrapper.Entries, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
