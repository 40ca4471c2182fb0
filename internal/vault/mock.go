package vault

import (
	"fmt"
	"sync"

	"github.com/vitalvault/vitalvault/internal/models"
)

// MockVault provides an in-memory vault for testing. Start and Stop
// calls are counted so tests can assert the access bracket is balanced.
type MockVault struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool

	// Behavior controls
	NoVault   bool             // HasAccess false, Start fails with ErrNoVaultSelected
	StartErr  error            // injected Start failure
	WriteErr  error            // injected failure for every write
	WriteErrs map[string]error // injected per-path write failures

	// Call tracking
	StartCalls int
	StopCalls  int
	Written    []string
}

// NewMockVault creates a mock vault.
func NewMockVault() *MockVault {
	return &MockVault{
		files:     make(map[string][]byte),
		dirs:      make(map[string]bool),
		WriteErrs: make(map[string]error),
	}
}

// HasAccess reports the configured state.
func (m *MockVault) HasAccess() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return !m.NoVault
}

// Refresh mirrors Start's validation without opening the bracket.
func (m *MockVault) Refresh() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.NoVault {
		return models.ErrNoVaultSelected
	}
	return m.StartErr
}

// Start opens the access bracket.
func (m *MockVault) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.NoVault {
		return models.ErrNoVaultSelected
	}
	if m.StartErr != nil {
		return m.StartErr
	}

	m.StartCalls++
	return nil
}

// Stop closes the access bracket.
func (m *MockVault) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StopCalls++
}

// Write saves data to a file.
func (m *MockVault) Write(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.WriteErrs[path]; ok {
		return err
	}
	if m.WriteErr != nil {
		return m.WriteErr
	}

	m.files[path] = make([]byte, len(data))
	copy(m.files[path], data)
	m.Written = append(m.Written, path)
	return nil
}

// Read retrieves file contents.
func (m *MockVault) Read(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if data, ok := m.files[path]; ok {
		result := make([]byte, len(data))
		copy(result, data)
		return result, nil
	}

	return nil, fmt.Errorf("file not found: %s", path)
}

// Exists checks if a file exists.
func (m *MockVault) Exists(path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.files[path]
	return exists, nil
}

// EnsureDir creates a directory.
func (m *MockVault) EnsureDir(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dirs[path] = true
	return nil
}

// Helper methods for testing

// FileExists checks if a file exists (helper for tests).
func (m *MockVault) FileExists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.files[path]
	return exists
}

// FileCount returns the number of stored files.
func (m *MockVault) FileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.files)
}

// Clear removes all files and directories.
func (m *MockVault) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files = make(map[string][]byte)
	m.dirs = make(map[string]bool)
	m.Written = nil
}
