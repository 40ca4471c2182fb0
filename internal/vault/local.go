package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/vitalvault/vitalvault/internal/config"
	"github.com/vitalvault/vitalvault/internal/events"
	"github.com/vitalvault/vitalvault/internal/models"
)

// LocalVault writes day files into a folder on disk.
type LocalVault struct {
	vaultDir  string // user-selected vault root, empty when unconfigured
	exportDir string // vaultDir/subfolder, where day files land
	logger    *events.Logger

	// Security settings
	maxPathLength int
	maxFileSize   int64

	mu      sync.Mutex
	started bool
}

// NewLocal creates a local vault. An empty path is not an error here;
// the engine discovers it through HasAccess and Start.
func NewLocal(cfg *config.VaultConfig, logger *events.Logger) (*LocalVault, error) {
	v := &LocalVault{
		logger:        logger.WithField("component", "local_vault"),
		maxPathLength: 260, // Windows compatibility
		maxFileSize:   cfg.MaxFileSize,
	}
	if v.maxFileSize <= 0 {
		v.maxFileSize = 10 * 1024 * 1024
	}

	if cfg.Path != "" {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("resolve vault path: %w", err)
		}
		v.vaultDir = absPath
		v.exportDir = filepath.Join(absPath, filepath.FromSlash(cfg.Subfolder))
	}

	return v, nil
}

// HasAccess reports whether a vault folder is configured and present.
func (v *LocalVault) HasAccess() bool {
	if v.vaultDir == "" {
		return false
	}
	stat, err := os.Stat(v.vaultDir)
	return err == nil && stat.IsDir()
}

// Refresh re-validates the vault folder.
func (v *LocalVault) Refresh() error {
	if v.vaultDir == "" {
		return models.ErrNoVaultSelected
	}

	stat, err := os.Stat(v.vaultDir)
	if err != nil {
		return fmt.Errorf("vault folder %s: %w", v.vaultDir, models.ErrVaultAccess)
	}
	if !stat.IsDir() {
		return fmt.Errorf("vault path %s is not a directory: %w", v.vaultDir, models.ErrVaultAccess)
	}

	return nil
}

// Start opens the access bracket: the vault folder must exist, the
// export subfolder is created, and writability is probed so permission
// problems surface before any day is attempted.
func (v *LocalVault) Start() error {
	if err := v.Refresh(); err != nil {
		return err
	}

	if err := os.MkdirAll(v.exportDir, 0755); err != nil {
		return fmt.Errorf("create export folder: %v: %w", err, models.ErrVaultAccess)
	}

	// Probe writability with a throwaway file
	probe := filepath.Join(v.exportDir, fmt.Sprintf(".vitalvault-probe.%d", time.Now().UnixNano()))
	if err := os.WriteFile(probe, nil, 0600); err != nil {
		return fmt.Errorf("vault not writable: %v: %w", err, models.ErrVaultAccess)
	}
	_ = os.Remove(probe)

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.started {
		v.logger.Warn("Vault access started twice without stop")
	}
	v.started = true

	v.logger.WithField("path", v.exportDir).Debug("Vault access started")
	return nil
}

// Stop closes the access bracket.
func (v *LocalVault) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.started {
		v.logger.Warn("Vault access stopped without start")
		return
	}
	v.started = false

	v.logger.Debug("Vault access stopped")
}

// Write saves data to a file atomically.
func (v *LocalVault) Write(path string, data []byte) error {
	safePath, err := v.sanitizePath(path)
	if err != nil {
		return fmt.Errorf("sanitize path: %w", err)
	}

	v.logger.WithFields(map[string]interface{}{
		"path": path,
		"size": len(data),
	}).Debug("Writing file")

	// Check size limit
	if int64(len(data)) > v.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d)", len(data), v.maxFileSize)
	}

	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(safePath), 0755); err != nil {
		return v.accessErr("create parent directory", err)
	}

	// Write atomically using temp file
	tempPath := fmt.Sprintf("%s.tmp.%d", safePath, time.Now().UnixNano())

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return v.accessErr("write temp file", err)
	}

	// Sync to disk
	if file, err := os.Open(tempPath); err == nil {
		_ = file.Sync()
		file.Close()
	}

	// Rename atomically
	if err := os.Rename(tempPath, safePath); err != nil {
		_ = os.Remove(tempPath)
		return v.accessErr("rename temp file", err)
	}

	return nil
}

// Read retrieves file contents.
func (v *LocalVault) Read(path string) ([]byte, error) {
	safePath, err := v.sanitizePath(path)
	if err != nil {
		return nil, fmt.Errorf("sanitize path: %w", err)
	}

	data, err := os.ReadFile(safePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// Exists checks if a file exists.
func (v *LocalVault) Exists(path string) (bool, error) {
	safePath, err := v.sanitizePath(path)
	if err != nil {
		return false, fmt.Errorf("sanitize path: %w", err)
	}

	_, err = os.Stat(safePath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// EnsureDir creates a directory if it doesn't exist.
func (v *LocalVault) EnsureDir(path string) error {
	safePath, err := v.sanitizePath(path)
	if err != nil {
		return fmt.Errorf("sanitize path: %w", err)
	}

	return os.MkdirAll(safePath, 0755)
}

// accessErr wraps filesystem failures, tagging permission problems so
// the engine can classify them as access denial.
func (v *LocalVault) accessErr(op string, err error) error {
	if os.IsPermission(err) {
		return fmt.Errorf("%s: %v: %w", op, err, models.ErrVaultAccess)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// sanitizePath validates and normalizes a file path relative to the
// export folder. Filenames are NFC-normalized so the same day file is
// matched regardless of how the platform decomposed the name.
func (v *LocalVault) sanitizePath(path string) (string, error) {
	if v.exportDir == "" {
		return "", models.ErrNoVaultSelected
	}

	// Check for null bytes
	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("invalid path: contains null bytes")
	}

	// Normalize unicode and path separators
	normalized := filepath.FromSlash(norm.NFC.String(path))

	// Clean path (remove .., ., etc)
	cleaned := filepath.Clean(normalized)

	// Check for directory traversal
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path: escapes vault")
	}

	// Remove leading separators
	cleaned = strings.TrimPrefix(cleaned, string(filepath.Separator))

	// Build full path
	fullPath := filepath.Join(v.exportDir, cleaned)

	// Verify it's under the export folder
	if !strings.HasPrefix(fullPath, v.exportDir+string(filepath.Separator)) && fullPath != v.exportDir {
		return "", fmt.Errorf("path escapes vault folder")
	}

	// Check path length
	if len(fullPath) > v.maxPathLength {
		return "", fmt.Errorf("path too long: %d characters (max: %d)", len(fullPath), v.maxPathLength)
	}

	// Platform-specific checks
	if err := validatePlatformPath(cleaned); err != nil {
		return "", err
	}

	return fullPath, nil
}

// validatePlatformPath checks platform-specific path restrictions.
func validatePlatformPath(path string) error {
	if runtime.GOOS == "windows" {
		// Windows reserved names
		reserved := []string{"CON", "PRN", "AUX", "NUL", "COM1", "COM2", "COM3", "COM4",
			"COM5", "COM6", "COM7", "COM8", "COM9", "LPT1", "LPT2", "LPT3",
			"LPT4", "LPT5", "LPT6", "LPT7", "LPT8", "LPT9"}

		parts := strings.Split(path, string(filepath.Separator))
		for _, part := range parts {
			baseName := strings.TrimSuffix(part, filepath.Ext(part))
			upperName := strings.ToUpper(baseName)

			for _, name := range reserved {
				if upperName == name {
					return fmt.Errorf("invalid path: contains reserved name %q", part)
				}
			}

			// Check for invalid characters
			for _, char := range `<>:"|?*` {
				if strings.ContainsRune(part, char) {
					return fmt.Errorf("invalid path: contains character %q", char)
				}
			}
		}
	}

	return nil
}
