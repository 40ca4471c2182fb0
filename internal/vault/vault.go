// Package vault writes exported day files into the destination vault.
//
// A Vault combines two concerns: the access bracket that guards an
// export run (Start before the first write, Stop exactly once when the
// run ends on any path) and the file operations themselves. Paths given
// to Store methods are relative to the export folder inside the vault.
package vault

import (
	"fmt"

	"github.com/vitalvault/vitalvault/internal/config"
	"github.com/vitalvault/vitalvault/internal/events"
)

// Access guards the vault for the duration of an export run.
type Access interface {
	// HasAccess reports whether a vault is configured and reachable.
	HasAccess() bool

	// Refresh re-validates the configured vault.
	Refresh() error

	// Start opens the access bracket. It fails with
	// models.ErrNoVaultSelected when no vault is configured and with
	// models.ErrVaultAccess when the vault cannot be opened for writing.
	Start() error

	// Stop closes the access bracket. Every successful Start must be
	// balanced by exactly one Stop.
	Stop()
}

// Store performs file operations inside the vault.
type Store interface {
	// Write saves data to a path atomically.
	Write(path string, data []byte) error

	// Read retrieves file contents.
	Read(path string) ([]byte, error)

	// Exists checks if a file exists.
	Exists(path string) (bool, error)

	// EnsureDir creates a directory if it doesn't exist.
	EnsureDir(path string) error
}

// Vault is the full destination capability used by the export engine.
type Vault interface {
	Access
	Store
}

// New creates the vault selected by the config backend.
func New(cfg *config.VaultConfig, logger *events.Logger) (Vault, error) {
	switch cfg.Backend {
	case config.VaultBackendLocal:
		return NewLocal(cfg, logger)
	case config.VaultBackendS3:
		return NewS3(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown vault backend: %q", cfg.Backend)
	}
}
