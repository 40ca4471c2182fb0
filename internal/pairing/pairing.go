// Package pairing persists the credential material produced by the
// device pairing handshake: the bearer token, the device identity, and
// the payload-key parameters when the device encrypts its responses.
package pairing

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vitalvault/vitalvault/internal/config"
	"github.com/vitalvault/vitalvault/internal/crypto"
	"github.com/vitalvault/vitalvault/internal/events"
	"github.com/vitalvault/vitalvault/internal/models"
)

// EnvToken overrides the stored pairing token for headless deployments.
const EnvToken = "VITALVAULT_API_TOKEN"

// Credentials is the persisted pairing state.
type Credentials struct {
	ServerURL  string                 `json:"server_url,omitempty"`
	DeviceName string                 `json:"device_name,omitempty"`
	Token      string                 `json:"token"`
	PairedAt   time.Time              `json:"paired_at,omitempty"`
	KeyInfo    *crypto.PayloadKeyInfo `json:"key_info,omitempty"`
}

// Encrypted reports whether the device advertised payload encryption.
func (c *Credentials) Encrypted() bool {
	return c.KeyInfo != nil && c.KeyInfo.Salt != ""
}

// Store persists pairing credentials as a file readable only by the
// owner.
type Store struct {
	path   string
	logger *events.Logger
	mu     sync.Mutex
}

// NewStore creates a pairing store writing to path.
func NewStore(path string, logger *events.Logger) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create pairing directory: %w", err)
	}

	return &Store{
		path:   path,
		logger: logger.WithField("component", "pairing_store"),
	}, nil
}

// Load reads the stored credentials. An absent file means the device
// was never paired and surfaces as models.ErrNotPaired.
func (s *Store) Load() (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, models.ErrNotPaired
	}
	if err != nil {
		return nil, fmt.Errorf("read pairing file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse pairing file: %w", err)
	}

	if creds.Token == "" {
		return nil, models.ErrNotPaired
	}

	return &creds, nil
}

// Save atomically persists the credentials with owner-only permissions.
func (s *Store) Save(creds *Credentials) error {
	if creds == nil || creds.Token == "" {
		return fmt.Errorf("pairing credentials without token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pairing credentials: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.tmp.%d", s.path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write pairing file: %w", err)
	}

	if f, err := os.Open(tmpPath); err == nil {
		_ = f.Sync()
		_ = f.Close()
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename pairing file: %w", err)
	}

	s.logger.WithField("device", creds.DeviceName).Info("Pairing credentials saved")
	return nil
}

// Clear removes the stored credentials. Clearing an unpaired store is
// not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove pairing file: %w", err)
	}
	return nil
}

// Resolve returns the effective credentials. Precedence for the token is
// the VITALVAULT_API_TOKEN environment variable, then the configured
// override, then the stored pairing file. A token override works without
// a pairing file so headless deployments never need one.
func Resolve(cfg *config.PairingConfig, store *Store) (*Credentials, error) {
	override := os.Getenv(EnvToken)
	if override == "" {
		override = cfg.Token
	}

	creds, err := store.Load()
	if err != nil {
		if override == "" {
			return nil, err
		}
		return &Credentials{Token: override}, nil
	}

	if override != "" {
		creds.Token = override
	}
	return creds, nil
}
