package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds all application configuration.
type Config struct {
	// API is the paired device's health data endpoint.
	API APIConfig `json:"api" mapstructure:"api"`

	// Pairing holds device pairing credentials.
	Pairing PairingConfig `json:"pairing" mapstructure:"pairing"`

	// Vault describes the export destination.
	Vault VaultConfig `json:"vault" mapstructure:"vault"`

	// Export controls output format.
	Export ExportConfig `json:"export" mapstructure:"export"`

	// History selects the run-history backend.
	History HistoryConfig `json:"history" mapstructure:"history"`

	// Link configures the device push channel.
	Link LinkConfig `json:"link" mapstructure:"link"`

	// Daemon configures unattended execution.
	Daemon DaemonConfig `json:"daemon" mapstructure:"daemon"`

	// Storage holds local state paths.
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	// Logging
	Log LogConfig `json:"log" mapstructure:"log"`
}

// APIConfig for communication with the device's health endpoint.
type APIConfig struct {
	BaseURL    string        `json:"base_url" mapstructure:"base_url"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
	UserAgent  string        `json:"user_agent" mapstructure:"user_agent"`
}

// PairingConfig locates device pairing credentials.
type PairingConfig struct {
	// File is the pairing credentials file written by `vitalvault pair`.
	File string `json:"file" mapstructure:"file"`

	// Token overrides the stored token (useful for headless deployments).
	Token string `json:"token,omitempty" mapstructure:"token"`

	// Passphrase unlocks end-to-end encrypted payloads when the device
	// app has payload encryption enabled.
	Passphrase string `json:"passphrase,omitempty" mapstructure:"passphrase"`
}

// VaultConfig describes the destination vault.
type VaultConfig struct {
	// Backend selects the vault implementation: "local" or "s3".
	Backend string `json:"backend" mapstructure:"backend"`

	// Path is the vault root for the local backend.
	Path string `json:"path" mapstructure:"path"`

	// Subfolder inside the vault where day files are written.
	Subfolder string `json:"subfolder" mapstructure:"subfolder"`

	// S3Bucket and S3Prefix apply to the s3 backend.
	S3Bucket string `json:"s3_bucket,omitempty" mapstructure:"s3_bucket"`
	S3Prefix string `json:"s3_prefix,omitempty" mapstructure:"s3_prefix"`

	// MaxFileSize caps a single exported file in bytes.
	MaxFileSize int64 `json:"max_file_size" mapstructure:"max_file_size"`
}

// ExportConfig for export output behavior.
type ExportConfig struct {
	// Format is one of "markdown", "json", "csv", "bases".
	Format string `json:"format" mapstructure:"format"`
}

// HistoryConfig selects run-history persistence.
type HistoryConfig struct {
	// Backend is "json" or "sqlite".
	Backend string `json:"backend" mapstructure:"backend"`
}

// LinkConfig for the device push channel.
type LinkConfig struct {
	// Enabled turns on the WebSocket listener in daemon mode.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// URL of the push endpoint. Empty derives it from api.base_url.
	URL string `json:"url,omitempty" mapstructure:"url"`

	// ReconnectDelay between connection attempts.
	ReconnectDelay time.Duration `json:"reconnect_delay" mapstructure:"reconnect_delay"`
}

// DaemonConfig for unattended scheduled execution.
type DaemonConfig struct {
	// RunBudget bounds the wall-clock time of one unattended run. A run
	// that exceeds it is reported as expired, not silently abandoned.
	RunBudget time.Duration `json:"run_budget" mapstructure:"run_budget"`

	// CronOverride replaces the frequency/time schedule with a 6-field
	// cron expression (seconds first). Empty uses the stored schedule.
	CronOverride string `json:"cron_override,omitempty" mapstructure:"cron_override"`

	// CatchUpSweep enables the hourly sweep that backfills missed days
	// even when no timer or push event fires.
	CatchUpSweep bool `json:"catch_up_sweep" mapstructure:"catch_up_sweep"`
}

// StorageConfig for local file paths.
type StorageConfig struct {
	DataDir  string `json:"data_dir" mapstructure:"data_dir"`   // Base directory for all data
	StateDir string `json:"state_dir" mapstructure:"state_dir"` // History, schedule, pairing state
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level      string `json:"level" mapstructure:"level"`             // debug, info, warn, error
	Format     string `json:"format" mapstructure:"format"`           // text, json
	File       string `json:"file" mapstructure:"file"`               // Log file path (empty = stdout)
	MaxSize    int    `json:"max_size" mapstructure:"max_size"`       // Max log file size in MB
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"` // Max number of old logs
	MaxAge     int    `json:"max_age" mapstructure:"max_age"`         // Max age in days
	Compress   bool   `json:"compress" mapstructure:"compress"`       // Gzip rotated logs
	Color      bool   `json:"color" mapstructure:"color"`             // Enable colored output
	Timestamp  bool   `json:"timestamp" mapstructure:"timestamp"`     // Include timestamps
}

// Vault backends.
const (
	VaultBackendLocal = "local"
	VaultBackendS3    = "s3"
)

// History backends.
const (
	HistoryBackendJSON   = "json"
	HistoryBackendSQLite = "sqlite"
)

// Export formats.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatBases    = "bases"
)

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := defaultDataDir()

	return &Config{
		API: APIConfig{
			BaseURL:    "http://localhost:4820",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			UserAgent:  "vitalvault/1.0",
		},
		Pairing: PairingConfig{
			File: filepath.Join(dataDir, "state", "pairing.json"),
		},
		Vault: VaultConfig{
			Backend:     VaultBackendLocal,
			Subfolder:   "Health",
			MaxFileSize: 10 * 1024 * 1024, // 10MB
		},
		Export: ExportConfig{
			Format: FormatMarkdown,
		},
		History: HistoryConfig{
			Backend: HistoryBackendJSON,
		},
		Link: LinkConfig{
			Enabled:        true,
			ReconnectDelay: 30 * time.Second,
		},
		Daemon: DaemonConfig{
			RunBudget:    5 * time.Minute,
			CatchUpSweep: true,
		},
		Storage: StorageConfig{
			DataDir:  dataDir,
			StateDir: filepath.Join(dataDir, "state"),
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			File:       "",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
			Color:      true,
			Timestamp:  true,
		},
	}
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".vitalvault")
	}
	return ".vitalvault"
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}

	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}

	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries cannot be negative")
	}

	switch c.Vault.Backend {
	case VaultBackendLocal:
		// Path may arrive later via --vault; checked at run start.
	case VaultBackendS3:
		if c.Vault.S3Bucket == "" {
			return errors.New("vault.s3_bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("invalid vault backend: %s", c.Vault.Backend)
	}

	if c.Vault.MaxFileSize <= 0 {
		return errors.New("vault.max_file_size must be positive")
	}

	switch c.Export.Format {
	case FormatMarkdown, FormatJSON, FormatCSV, FormatBases:
	default:
		return fmt.Errorf("invalid export format: %s", c.Export.Format)
	}

	switch c.History.Backend {
	case HistoryBackendJSON, HistoryBackendSQLite:
	default:
		return fmt.Errorf("invalid history backend: %s", c.History.Backend)
	}

	if c.Daemon.RunBudget <= 0 {
		return errors.New("daemon.run_budget must be positive")
	}

	if c.Daemon.CronOverride != "" {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(c.Daemon.CronOverride); err != nil {
			return fmt.Errorf("invalid daemon.cron_override: %w", err)
		}
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDir,
		c.Storage.StateDir,
	}

	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// HistoryPath returns the history store location for the active backend.
func (c *Config) HistoryPath() string {
	if c.History.Backend == HistoryBackendSQLite {
		return filepath.Join(c.Storage.StateDir, "history.db")
	}
	return filepath.Join(c.Storage.StateDir, "history.json")
}

// SchedulePath returns the persisted schedule location.
func (c *Config) SchedulePath() string {
	return filepath.Join(c.Storage.StateDir, "schedule.json")
}
