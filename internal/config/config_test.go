package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvault/vitalvault/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	assert.NotEmpty(t, cfg.API.BaseURL)
	assert.Positive(t, cfg.API.Timeout)
	assert.NotEmpty(t, cfg.Storage.DataDir)
	assert.Equal(t, config.VaultBackendLocal, cfg.Vault.Backend)
	assert.Equal(t, config.FormatMarkdown, cfg.Export.Format)
	assert.Equal(t, config.HistoryBackendJSON, cfg.History.Backend)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr string
	}{
		{
			name: "valid config",
			modify: func(c *config.Config) {
				// No modifications
			},
			wantErr: "",
		},
		{
			name: "missing base URL",
			modify: func(c *config.Config) {
				c.API.BaseURL = ""
			},
			wantErr: "api.base_url is required",
		},
		{
			name: "invalid log level",
			modify: func(c *config.Config) {
				c.Log.Level = "invalid"
			},
			wantErr: "invalid log level",
		},
		{
			name: "negative timeout",
			modify: func(c *config.Config) {
				c.API.Timeout = -1
			},
			wantErr: "api.timeout must be positive",
		},
		{
			name: "unknown vault backend",
			modify: func(c *config.Config) {
				c.Vault.Backend = "ftp"
			},
			wantErr: "invalid vault backend",
		},
		{
			name: "s3 backend requires bucket",
			modify: func(c *config.Config) {
				c.Vault.Backend = config.VaultBackendS3
				c.Vault.S3Bucket = ""
			},
			wantErr: "vault.s3_bucket is required",
		},
		{
			name: "unknown export format",
			modify: func(c *config.Config) {
				c.Export.Format = "xml"
			},
			wantErr: "invalid export format",
		},
		{
			name: "unknown history backend",
			modify: func(c *config.Config) {
				c.History.Backend = "postgres"
			},
			wantErr: "invalid history backend",
		},
		{
			name: "zero run budget",
			modify: func(c *config.Config) {
				c.Daemon.RunBudget = 0
			},
			wantErr: "daemon.run_budget must be positive",
		},
		{
			name: "malformed cron override",
			modify: func(c *config.Config) {
				c.Daemon.CronOverride = "not a cron line"
			},
			wantErr: "invalid daemon.cron_override",
		},
		{
			name: "valid cron override",
			modify: func(c *config.Config) {
				c.Daemon.CronOverride = "0 30 23 * * *"
			},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoaderEnv(t *testing.T) {
	// Set test environment
	os.Setenv("VITALVAULT_API_BASE_URL", "http://device.local:4820")
	os.Setenv("VITALVAULT_API_TIMEOUT", "45s")
	os.Setenv("VITALVAULT_LOG_LEVEL", "debug")
	os.Setenv("VITALVAULT_EXPORT_FORMAT", "json")
	defer func() {
		os.Unsetenv("VITALVAULT_API_BASE_URL")
		os.Unsetenv("VITALVAULT_API_TIMEOUT")
		os.Unsetenv("VITALVAULT_LOG_LEVEL")
		os.Unsetenv("VITALVAULT_EXPORT_FORMAT")
	}()

	loader := config.NewLoader("")
	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, "http://device.local:4820", cfg.API.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.API.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, config.FormatJSON, cfg.Export.Format)
}

func TestLoaderFile(t *testing.T) {
	// Create temp config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.json")

	configJSON := `{
		"api": {
			"base_url": "http://file.example.com",
			"timeout": "20s"
		},
		"export": {
			"format": "csv"
		},
		"log": {
			"level": "warn",
			"format": "json"
		}
	}`

	err := os.WriteFile(configPath, []byte(configJSON), 0644)
	require.NoError(t, err)

	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, "http://file.example.com", cfg.API.BaseURL)
	assert.Equal(t, 20*time.Second, cfg.API.Timeout)
	assert.Equal(t, config.FormatCSV, cfg.Export.Format)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoaderDataDirFollowers(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.json")

	configJSON := `{"storage": {"data_dir": "/srv/vitalvault"}}`
	require.NoError(t, os.WriteFile(configPath, []byte(configJSON), 0644))

	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, "/srv/vitalvault", cfg.Storage.DataDir)
	assert.Equal(t, filepath.Join("/srv/vitalvault", "state"), cfg.Storage.StateDir)
	assert.Equal(t, filepath.Join("/srv/vitalvault", "state", "pairing.json"), cfg.Pairing.File)
}

func TestConfigEnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Storage.DataDir = filepath.Join(tmpDir, "data")
	cfg.Storage.StateDir = filepath.Join(tmpDir, "data", "state")
	cfg.Log.File = filepath.Join(tmpDir, "logs", "app.log")

	err := cfg.EnsureDirectories()
	require.NoError(t, err)

	// Check directories were created
	assert.DirExists(t, cfg.Storage.DataDir)
	assert.DirExists(t, cfg.Storage.StateDir)
	assert.DirExists(t, filepath.Dir(cfg.Log.File))
}

func TestHistoryPath(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.StateDir = "/tmp/state"

	cfg.History.Backend = config.HistoryBackendJSON
	assert.Equal(t, filepath.Join("/tmp/state", "history.json"), cfg.HistoryPath())

	cfg.History.Backend = config.HistoryBackendSQLite
	assert.Equal(t, filepath.Join("/tmp/state", "history.db"), cfg.HistoryPath())
}

func TestSaveExample(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "vitalvault.json")

	require.NoError(t, config.SaveExample(path))

	// The example must load back cleanly.
	loader := config.NewLoader(path)
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}
