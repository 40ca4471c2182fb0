package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a config loader.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		envPrefix:  "VITALVAULT",
	}
}

// Load reads configuration from file and environment. Precedence is
// environment over file over defaults.
func (l *Loader) Load() (*Config, error) {
	// A .env file in the working directory feeds the environment before
	// viper reads it. Absence is not an error.
	_ = godotenv.Load()

	v := viper.New()
	l.setDefaults(v)

	v.SetEnvPrefix(l.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.configPath != "" {
		v.SetConfigFile(l.configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", l.configPath, err)
		}
	} else {
		v.SetConfigName("vitalvault")
		for _, dir := range l.defaultDirs() {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("load config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Dependent paths follow data_dir unless set explicitly.
	if cfg.Storage.StateDir == "" {
		cfg.Storage.StateDir = filepath.Join(cfg.Storage.DataDir, "state")
	}
	if cfg.Pairing.File == "" {
		cfg.Pairing.File = filepath.Join(cfg.Storage.StateDir, "pairing.json")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// defaultDirs returns directories searched for vitalvault.{json,yaml,toml}.
func (l *Loader) defaultDirs() []string {
	dirs := []string{"."}

	if homeDir, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs,
			filepath.Join(homeDir, ".config", "vitalvault"),
			filepath.Join(homeDir, ".vitalvault"),
		)
	}

	return dirs
}

// setDefaults registers every key so environment overrides resolve even
// without a config file.
func (l *Loader) setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.max_retries", d.API.MaxRetries)
	v.SetDefault("api.user_agent", d.API.UserAgent)

	// pairing.file and storage.state_dir default to empty here so a bare
	// data_dir override can carry them along; Load fills them afterwards.
	v.SetDefault("pairing.file", "")
	v.SetDefault("pairing.token", d.Pairing.Token)
	v.SetDefault("pairing.passphrase", d.Pairing.Passphrase)

	v.SetDefault("vault.backend", d.Vault.Backend)
	v.SetDefault("vault.path", d.Vault.Path)
	v.SetDefault("vault.subfolder", d.Vault.Subfolder)
	v.SetDefault("vault.s3_bucket", d.Vault.S3Bucket)
	v.SetDefault("vault.s3_prefix", d.Vault.S3Prefix)
	v.SetDefault("vault.max_file_size", d.Vault.MaxFileSize)

	v.SetDefault("export.format", d.Export.Format)

	v.SetDefault("history.backend", d.History.Backend)

	v.SetDefault("link.enabled", d.Link.Enabled)
	v.SetDefault("link.url", d.Link.URL)
	v.SetDefault("link.reconnect_delay", d.Link.ReconnectDelay)

	v.SetDefault("daemon.run_budget", d.Daemon.RunBudget)
	v.SetDefault("daemon.cron_override", d.Daemon.CronOverride)
	v.SetDefault("daemon.catch_up_sweep", d.Daemon.CatchUpSweep)

	v.SetDefault("storage.data_dir", d.Storage.DataDir)
	v.SetDefault("storage.state_dir", "")

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size", d.Log.MaxSize)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age", d.Log.MaxAge)
	v.SetDefault("log.compress", d.Log.Compress)
	v.SetDefault("log.color", d.Log.Color)
	v.SetDefault("log.timestamp", d.Log.Timestamp)
}

// SaveExample writes an example config file.
func SaveExample(path string) error {
	cfg := DefaultConfig()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}
