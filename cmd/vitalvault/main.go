package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vitalvault/vitalvault/internal/client"
	"github.com/vitalvault/vitalvault/internal/config"
	"github.com/vitalvault/vitalvault/internal/events"
)

var (
	cfgFile    string
	logLevel   string
	jsonOutput bool

	cfg       *config.Config
	logger    *events.Logger
	appClient *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "vitalvault",
	Short: "Export daily health data from a paired device into your vault",
	Long: `VitalVault pulls each day's health data from a paired device and
writes one note per day into a local folder or S3 bucket.

Exports run manually, on a stored schedule, or from a background
daemon that also backfills days missed while the machine was off.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Commands that must work before any configuration exists.
		switch cmd.Name() {
		case "version", "help", "completion", "init":
			return nil
		}

		var err error
		cfg, err = config.NewLoader(cfgFile).Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// Flags win over the config file.
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if f := cmd.Flags().Lookup("vault"); f != nil && f.Changed {
			cfg.Vault.Backend = config.VaultBackendLocal
			cfg.Vault.Path = f.Value.String()
		}
		if f := cmd.Flags().Lookup("format"); f != nil && f.Changed {
			cfg.Export.Format = f.Value.String()
		}
		if f := cmd.Flags().Lookup("server"); f != nil && f.Changed {
			cfg.API.BaseURL = f.Value.String()
		}

		logger, err = events.NewLogger(&cfg.Log)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		events.SetDefault(logger)

		if err := cfg.EnsureDirectories(); err != nil {
			return err
		}

		appClient, err = client.New(cfg, logger)
		if err != nil {
			return fmt.Errorf("initialize client: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appClient != nil {
			_ = appClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"Config file path (default searches ., $HOME/.vitalvault)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Emit machine-readable JSON instead of text")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("Error: %v", err)
		os.Exit(1)
	}
}
