package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vitalvault/vitalvault/internal/daemon"
	"github.com/vitalvault/vitalvault/internal/devicelink"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run unattended: scheduled exports, catch-up, device pushes",
	Long: `Daemon keeps exports running without interaction. It fires the stored
schedule, backfills missed days with an hourly catch-up sweep, and
listens for the device announcing fresh data.

Stop it with SIGINT or SIGTERM.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	var pushes <-chan devicelink.Push
	if cfg.Link.Enabled && appClient.Paired() {
		link, err := appClient.NewLink()
		if err != nil {
			return err
		}
		defer link.Close()

		go func() {
			if err := link.Run(ctx); err != nil {
				logger.WithError(err).Error("Device link stopped")
			}
		}()
		pushes = link.Pushes()
	} else if cfg.Link.Enabled {
		logger.Warn("Device link enabled but not paired; running on schedule only")
	}

	d := daemon.New(appClient.Export, appClient.Schedule, &cfg.Daemon, pushes, logger)
	return d.Run(ctx)
}
