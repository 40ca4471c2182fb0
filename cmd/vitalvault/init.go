package main

import (
	"github.com/spf13/cobra"

	"github.com/vitalvault/vitalvault/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write an example config file",
	Long: `Init writes a commented example configuration. Copy it to
vitalvault.json (or $HOME/.vitalvault/vitalvault.json) and edit the
vault path to get started.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "vitalvault.example.json"
		if len(args) > 0 {
			path = args[0]
		}

		if err := config.SaveExample(path); err != nil {
			return err
		}

		if jsonOutput {
			printJSON(map[string]interface{}{"success": true, "path": path})
			return nil
		}
		printSuccess("Wrote %s", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
