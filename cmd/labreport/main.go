package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "labreport",
		Short:         "Laboratory report service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yml (default: search ., ./config, /app/config)")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(generateCmd(&configPath))
	rootCmd.AddCommand(nextIDCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))

	return rootCmd
}
