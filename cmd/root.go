package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "nanogate",
	Short: "nanogate — multi-agent gateway, router, scheduler, and delivery queue",
	Long:  "nanogate runs one or more AI agents behind a shared gateway: channel adapters feed it messages, a router assigns them to an agent, a scheduler fires timed jobs, and a delivery queue guarantees at-least-once outbound delivery.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: ~/.nanogate/config.yaml)")
}
