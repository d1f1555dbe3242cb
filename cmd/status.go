package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nanogate/nanogate/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the resolved configuration and queue/scheduler state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	workspace, err := cfg.ResolveWorkspace()
	if err != nil {
		return err
	}

	fmt.Println("nanogate status")
	fmt.Println()
	fmt.Printf("Config:    %s\n", path)
	fmt.Printf("Workspace: %s\n", workspace)
	fmt.Printf("Model:     %s (%s)\n", cfg.Backend.Model, cfg.Backend.BaseURL)
	fmt.Printf("Node:      %s\n", cfg.Gateway.NodeID)

	fmt.Println("\nChannels:")
	printChannelStatus("telegram", cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "")
	printChannelStatus("feishu", cfg.Channels.Feishu.Enabled && cfg.Channels.Feishu.AppID != "")
	printChannelStatus("slack", cfg.Channels.Slack.Enabled && cfg.Channels.Slack.BotToken != "")
	printChannelStatus("whatsapp", cfg.Channels.WhatsApp.Enabled && cfg.Channels.WhatsApp.BridgeURL != "")
	printChannelStatus("file", cfg.Channels.File.Enabled)

	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.Queue.Close()

	fmt.Println("\nAgents:")
	for _, id := range a.Registry.AgentIDs() {
		marker := " "
		if id == a.Registry.DefaultID() {
			marker = "*"
		}
		fmt.Printf("  %s %s\n", marker, id)
	}

	stats, err := a.Queue.GetStats(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Println("\nQueue:")
	fmt.Printf("  pending=%d processing=%d delivered=%d failed=%d dead_letter=%d\n",
		stats.Pending, stats.Processing, stats.Delivered, stats.Failed, stats.DeadLetter)

	fmt.Printf("\nScheduled jobs: %d\n", len(a.Scheduler.GetAll()))
	fmt.Printf("Bindings:       %d\n", len(a.Router.List()))

	return nil
}

func printChannelStatus(name string, enabled bool) {
	mark := "-"
	if enabled {
		mark = "yes"
	}
	fmt.Printf("  %-10s %s\n", name, mark)
}
