package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nanogate/nanogate/internal/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config.yaml, agents.yaml, and the workspace layout",
	RunE:  runOnboard,
}

func init() {
	rootCmd.AddCommand(onboardCmd)
}

func runOnboard(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("config already exists at %s\n", path)
	} else {
		if err := config.Save(config.DefaultConfig(), path); err != nil {
			return fmt.Errorf("creating config: %w", err)
		}
		fmt.Printf("created config at %s\n", path)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	workspace, err := cfg.ResolveWorkspace()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(workspace, 0755); err != nil {
		return fmt.Errorf("creating workspace: %w", err)
	}
	fmt.Printf("workspace at %s\n", workspace)

	for _, dir := range []string{".sessions", ".routing", ".scheduler", ".queue", ".memory", ".souls", ".channels"} {
		if err := os.MkdirAll(filepath.Join(workspace, dir), 0755); err != nil {
			return err
		}
	}

	agentsPath := filepath.Join(workspace, cfg.AgentsFile)
	if _, err := os.Stat(agentsPath); os.IsNotExist(err) {
		defaultAgents := "agents:\n  - id: default\n    description: General-purpose assistant\n    is_default: true\n"
		if err := os.WriteFile(agentsPath, []byte(defaultAgents), 0644); err != nil {
			return err
		}
		fmt.Printf("created %s\n", agentsPath)
	}

	soulPath := filepath.Join(workspace, ".souls", "default.md")
	if _, err := os.Stat(soulPath); os.IsNotExist(err) {
		soul := "---\nname: default\n---\nA helpful, concise AI assistant.\n"
		if err := os.WriteFile(soulPath, []byte(soul), 0644); err != nil {
			return err
		}
		fmt.Println("created .souls/default.md")
	}

	fmt.Println("\nnanogate is ready.")
	fmt.Printf("  set %s (or backend.api_key in config.yaml)\n", cfg.Backend.APIKeyEnv)
	fmt.Println("  chat: nanogate agent -m \"hello\"")
	fmt.Println("  serve: nanogate gateway")

	return nil
}
