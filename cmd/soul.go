package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var soulCmd = &cobra.Command{
	Use:   "soul",
	Short: "Inspect and edit agent personas",
}

var soulShowCmd = &cobra.Command{
	Use:   "show <agent>",
	Short: "Print an agent's persona",
	Args:  cobra.ExactArgs(1),
	RunE:  runSoulShow,
}

var soulSetCmd = &cobra.Command{
	Use:   "set <agent>",
	Short: "Update fields of an agent's persona",
	Args:  cobra.ExactArgs(1),
	RunE:  runSoulSet,
}

var (
	soulPersonality string
	soulDescription string
)

func init() {
	soulSetCmd.Flags().StringVar(&soulPersonality, "personality", "", "personality description")
	soulSetCmd.Flags().StringVar(&soulDescription, "description", "", "persona description")
	soulCmd.AddCommand(soulShowCmd, soulSetCmd)
	rootCmd.AddCommand(soulCmd)
}

func runSoulShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.Queue.Close()

	s, ok := a.Registry.GetSoul(args[0])
	if !ok {
		return fmt.Errorf("unknown agent %q", args[0])
	}
	fmt.Printf("name: %s\n", s.Name)
	fmt.Printf("description: %s\n", s.Description)
	fmt.Printf("personality: %s\n", s.Personality)
	fmt.Printf("goals: %v\n", s.Goals)
	fmt.Printf("rules: %v\n", s.Rules)
	return nil
}

func runSoulSet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.Queue.Close()

	s, ok := a.Registry.GetSoul(args[0])
	if !ok {
		return fmt.Errorf("unknown agent %q", args[0])
	}
	if cmd.Flags().Changed("personality") {
		s.Personality = soulPersonality
	}
	if cmd.Flags().Changed("description") {
		s.Description = soulDescription
	}
	if err := a.Registry.UpdateSoul(args[0], s); err != nil {
		return err
	}
	fmt.Printf("updated persona for %s\n", args[0])
	return nil
}
