package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var bindingsCmd = &cobra.Command{
	Use:   "bindings",
	Short: "Manage channel+peer -> agent routing bindings",
}

var bindingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bindings, optionally filtered by agent",
	RunE:  runBindingsList,
}

var bindingsCreateCmd = &cobra.Command{
	Use:   "create <agent> <channel> <peer>",
	Short: "Create a binding",
	Args:  cobra.ExactArgs(3),
	RunE:  runBindingsCreate,
}

var bindingsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a binding",
	Args:  cobra.ExactArgs(1),
	RunE:  runBindingsDelete,
}

var (
	bindingsFilterAgent string
	bindingsPriority    int
)

func init() {
	bindingsListCmd.Flags().StringVar(&bindingsFilterAgent, "agent", "", "only show bindings for this agent")
	bindingsCreateCmd.Flags().IntVar(&bindingsPriority, "priority", 0, "lower priority wins on conflict")
	bindingsCmd.AddCommand(bindingsListCmd, bindingsCreateCmd, bindingsDeleteCmd)
	rootCmd.AddCommand(bindingsCmd)
}

func runBindingsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.Queue.Close()

	bindings := a.Router.List()
	if bindingsFilterAgent != "" {
		bindings = a.Router.ListForAgent(bindingsFilterAgent)
	}
	for _, b := range bindings {
		status := "enabled"
		if !b.Enabled {
			status = "disabled"
		}
		fmt.Printf("%s  agent=%s  channel=%s  peer=%s  priority=%d  %s\n", b.ID, b.AgentID, b.Channel, b.Peer, b.Priority, status)
	}
	return nil
}

func runBindingsCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.Queue.Close()

	b, err := a.Router.CreateBinding(args[0], args[1], args[2], bindingsPriority)
	if err != nil {
		return err
	}
	fmt.Printf("created binding %s\n", b.ID)
	return nil
}

func runBindingsDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.Queue.Close()

	if err := a.Router.RemoveBinding(args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted binding %s\n", args[0])
	return nil
}
