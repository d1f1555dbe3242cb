package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Talk to an agent directly, bypassing channels and the gateway",
	RunE:  runAgent,
}

var (
	agentMessage   string
	agentSessionID string
	agentID        string
)

func init() {
	agentCmd.Flags().StringVarP(&agentMessage, "message", "m", "", "message to send (single-shot mode)")
	agentCmd.Flags().StringVarP(&agentSessionID, "session", "s", "cli:direct", "session key")
	agentCmd.Flags().StringVarP(&agentID, "agent", "a", "", "agent id (default: the registry's default agent)")
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.Queue.Close()

	if agentMessage != "" {
		reply, err := a.Registry.Run(context.Background(), agentID, agentSessionID, agentMessage)
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil
	}

	fmt.Println("nanogate interactive mode (type 'exit' or Ctrl+C to quit)")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\ngoodbye")
		cancel()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	exitCommands := map[string]bool{"exit": true, "quit": true, "/exit": true, "/quit": true, ":q": true}

	for {
		fmt.Print("you: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if exitCommands[strings.ToLower(input)] {
			fmt.Println("goodbye")
			break
		}

		reply, err := a.Registry.Run(ctx, agentID, agentSessionID, input)
		if err != nil {
			a.Logger.Error("agent turn failed", zap.Error(err))
			continue
		}
		fmt.Println()
		fmt.Println(reply)
		fmt.Println()
	}

	return nil
}
