package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nanogate/nanogate/internal/utils"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect session transcripts",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every known session",
	RunE:  runSessionList,
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create <key>",
	Short: "Create an empty session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionCreate,
}

var sessionHistoryCmd = &cobra.Command{
	Use:   "history <key>",
	Short: "Print a session's transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionHistory,
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a session and its transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionDelete,
}

func init() {
	sessionCmd.AddCommand(sessionListCmd, sessionCreateCmd, sessionHistoryCmd, sessionDeleteCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.Queue.Close()

	for _, m := range a.Sessions.List() {
		agent, channel, peer, err := utils.SplitSessionKey(m.Key)
		if err != nil {
			fmt.Printf("%s  messages=%d  updated=%s\n", m.Key, m.MessageCount, m.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
			continue
		}
		fmt.Printf("%s  agent=%s  channel=%s  peer=%s  messages=%d  updated=%s\n",
			m.Key, agent, channel, peer, m.MessageCount, m.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	return nil
}

func runSessionCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.Queue.Close()

	m, err := a.Sessions.Create(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("created session %s (%s)\n", m.Key, m.SessionID)
	return nil
}

func runSessionHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.Queue.Close()

	_, history, err := a.Sessions.Load(args[0])
	if err != nil {
		return err
	}
	for _, msg := range history {
		fmt.Printf("[%s] %s\n", msg.Role, msg.Text)
	}
	return nil
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.Queue.Close()

	if err := a.Sessions.Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}
