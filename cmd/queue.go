package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage the delivery queue",
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show pending/delivered/failed counts",
	RunE:  runQueueStats,
}

var queueDeadLettersCmd = &cobra.Command{
	Use:   "dead-letters",
	Short: "List messages that exhausted their retry budget",
	RunE:  runQueueDeadLetters,
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Move a dead-lettered message back to pending",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueRetry,
}

var queueLimit int

func init() {
	queueDeadLettersCmd.Flags().IntVar(&queueLimit, "limit", 50, "max results")
	queueCmd.AddCommand(queueStatsCmd, queueDeadLettersCmd, queueRetryCmd)
	rootCmd.AddCommand(queueCmd)
}

func runQueueStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.Queue.Close()

	stats, err := a.Queue.GetStats(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("pending=%d processing=%d delivered=%d failed=%d dead_letter=%d\n",
		stats.Pending, stats.Processing, stats.Delivered, stats.Failed, stats.DeadLetter)
	return nil
}

func runQueueDeadLetters(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.Queue.Close()

	msgs, err := a.Queue.GetDeadLetters(cmd.Context(), queueLimit)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		fmt.Printf("%s  %s -> %s  %q  (last_error: %s)\n", m.ID, m.Channel, m.Recipient, m.Content, m.LastError)
	}
	if len(msgs) == 0 {
		fmt.Println("no dead letters")
	}
	return nil
}

func runQueueRetry(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.Queue.Close()

	if err := a.Queue.RetryDeadLetter(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("requeued %s\n", args[0])
	return nil
}
