package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Manage scheduled jobs",
}

var schedulerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every scheduled job",
	RunE:  runSchedulerList,
}

var schedulerDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a scheduled job",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchedulerDelete,
}

var schedulerToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Enable or disable a scheduled job",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchedulerToggle,
}

var (
	schedulerAgent, schedulerName, schedulerPrompt, schedulerChannel, schedulerPeer string
	schedulerAt, schedulerEvery, schedulerCron                                      string
	schedulerMaxRuns                                                                int
	schedulerEnabled                                                                bool
)

var schedulerCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a job (exactly one of --at, --every, --cron)",
	RunE:  runSchedulerCreate,
}

func init() {
	for _, c := range []*cobra.Command{schedulerCreateCmd} {
		c.Flags().StringVar(&schedulerAgent, "agent", "", "agent id (required)")
		c.Flags().StringVar(&schedulerName, "name", "", "job name (required)")
		c.Flags().StringVar(&schedulerPrompt, "prompt", "", "prompt sent to the agent (required)")
		c.Flags().StringVar(&schedulerChannel, "channel", "", "delivery channel")
		c.Flags().StringVar(&schedulerPeer, "peer", "", "delivery peer")
		c.Flags().StringVar(&schedulerAt, "at", "", "run once at this RFC3339 timestamp")
		c.Flags().StringVar(&schedulerEvery, "every", "", "run every interval, e.g. 30m")
		c.Flags().StringVar(&schedulerCron, "cron", "", "run on this cron expression")
		c.Flags().IntVar(&schedulerMaxRuns, "max-runs", 0, "stop after this many runs (0 = unlimited)")
	}
	schedulerToggleCmd.Flags().BoolVar(&schedulerEnabled, "enabled", true, "enable (true) or disable (false)")

	schedulerCmd.AddCommand(schedulerListCmd, schedulerCreateCmd, schedulerDeleteCmd, schedulerToggleCmd)
	rootCmd.AddCommand(schedulerCmd)
}

func runSchedulerList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.Queue.Close()

	for _, j := range a.Scheduler.GetAll() {
		status := "enabled"
		if !j.Enabled {
			status = "disabled"
		}
		fmt.Printf("%s  [%s/%s]  agent=%s  %q  next_run=%s  runs=%d  %s\n",
			j.ID, j.Kind, j.Schedule, j.AgentID, j.Name, formatJobTime(j.NextRun), j.RunCount, status)
	}
	return nil
}

func runSchedulerCreate(cmd *cobra.Command, args []string) error {
	if schedulerAgent == "" || schedulerName == "" || schedulerPrompt == "" {
		return fmt.Errorf("--agent, --name, and --prompt are required")
	}
	set := 0
	for _, v := range []string{schedulerAt, schedulerEvery, schedulerCron} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one of --at, --every, --cron is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.Queue.Close()

	switch {
	case schedulerAt != "":
		t, err := time.Parse(time.RFC3339, schedulerAt)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		j, err := a.Scheduler.CreateAt(schedulerAgent, schedulerName, schedulerPrompt, schedulerChannel, schedulerPeer, t)
		if err != nil {
			return err
		}
		fmt.Printf("created %s, next_run=%s\n", j.ID, formatJobTime(j.NextRun))
	case schedulerEvery != "":
		j, err := a.Scheduler.CreateEvery(schedulerAgent, schedulerName, schedulerPrompt, schedulerChannel, schedulerPeer, schedulerEvery, schedulerMaxRuns)
		if err != nil {
			return err
		}
		fmt.Printf("created %s, next_run=%s\n", j.ID, formatJobTime(j.NextRun))
	case schedulerCron != "":
		j, err := a.Scheduler.CreateCron(schedulerAgent, schedulerName, schedulerPrompt, schedulerChannel, schedulerPeer, schedulerCron, schedulerMaxRuns)
		if err != nil {
			return err
		}
		fmt.Printf("created %s, next_run=%s\n", j.ID, formatJobTime(j.NextRun))
	}
	return nil
}

func runSchedulerDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.Queue.Close()

	if err := a.Scheduler.Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}

func runSchedulerToggle(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer a.Queue.Close()

	if err := a.Scheduler.SetEnabled(args[0], schedulerEnabled); err != nil {
		return err
	}
	fmt.Printf("job %s enabled=%v\n", args[0], schedulerEnabled)
	return nil
}
