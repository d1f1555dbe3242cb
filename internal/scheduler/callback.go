package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// AgentCallback adapts a Scheduler to the tools.SchedulerCallback interface
// for one fixed agent; the channel and peer of each job come from the call.
type AgentCallback struct {
	Scheduler *Scheduler
	AgentID   string
}

// ScheduleAt implements tools.SchedulerCallback.
func (c *AgentCallback) ScheduleAt(name, message, channel, peer, at string) (string, error) {
	t, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return fmt.Sprintf("Error: invalid timestamp %q, expected ISO-8601", at), nil
	}
	j, err := c.Scheduler.CreateAt(c.AgentID, name, message, channel, peer, t)
	if err != nil {
		return fmt.Sprintf("Error scheduling job: %v", err), nil
	}
	return fmt.Sprintf("Scheduled one-time job %s for %s", j.ID, j.NextRun.Format(time.RFC3339)), nil
}

// ScheduleEvery implements tools.SchedulerCallback.
func (c *AgentCallback) ScheduleEvery(name, message, channel, peer, every string) (string, error) {
	j, err := c.Scheduler.CreateEvery(c.AgentID, name, message, channel, peer, every, 0)
	if err != nil {
		return fmt.Sprintf("Error scheduling job: %v", err), nil
	}
	return fmt.Sprintf("Scheduled recurring job %s every %s", j.ID, every), nil
}

// ScheduleCron implements tools.SchedulerCallback.
func (c *AgentCallback) ScheduleCron(name, message, channel, peer, expr string) (string, error) {
	j, err := c.Scheduler.CreateCron(c.AgentID, name, message, channel, peer, expr, 0)
	if err != nil {
		return fmt.Sprintf("Error scheduling job: %v", err), nil
	}
	return fmt.Sprintf("Scheduled cron job %s (%s)", j.ID, expr), nil
}

// ListJobs implements tools.SchedulerCallback.
func (c *AgentCallback) ListJobs() (string, error) {
	var b strings.Builder
	for _, j := range c.Scheduler.GetAll() {
		if j.AgentID != c.AgentID {
			continue
		}
		status := "enabled"
		if !j.Enabled {
			status = "disabled"
		}
		if j.Expired() {
			status = "expired"
		}
		fmt.Fprintf(&b, "%s [%s/%s] %q (%s)\n", j.ID, j.Kind, j.Schedule, j.Name, status)
	}
	if b.Len() == 0 {
		return "No scheduled jobs.", nil
	}
	return b.String(), nil
}

// DeleteJob implements tools.SchedulerCallback.
func (c *AgentCallback) DeleteJob(jobID string) (string, error) {
	if err := c.Scheduler.Delete(jobID); err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	return fmt.Sprintf("Deleted job %s", jobID), nil
}
