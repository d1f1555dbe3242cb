package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TickInterval is how often the driver checks for due jobs.
const TickInterval = 10 * time.Second

// RunFunc executes a due job's prompt against the agent loop under the
// synthetic session key "<agent>:cron:<job_id>" and returns the result text.
type RunFunc func(ctx context.Context, j Job, sessionKey string) (string, error)

// Driver polls the scheduler on a fixed tick and runs whatever is due. A
// single failing job is recorded as a failed result and never stops the
// driver.
type Driver struct {
	Scheduler *Scheduler
	Run       RunFunc
	Logger    *zap.Logger
}

// Start blocks, ticking every TickInterval until ctx is cancelled.
func (d *Driver) Start(ctx context.Context) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			d.tick(ctx, now, logger)
		}
	}
}

func (d *Driver) tick(ctx context.Context, now time.Time, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, j := range d.Scheduler.GetDue(now) {
		sessionKey := j.AgentID + ":cron:" + j.ID
		result, err := d.Run(ctx, j, sessionKey)
		ok := err == nil
		if err != nil {
			logger.Warn("scheduled job failed", zap.String("job_id", j.ID), zap.Error(err))
			result = err.Error()
		}
		if markErr := d.Scheduler.MarkExecuted(j.ID, ok, result); markErr != nil {
			logger.Error("failed to record job execution", zap.String("job_id", j.ID), zap.Error(markErr))
		}
	}
}
