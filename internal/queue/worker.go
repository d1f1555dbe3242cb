package queue

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nanogate/nanogate/internal/bus"
)

// TickInterval is how often the worker polls for pending messages.
const TickInterval = 1 * time.Second

// ErrorBackoff is how long the worker pauses after an unexpected poll error
// before trying again.
const ErrorBackoff = 5 * time.Second

// SendFunc performs the actual delivery of a message to its channel.
type SendFunc func(ctx context.Context, m Message) error

// Notifier is an optional wake-up signal (e.g. pub/sub) that lets the worker
// skip its poll interval when a new message is enqueued.
type Notifier interface {
	Wait(ctx context.Context, timeout time.Duration)
}

// Owner decides whether this worker instance is responsible for a given
// message id. Nil means every message belongs to this worker.
type Owner interface {
	Owns(key string) bool
}

// Worker drains the ready set of the queue and delivers each message via Send.
type Worker struct {
	Queue    *Queue
	Send     SendFunc
	Notifier Notifier
	Logger   *zap.Logger
	Limit    int

	// Owner restricts delivery to messages this node owns, letting several
	// Worker instances share one queue without double-delivering. Messages
	// not owned by this node are left pending for their owner to pick up.
	Owner Owner
}

// Run blocks, polling until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	logger := w.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := w.Limit
	if limit <= 0 {
		limit = 10
	}

	for {
		if ctx.Err() != nil {
			return
		}
		n, err := w.drain(ctx, limit, logger)
		if err != nil {
			logger.Error("queue drain failed", zap.Error(err))
			sleep(ctx, ErrorBackoff)
			continue
		}
		if n > 0 {
			continue // keep draining while work is available
		}
		if w.Notifier != nil {
			w.Notifier.Wait(ctx, TickInterval)
		} else {
			sleep(ctx, TickInterval)
		}
	}
}

func (w *Worker) drain(ctx context.Context, limit int, logger *zap.Logger) (int, error) {
	pending, err := w.Queue.GetPending(ctx, limit)
	if err != nil {
		return 0, err
	}
	handled := 0
	for _, m := range pending {
		if w.Owner != nil && !w.Owner.Owns(m.ID) {
			continue
		}
		handled++
		if err := w.Queue.MarkProcessing(ctx, m.ID); err != nil {
			logger.Error("mark_processing failed", zap.String("id", m.ID), zap.Error(err))
			continue
		}
		if err := w.Send(ctx, m); err != nil {
			logger.Warn("delivery failed", zap.String("id", m.ID), zap.Error(err))
			if markErr := w.Queue.MarkFailed(ctx, m.ID, err.Error()); markErr != nil {
				logger.Error("mark_failed failed", zap.String("id", m.ID), zap.Error(markErr))
			}
			continue
		}
		if err := w.Queue.MarkDelivered(ctx, m.ID); err != nil {
			logger.Error("mark_delivered failed", zap.String("id", m.ID), zap.Error(err))
		}
	}
	return handled, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// EnqueueCallback adapts a Queue to the tools.EnqueueFunc signature used by
// MessageTool.
func (q *Queue) EnqueueCallback(ctx context.Context) func(bus.OutboundMessage) (string, error) {
	return func(msg bus.OutboundMessage) (string, error) {
		return q.Enqueue(ctx, EnqueueParams{
			Channel:   msg.Channel,
			Recipient: msg.Peer,
			Content:   msg.Text,
			ThreadID:  msg.ThreadID,
		})
	}
}
