// Package notify wakes a queue.Worker as soon as a message is enqueued,
// instead of leaving it to find new work on its next poll tick.
//
// Redis pub/sub is optional: with no URL configured, or if the connection
// fails, Notify falls back to a plain timeout wait so the worker still
// makes progress on its normal poll interval.
package notify

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel is the pub/sub channel used to signal new work.
const Channel = "nanogate:queue:wake"

// Config holds the Redis connection settings for the wake-up channel.
type Config struct {
	URL      string // redis://host:port
	Password string
	DB       int
}

// Notifier implements queue.Notifier, publishing and waiting on a Redis
// pub/sub channel. A Notifier with no client falls back to sleeping for
// the requested timeout, matching the queue's own poll interval.
type Notifier struct {
	client *redis.Client
	logger *zap.Logger
}

// New connects to Redis if cfg.URL is set, pinging with a short timeout.
// A connection failure or unset URL yields a working, no-op Notifier
// rather than an error, so callers never need to special-case it.
func New(cfg Config, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.URL == "" {
		return &Notifier{logger: logger}
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		logger.Warn("notify: invalid redis url, falling back to poll-only", zap.Error(err))
		return &Notifier{logger: logger}
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB
	opts.DialTimeout = 5 * time.Second

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("notify: redis unavailable, falling back to poll-only", zap.Error(err))
		_ = client.Close()
		return &Notifier{logger: logger}
	}

	return &Notifier{client: client, logger: logger}
}

// Wait blocks until a wake-up is published or timeout elapses, whichever
// comes first. With no Redis client, it simply sleeps for timeout.
func (n *Notifier) Wait(ctx context.Context, timeout time.Duration) {
	if n.client == nil {
		sleep(ctx, timeout)
		return
	}

	sub := n.client.Subscribe(ctx, Channel)
	defer sub.Close()

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := sub.Receive(waitCtx); err != nil {
		return
	}
	select {
	case <-sub.Channel():
	case <-waitCtx.Done():
	}
}

// Publish signals waiting workers that new work is available. It is a
// no-op with no Redis client.
func (n *Notifier) Publish(ctx context.Context) error {
	if n.client == nil {
		return nil
	}
	return n.client.Publish(ctx, Channel, "1").Err()
}

// Close releases the underlying Redis connection, if any.
func (n *Notifier) Close() error {
	if n.client == nil {
		return nil
	}
	return n.client.Close()
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
