package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNotifier_NoURLFallsBackToTimeout(t *testing.T) {
	n := New(Config{}, nil)

	start := time.Now()
	n.Wait(context.Background(), 30*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestNotifier_NoURLPublishIsNoop(t *testing.T) {
	n := New(Config{}, nil)
	assert.NoError(t, n.Publish(context.Background()))
	assert.NoError(t, n.Close())
}

func TestNotifier_InvalidURLFallsBackGracefully(t *testing.T) {
	n := New(Config{URL: "not-a-valid-url"}, nil)

	start := time.Now()
	n.Wait(context.Background(), 20*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.NoError(t, n.Publish(context.Background()))
}

func TestNotifier_WaitRespectsContextCancellation(t *testing.T) {
	n := New(Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		n.Wait(ctx, time.Second)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return promptly after context cancellation")
	}
}
