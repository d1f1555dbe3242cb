package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := Open(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func TestQueue_EnqueueAndGetPending(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, EnqueueParams{Channel: "telegram", Recipient: "123", Content: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	pending, err := q.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)
	assert.Equal(t, Pending, pending[0].Status)
}

func TestQueue_GetPending_RespectsScheduledAt(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	future := time.Now().Add(time.Hour)
	_, err := q.Enqueue(ctx, EnqueueParams{Channel: "telegram", Recipient: "1", Content: "later", ScheduledAt: &future})
	require.NoError(t, err)

	pending, err := q.GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestQueue_GetPending_PriorityAndOrder(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, EnqueueParams{Channel: "t", Recipient: "1", Content: "low", Priority: 0})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, EnqueueParams{Channel: "t", Recipient: "2", Content: "high", Priority: 10})
	require.NoError(t, err)

	pending, err := q.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "high", pending[0].Content)
}

func TestQueue_MarkProcessingThenDelivered(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, EnqueueParams{Channel: "t", Recipient: "1", Content: "x"})
	require.NoError(t, err)

	require.NoError(t, q.MarkProcessing(ctx, id))
	require.NoError(t, q.MarkDelivered(ctx, id))

	stats, err := q.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Delivered)
	assert.Equal(t, 1, stats.Total)
}

func TestQueue_MarkFailed_RetriesUntilDeadLetter(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, EnqueueParams{Channel: "t", Recipient: "1", Content: "x"})
	require.NoError(t, err)

	for i := 0; i < MaxAttempts; i++ {
		require.NoError(t, q.MarkProcessing(ctx, id))
		require.NoError(t, q.MarkFailed(ctx, id, "boom"))
	}

	stats, err := q.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DeadLetter)

	dead, err := q.GetDeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "boom", dead[0].LastError)
}

func TestQueue_MarkFailed_SchedulesBackoff(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, EnqueueParams{Channel: "t", Recipient: "1", Content: "x"})
	require.NoError(t, err)

	require.NoError(t, q.MarkProcessing(ctx, id))
	require.NoError(t, q.MarkFailed(ctx, id, "transient"))

	pending, err := q.GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "should not be ready until next_attempt_at")
}

func TestQueue_RetryDeadLetter(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, EnqueueParams{Channel: "t", Recipient: "1", Content: "x"})
	require.NoError(t, err)
	for i := 0; i < MaxAttempts; i++ {
		require.NoError(t, q.MarkProcessing(ctx, id))
		require.NoError(t, q.MarkFailed(ctx, id, "boom"))
	}

	require.NoError(t, q.RetryDeadLetter(ctx, id))

	pending, err := q.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 0, pending[0].AttemptCount)
	assert.Empty(t, pending[0].LastError)
}

func TestQueue_RetryDeadLetter_NotADeadLetter(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, EnqueueParams{Channel: "t", Recipient: "1", Content: "x"})
	require.NoError(t, err)

	err = q.RetryDeadLetter(ctx, id)
	assert.Error(t, err)
}

func TestQueue_MarkProcessing_NotFound(t *testing.T) {
	q := newTestQueue(t)
	err := q.MarkProcessing(context.Background(), "nope")
	assert.Error(t, err)
}

func TestBackoffFor(t *testing.T) {
	assert.Equal(t, 1*time.Second, backoffFor(1))
	assert.Equal(t, 5*time.Second, backoffFor(2))
	assert.Equal(t, 300*time.Second, backoffFor(5))
	assert.Equal(t, 300*time.Second, backoffFor(99))
}
