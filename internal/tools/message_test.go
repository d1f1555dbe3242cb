package tools

import (
	"context"
	"fmt"
	"testing"

	"github.com/nanogate/nanogate/internal/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- MessageTool Tests ---

func TestMessageTool_Contract(t *testing.T) {
	RunToolContractTests(t, &MessageTool{})
}

func TestMessageTool_Execute(t *testing.T) {
	var enqueued bus.OutboundMessage
	tool := &MessageTool{
		EnqueueCallback: func(msg bus.OutboundMessage) (string, error) {
			enqueued = msg
			return "01ABC", nil
		},
		DefaultChannel: "telegram",
		DefaultPeer:    "123",
	}
	result, err := tool.Execute(context.Background(), map[string]any{
		"content": "hello!",
	})
	require.NoError(t, err)
	assert.Contains(t, result, "Message queued")
	assert.Equal(t, "telegram", enqueued.Channel)
	assert.Equal(t, "123", enqueued.Peer)
	assert.Equal(t, "hello!", enqueued.Text)
}

func TestMessageTool_OverrideChannel(t *testing.T) {
	var enqueued bus.OutboundMessage
	tool := &MessageTool{
		EnqueueCallback: func(msg bus.OutboundMessage) (string, error) { enqueued = msg; return "id", nil },
		DefaultChannel:  "telegram",
		DefaultPeer:     "123",
	}
	tool.Execute(context.Background(), map[string]any{
		"content": "hi", "channel": "discord", "peer": "456",
	})
	assert.Equal(t, "discord", enqueued.Channel)
	assert.Equal(t, "456", enqueued.Peer)
}

func TestMessageTool_NoTarget(t *testing.T) {
	tool := &MessageTool{}
	result, _ := tool.Execute(context.Background(), map[string]any{"content": "hi"})
	assert.Contains(t, result, "No target channel")
}

func TestMessageTool_NoCallback(t *testing.T) {
	tool := &MessageTool{DefaultChannel: "t", DefaultPeer: "1"}
	result, _ := tool.Execute(context.Background(), map[string]any{"content": "hi"})
	assert.Contains(t, result, "not configured")
}

func TestMessageTool_EnqueueError(t *testing.T) {
	tool := &MessageTool{
		EnqueueCallback: func(msg bus.OutboundMessage) (string, error) { return "", fmt.Errorf("db error") },
		DefaultChannel:  "t", DefaultPeer: "1",
	}
	result, _ := tool.Execute(context.Background(), map[string]any{"content": "hi"})
	assert.Contains(t, result, "Error sending message")
}

// --- CronTool Tests ---

func TestCronTool_Contract(t *testing.T) {
	RunToolContractTests(t, &CronTool{})
}

type mockScheduler struct {
	jobs []string
}

func (m *mockScheduler) ScheduleAt(name, message, channel, peer, at string) (string, error) {
	m.jobs = append(m.jobs, name)
	return fmt.Sprintf("Created job '%s' (id: mock-1)", name), nil
}
func (m *mockScheduler) ScheduleEvery(name, message, channel, peer, every string) (string, error) {
	m.jobs = append(m.jobs, name)
	return fmt.Sprintf("Created job '%s' (id: mock-1)", name), nil
}
func (m *mockScheduler) ScheduleCron(name, message, channel, peer, expr string) (string, error) {
	m.jobs = append(m.jobs, name)
	return fmt.Sprintf("Created job '%s' (id: mock-1)", name), nil
}
func (m *mockScheduler) ListJobs() (string, error) {
	if len(m.jobs) == 0 {
		return "No scheduled jobs.", nil
	}
	return fmt.Sprintf("Scheduled jobs: %d", len(m.jobs)), nil
}
func (m *mockScheduler) DeleteJob(jobID string) (string, error) {
	return fmt.Sprintf("Removed job %s", jobID), nil
}

func TestCronTool_ScheduleEvery(t *testing.T) {
	mc := &mockScheduler{}
	tool := &CronTool{Scheduler: mc, Channel: "telegram", Peer: "123"}

	result, err := tool.Execute(context.Background(), map[string]any{
		"action": "schedule_every", "message": "Drink water", "every": "1h",
	})
	require.NoError(t, err)
	assert.Contains(t, result, "Created job")
	assert.Len(t, mc.jobs, 1)
}

func TestCronTool_ScheduleNoMessage(t *testing.T) {
	tool := &CronTool{Scheduler: &mockScheduler{}, Channel: "t", Peer: "1"}
	result, _ := tool.Execute(context.Background(), map[string]any{"action": "schedule_at"})
	assert.Contains(t, result, "message is required")
}

func TestCronTool_ScheduleNoContext(t *testing.T) {
	tool := &CronTool{Scheduler: &mockScheduler{}}
	result, _ := tool.Execute(context.Background(), map[string]any{
		"action": "schedule_at", "message": "hello",
	})
	assert.Contains(t, result, "no session context")
}

func TestCronTool_List(t *testing.T) {
	tool := &CronTool{Scheduler: &mockScheduler{}}
	result, _ := tool.Execute(context.Background(), map[string]any{"action": "list"})
	assert.Contains(t, result, "No scheduled jobs")
}

func TestCronTool_Delete(t *testing.T) {
	tool := &CronTool{Scheduler: &mockScheduler{}}
	result, _ := tool.Execute(context.Background(), map[string]any{
		"action": "delete", "job_id": "abc",
	})
	assert.Contains(t, result, "Removed job abc")
}

func TestCronTool_DeleteNoID(t *testing.T) {
	tool := &CronTool{Scheduler: &mockScheduler{}}
	result, _ := tool.Execute(context.Background(), map[string]any{"action": "delete"})
	assert.Contains(t, result, "job_id is required")
}

func TestCronTool_UnknownAction(t *testing.T) {
	tool := &CronTool{Scheduler: &mockScheduler{}}
	result, _ := tool.Execute(context.Background(), map[string]any{"action": "pause"})
	assert.Contains(t, result, "Unknown action")
}

func TestCronTool_NoScheduler(t *testing.T) {
	tool := &CronTool{}
	result, _ := tool.Execute(context.Background(), map[string]any{"action": "list"})
	assert.Contains(t, result, "not configured")
}
