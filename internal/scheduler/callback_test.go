package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentCallback_ScheduleEveryAndList(t *testing.T) {
	s := newTestScheduler(t)
	cb := &AgentCallback{Scheduler: s, AgentID: "agent1"}

	msg, err := cb.ScheduleEvery("poll", "check status", "telegram", "123", "5m")
	require.NoError(t, err)
	assert.Contains(t, msg, "Scheduled recurring job")

	list, err := cb.ListJobs()
	require.NoError(t, err)
	assert.Contains(t, list, "poll")
}

func TestAgentCallback_ScheduleAt_InvalidTimestamp(t *testing.T) {
	s := newTestScheduler(t)
	cb := &AgentCallback{Scheduler: s, AgentID: "agent1"}

	msg, err := cb.ScheduleAt("reminder", "say hi", "telegram", "123", "not-a-date")
	require.NoError(t, err)
	assert.Contains(t, msg, "Error")
}

func TestAgentCallback_ScheduleAt_Valid(t *testing.T) {
	s := newTestScheduler(t)
	cb := &AgentCallback{Scheduler: s, AgentID: "agent1"}

	at := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	msg, err := cb.ScheduleAt("reminder", "say hi", "telegram", "123", at)
	require.NoError(t, err)
	assert.Contains(t, msg, "Scheduled one-time job")
}

func TestAgentCallback_ScheduleCron_Invalid(t *testing.T) {
	s := newTestScheduler(t)
	cb := &AgentCallback{Scheduler: s, AgentID: "agent1"}

	msg, err := cb.ScheduleCron("daily", "report", "telegram", "123", "garbage")
	require.NoError(t, err)
	assert.Contains(t, msg, "Error")
}

func TestAgentCallback_DeleteJob(t *testing.T) {
	s := newTestScheduler(t)
	cb := &AgentCallback{Scheduler: s, AgentID: "agent1"}

	_, err := cb.ScheduleEvery("poll", "x", "telegram", "123", "1m")
	require.NoError(t, err)
	jobs := s.GetAll()
	require.Len(t, jobs, 1)

	msg, err := cb.DeleteJob(jobs[0].ID)
	require.NoError(t, err)
	assert.Contains(t, msg, "Deleted job")
	assert.Empty(t, s.GetAll())
}

func TestAgentCallback_DeleteJob_NotFound(t *testing.T) {
	s := newTestScheduler(t)
	cb := &AgentCallback{Scheduler: s, AgentID: "agent1"}

	msg, err := cb.DeleteJob("nope")
	require.NoError(t, err)
	assert.Contains(t, msg, "Error")
}

func TestAgentCallback_ListJobs_ScopedToAgent(t *testing.T) {
	s := newTestScheduler(t)
	cbA := &AgentCallback{Scheduler: s, AgentID: "agent-a"}
	cbB := &AgentCallback{Scheduler: s, AgentID: "agent-b"}

	_, err := cbA.ScheduleEvery("poll-a", "x", "telegram", "123", "1m")
	require.NoError(t, err)
	_, err = cbB.ScheduleEvery("poll-b", "y", "telegram", "456", "1m")
	require.NoError(t, err)

	listA, err := cbA.ListJobs()
	require.NoError(t, err)
	assert.Contains(t, listA, "poll-a")
	assert.NotContains(t, listA, "poll-b")
}

func TestAgentCallback_ListJobs_Empty(t *testing.T) {
	s := newTestScheduler(t)
	cb := &AgentCallback{Scheduler: s, AgentID: "agent1"}

	list, err := cb.ListJobs()
	require.NoError(t, err)
	assert.Equal(t, "No scheduled jobs.", list)
}

