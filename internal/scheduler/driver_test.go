package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriver_Tick_RunsDueJobs(t *testing.T) {
	s := newTestScheduler(t)
	past := time.Now().Add(-time.Minute)
	j, err := s.CreateAt("agent1", "job", "do it", "telegram", "123", past)
	require.NoError(t, err)

	var gotKey string
	d := &Driver{Scheduler: s, Run: func(_ context.Context, job Job, sessionKey string) (string, error) {
		gotKey = sessionKey
		return "done", nil
	}}

	d.tick(context.Background(), time.Now(), nil)

	assert.Equal(t, "agent1:cron:"+j.ID, gotKey)
	result, ok, found := s.GetLastResult(j.ID)
	assert.True(t, found)
	assert.True(t, ok)
	assert.Equal(t, "done", result)
}

func TestDriver_Tick_RecordsFailureWithoutStopping(t *testing.T) {
	s := newTestScheduler(t)
	past := time.Now().Add(-time.Minute)
	j1, err := s.CreateAt("agent1", "fails", "x", "telegram", "1", past)
	require.NoError(t, err)
	j2, err := s.CreateAt("agent1", "ok", "y", "telegram", "2", past)
	require.NoError(t, err)

	d := &Driver{Scheduler: s, Run: func(_ context.Context, job Job, _ string) (string, error) {
		if job.ID == j1.ID {
			return "", errors.New("boom")
		}
		return "success", nil
	}}

	d.tick(context.Background(), time.Now(), nil)

	_, ok1, _ := s.GetLastResult(j1.ID)
	assert.False(t, ok1)
	_, ok2, _ := s.GetLastResult(j2.ID)
	assert.True(t, ok2)
}
