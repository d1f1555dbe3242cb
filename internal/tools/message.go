package tools

import (
	"context"
	"fmt"

	"github.com/nanogate/nanogate/internal/bus"
)

// EnqueueFunc hands an outbound message to the delivery queue rather than
// sending it directly; the queue owns retry and back-off.
type EnqueueFunc func(msg bus.OutboundMessage) (string, error)

// MessageTool lets the agent send a message to the user on the current or an
// explicitly named channel, via the delivery queue.
type MessageTool struct {
	EnqueueCallback EnqueueFunc
	DefaultChannel  string
	DefaultPeer     string
}

func (t *MessageTool) Name() string        { return "message" }
func (t *MessageTool) Description() string { return "Send a message to the user." }
func (t *MessageTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{"type": "string", "description": "The message content to send"},
			"channel": map[string]any{"type": "string", "description": "Optional: target channel"},
			"peer":    map[string]any{"type": "string", "description": "Optional: target peer"},
		},
		"required": []string{"content"},
	}
}

// SetContext sets the current message context.
func (t *MessageTool) SetContext(channel, peer string) {
	t.DefaultChannel = channel
	t.DefaultPeer = peer
}

func (t *MessageTool) Execute(_ context.Context, args map[string]any) (string, error) {
	content, _ := args["content"].(string)
	channel, _ := args["channel"].(string)
	peer, _ := args["peer"].(string)

	if channel == "" {
		channel = t.DefaultChannel
	}
	if peer == "" {
		peer = t.DefaultPeer
	}
	if channel == "" || peer == "" {
		return "Error: No target channel/peer specified", nil
	}
	if t.EnqueueCallback == nil {
		return "Error: Message sending not configured", nil
	}

	id, err := t.EnqueueCallback(bus.OutboundMessage{Channel: channel, Peer: peer, Text: content})
	if err != nil {
		return fmt.Sprintf("Error sending message: %v", err), nil
	}
	return fmt.Sprintf("Message queued for %s:%s (id: %s)", channel, peer, id), nil
}

// SchedulerCallback is the interface a job scheduler exposes to the cron tool.
type SchedulerCallback interface {
	ScheduleAt(name, message, channel, peer, at string) (string, error)
	ScheduleEvery(name, message, channel, peer, every string) (string, error)
	ScheduleCron(name, message, channel, peer, expr string) (string, error)
	ListJobs() (string, error)
	DeleteJob(jobID string) (string, error)
}

// CronAction identifies which scheduling operation a cron tool call performs.
type CronAction string

const (
	CronScheduleAt    CronAction = "schedule_at"
	CronScheduleEvery CronAction = "schedule_every"
	CronScheduleCron  CronAction = "schedule_cron"
	CronList          CronAction = "list"
	CronDelete        CronAction = "delete"
)

// CronTool lets the agent schedule reminders and recurring tasks.
type CronTool struct {
	Scheduler SchedulerCallback
	Channel   string
	Peer      string
}

func (t *CronTool) Name() string { return "cron" }
func (t *CronTool) Description() string {
	return "Schedule reminders and recurring tasks. Actions: schedule_at, schedule_every, schedule_cron, list, delete."
}
func (t *CronTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action":  map[string]any{"type": "string", "enum": []string{"schedule_at", "schedule_every", "schedule_cron", "list", "delete"}},
			"message": map[string]any{"type": "string", "description": "Reminder message (for schedule_*)"},
			"every":   map[string]any{"type": "string", "description": "Interval expression, e.g. '30m' (for schedule_every)"},
			"cron":    map[string]any{"type": "string", "description": "Cron expression (for schedule_cron)"},
			"at":      map[string]any{"type": "string", "description": "ISO datetime (for schedule_at)"},
			"job_id":  map[string]any{"type": "string", "description": "Job ID (for delete)"},
		},
		"required": []string{"action"},
	}
}

// SetContext sets the delivery target for scheduled messages.
func (t *CronTool) SetContext(channel, peer string) {
	t.Channel = channel
	t.Peer = peer
}

func (t *CronTool) Execute(_ context.Context, args map[string]any) (string, error) {
	action, _ := args["action"].(string)

	if t.Scheduler == nil {
		return "Error: Scheduler not configured", nil
	}

	switch CronAction(action) {
	case CronScheduleAt, CronScheduleEvery, CronScheduleCron:
		message, _ := args["message"].(string)
		if message == "" {
			return "Error: message is required for scheduling", nil
		}
		if t.Channel == "" || t.Peer == "" {
			return "Error: no session context (channel/peer)", nil
		}
		name := message
		if len(name) > 30 {
			name = name[:30]
		}
		switch CronAction(action) {
		case CronScheduleAt:
			at, _ := args["at"].(string)
			return t.Scheduler.ScheduleAt(name, message, t.Channel, t.Peer, at)
		case CronScheduleEvery:
			every, _ := args["every"].(string)
			return t.Scheduler.ScheduleEvery(name, message, t.Channel, t.Peer, every)
		default:
			expr, _ := args["cron"].(string)
			return t.Scheduler.ScheduleCron(name, message, t.Channel, t.Peer, expr)
		}

	case CronList:
		return t.Scheduler.ListJobs()

	case CronDelete:
		jobID, _ := args["job_id"].(string)
		if jobID == "" {
			return "Error: job_id is required for delete", nil
		}
		return t.Scheduler.DeleteJob(jobID)

	default:
		return fmt.Sprintf("Unknown action: %s", action), nil
	}
}
