package gateway

import (
	"context"
	"time"

	"github.com/nanogate/nanogate/internal/lane"
	"github.com/nanogate/nanogate/internal/queue"
	"github.com/nanogate/nanogate/internal/soul"
)

func (g *Gateway) sendMessage(ctx context.Context, params map[string]any) (any, error) {
	content, err := paramString(params, "content")
	if err != nil {
		return nil, err
	}
	req := lane.ChatRequest{
		Content:    content,
		SessionKey: optString(params, "session_key"),
		Channel:    optString(params, "channel"),
		ChatID:     optString(params, "peer"),
		RoleID:     optString(params, "agent_id"),
		Timestamp:  time.Now(),
	}
	mode := lane.Mode(optString(params, "mode"))
	result, err := g.Lane.Submit(ctx, req, mode)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (g *Gateway) queueMessage(ctx context.Context, params map[string]any) (any, error) {
	channel, err := paramString(params, "channel")
	if err != nil {
		return nil, err
	}
	recipient, err := paramString(params, "recipient")
	if err != nil {
		return nil, err
	}
	content, err := paramString(params, "content")
	if err != nil {
		return nil, err
	}

	p := queue.EnqueueParams{
		Channel:    channel,
		Recipient:  recipient,
		Content:    content,
		ThreadID:   optString(params, "thread_id"),
		SessionKey: optString(params, "session_key"),
		Priority:   optInt(params, "priority", 0),
	}
	if at := optString(params, "scheduled_at"); at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return nil, err
		}
		p.ScheduledAt = &t
	}

	id, err := g.Queue.Enqueue(ctx, p)
	if err != nil {
		return nil, err
	}
	if g.Notify != nil {
		_ = g.Notify.Publish(ctx)
	}
	return map[string]any{"id": id}, nil
}

func (g *Gateway) queueStats(ctx context.Context, _ map[string]any) (any, error) {
	return g.Queue.GetStats(ctx)
}

func (g *Gateway) listDeadLetters(ctx context.Context, params map[string]any) (any, error) {
	return g.Queue.GetDeadLetters(ctx, optInt(params, "limit", 50))
}

func (g *Gateway) retryDeadLetter(ctx context.Context, params map[string]any) (any, error) {
	id, err := paramString(params, "id")
	if err != nil {
		return nil, err
	}
	return nil, g.Queue.RetryDeadLetter(ctx, id)
}

func (g *Gateway) scheduleAt(_ context.Context, params map[string]any) (any, error) {
	agent, err := paramString(params, "agent")
	if err != nil {
		return nil, err
	}
	name, err := paramString(params, "name")
	if err != nil {
		return nil, err
	}
	prompt, err := paramString(params, "prompt")
	if err != nil {
		return nil, err
	}
	at, err := paramString(params, "at")
	if err != nil {
		return nil, err
	}
	atUTC, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return nil, err
	}
	return g.Scheduler.CreateAt(agent, name, prompt, optString(params, "channel"), optString(params, "peer"), atUTC)
}

func (g *Gateway) scheduleEvery(_ context.Context, params map[string]any) (any, error) {
	agent, err := paramString(params, "agent")
	if err != nil {
		return nil, err
	}
	name, err := paramString(params, "name")
	if err != nil {
		return nil, err
	}
	prompt, err := paramString(params, "prompt")
	if err != nil {
		return nil, err
	}
	interval, err := paramString(params, "interval")
	if err != nil {
		return nil, err
	}
	return g.Scheduler.CreateEvery(agent, name, prompt, optString(params, "channel"), optString(params, "peer"), interval, optInt(params, "max_runs", 0))
}

func (g *Gateway) scheduleCron(_ context.Context, params map[string]any) (any, error) {
	agent, err := paramString(params, "agent")
	if err != nil {
		return nil, err
	}
	name, err := paramString(params, "name")
	if err != nil {
		return nil, err
	}
	prompt, err := paramString(params, "prompt")
	if err != nil {
		return nil, err
	}
	expr, err := paramString(params, "expr")
	if err != nil {
		return nil, err
	}
	return g.Scheduler.CreateCron(agent, name, prompt, optString(params, "channel"), optString(params, "peer"), expr, optInt(params, "max_runs", 0))
}

func (g *Gateway) listJobs(_ context.Context, _ map[string]any) (any, error) {
	return g.Scheduler.GetAll(), nil
}

func (g *Gateway) deleteJob(_ context.Context, params map[string]any) (any, error) {
	id, err := paramString(params, "id")
	if err != nil {
		return nil, err
	}
	return nil, g.Scheduler.Delete(id)
}

func (g *Gateway) toggleJob(_ context.Context, params map[string]any) (any, error) {
	id, err := paramString(params, "id")
	if err != nil {
		return nil, err
	}
	return nil, g.Scheduler.SetEnabled(id, optBool(params, "enabled", true))
}

func (g *Gateway) createBinding(_ context.Context, params map[string]any) (any, error) {
	agent, err := paramString(params, "agent")
	if err != nil {
		return nil, err
	}
	channel, err := paramString(params, "channel")
	if err != nil {
		return nil, err
	}
	peer, err := paramString(params, "peer")
	if err != nil {
		return nil, err
	}
	return g.Router.CreateBinding(agent, channel, peer, optInt(params, "priority", 0))
}

func (g *Gateway) listBindings(_ context.Context, params map[string]any) (any, error) {
	if agent := optString(params, "agent"); agent != "" {
		return g.Router.ListForAgent(agent), nil
	}
	return g.Router.List(), nil
}

func (g *Gateway) deleteBinding(_ context.Context, params map[string]any) (any, error) {
	id, err := paramString(params, "id")
	if err != nil {
		return nil, err
	}
	return nil, g.Router.RemoveBinding(id)
}

func (g *Gateway) listSessions(_ context.Context, _ map[string]any) (any, error) {
	return g.Sessions.List(), nil
}

func (g *Gateway) createSession(_ context.Context, params map[string]any) (any, error) {
	key, err := paramString(params, "key")
	if err != nil {
		return nil, err
	}
	return g.Sessions.Create(key)
}

func (g *Gateway) getHistory(_ context.Context, params map[string]any) (any, error) {
	key, err := paramString(params, "key")
	if err != nil {
		return nil, err
	}
	meta, history, err := g.Sessions.Load(key)
	if err != nil {
		return nil, err
	}
	return map[string]any{"metadata": meta, "history": history}, nil
}

func (g *Gateway) getSoul(_ context.Context, params map[string]any) (any, error) {
	agentID, err := paramString(params, "agent_id")
	if err != nil {
		return nil, err
	}
	s, ok := g.Registry.GetSoul(agentID)
	if !ok {
		return nil, &MethodNotFoundError{Method: "get_soul: unknown agent " + agentID}
	}
	return s, nil
}

func (g *Gateway) updateSoul(_ context.Context, params map[string]any) (any, error) {
	agentID, err := paramString(params, "agent_id")
	if err != nil {
		return nil, err
	}
	current, ok := g.Registry.GetSoul(agentID)
	if !ok {
		current = soul.Soul{Name: agentID}
	}
	if v, present, err := optStringChecked(params, "name"); err != nil {
		return nil, err
	} else if present {
		current.Name = v
	}
	if v, present, err := optStringChecked(params, "description"); err != nil {
		return nil, err
	} else if present {
		current.Description = v
	}
	if v, present, err := optStringChecked(params, "personality"); err != nil {
		return nil, err
	} else if present {
		current.Personality = v
	}
	if goals := optStringSlice(params, "goals"); goals != nil {
		current.Goals = goals
	}
	if rules := optStringSlice(params, "rules"); rules != nil {
		current.Rules = rules
	}
	if err := g.Registry.UpdateSoul(agentID, current); err != nil {
		return nil, err
	}
	return current, nil
}

func (g *Gateway) searchMemories(_ context.Context, params map[string]any) (any, error) {
	query, err := paramString(params, "query")
	if err != nil {
		return nil, err
	}
	return g.Memory.Search(query, optInt(params, "k", 3)), nil
}
