// Package gateway exposes every operation of the running system through a
// single named-method dispatcher, framing-agnostic by design: something
// else (an HTTP handler, a WebSocket loop, a CLI subcommand) decides how a
// method name and parameter object arrive and how the result is written
// back out.
//
// Generalized from the teacher's HTTP/WS cluster.Server dispatch pattern
// (one handler function per REST endpoint) into a name -> handler map that
// any transport can sit in front of.
package gateway

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nanogate/nanogate/internal/lane"
	"github.com/nanogate/nanogate/internal/memory"
	"github.com/nanogate/nanogate/internal/notify"
	"github.com/nanogate/nanogate/internal/queue"
	"github.com/nanogate/nanogate/internal/registry"
	"github.com/nanogate/nanogate/internal/router"
	"github.com/nanogate/nanogate/internal/scheduler"
	"github.com/nanogate/nanogate/internal/session"
)

// Handler processes one dispatch call.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// MethodNotFoundError is returned by Dispatch for an unregistered method.
type MethodNotFoundError struct{ Method string }

func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("gateway: method not found: %q", e.Method)
}

// InternalError wraps a handler panic so the caller sees it the same way
// any other handler error would arrive.
type InternalError struct{ Cause any }

func (e *InternalError) Error() string {
	return fmt.Sprintf("gateway: internal error: %v", e.Cause)
}

// Gateway is a named-method dispatcher over the gateway's running
// collaborators: the agent registry, message router, delivery queue,
// scheduler, session store, and memory store.
type Gateway struct {
	Registry  *registry.Registry
	Router    *router.Router
	Queue     *queue.Queue
	Scheduler *scheduler.Scheduler
	Sessions  *session.Store
	Memory    *memory.Store
	Lane      *lane.Manager
	Notify    *notify.Notifier
	Logger    *zap.Logger

	handlers map[string]Handler
}

// Config supplies a Gateway's collaborators.
type Config struct {
	Registry  *registry.Registry
	Router    *router.Router
	Queue     *queue.Queue
	Scheduler *scheduler.Scheduler
	Sessions  *session.Store
	Memory    *memory.Store
	Notify    *notify.Notifier
	LaneMode  lane.Mode
	Logger    *zap.Logger
}

// New builds a Gateway with its default method set already registered. The
// send_message method is routed through a lane.Manager so concurrent
// messages for the same session are serialized per cfg.LaneMode.
func New(cfg Config) *Gateway {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &Gateway{
		Registry:  cfg.Registry,
		Router:    cfg.Router,
		Queue:     cfg.Queue,
		Scheduler: cfg.Scheduler,
		Sessions:  cfg.Sessions,
		Memory:    cfg.Memory,
		Notify:    cfg.Notify,
		Logger:    logger,
		handlers:  make(map[string]Handler),
	}

	laneMode := cfg.LaneMode
	if laneMode == "" {
		laneMode = lane.ModeFollowup
	}
	g.Lane = lane.NewManager(lane.ManagerConfig{
		DefaultMode: laneMode,
		Handler:     g.handleChat,
		Logger:      logger,
	})

	g.registerDefaults()
	return g
}

// Stop shuts down the gateway's lane manager.
func (g *Gateway) Stop() {
	if g.Lane != nil {
		g.Lane.Stop()
	}
}

// Register adds or replaces the handler for a method name.
func (g *Gateway) Register(name string, h Handler) {
	g.handlers[name] = h
}

// Dispatch looks up and invokes a method by name. A panic inside a handler
// is recovered and reported as an InternalError rather than crashing the
// caller.
func (g *Gateway) Dispatch(ctx context.Context, method string, params map[string]any) (result any, err error) {
	h, ok := g.handlers[method]
	if !ok {
		return nil, &MethodNotFoundError{Method: method}
	}

	defer func() {
		if r := recover(); r != nil {
			g.Logger.Error("gateway: handler panicked", zap.String("method", method), zap.Any("recover", r))
			err = &InternalError{Cause: r}
		}
	}()

	return h(ctx, params)
}

func (g *Gateway) registerDefaults() {
	g.Register("send_message", g.sendMessage)
	g.Register("queue_message", g.queueMessage)
	g.Register("queue_stats", g.queueStats)
	g.Register("list_dead_letters", g.listDeadLetters)
	g.Register("retry_dead_letter", g.retryDeadLetter)
	g.Register("schedule_at", g.scheduleAt)
	g.Register("schedule_every", g.scheduleEvery)
	g.Register("schedule_cron", g.scheduleCron)
	g.Register("list_jobs", g.listJobs)
	g.Register("delete_job", g.deleteJob)
	g.Register("toggle_job", g.toggleJob)
	g.Register("create_binding", g.createBinding)
	g.Register("list_bindings", g.listBindings)
	g.Register("delete_binding", g.deleteBinding)
	g.Register("list_sessions", g.listSessions)
	g.Register("create_session", g.createSession)
	g.Register("get_history", g.getHistory)
	g.Register("get_soul", g.getSoul)
	g.Register("update_soul", g.updateSoul)
	g.Register("search_memories", g.searchMemories)
}

// handleChat is the lane.Manager's ChatHandler: it resolves the target
// agent (explicit RoleID, or via the router from channel+peer) and runs
// one turn of that agent's loop.
func (g *Gateway) handleChat(ctx context.Context, req lane.ChatRequest) lane.ChatResult {
	agentID := req.RoleID
	sessionKey := req.SessionKey
	if agentID == "" && g.Router != nil {
		res := g.Router.Resolve(req.Channel, req.ChatID)
		agentID = res.AgentID
		if sessionKey == "" {
			sessionKey = res.SessionKey
		}
	}
	if sessionKey == "" {
		sessionKey = req.Channel + ":" + req.ChatID
	}

	text, err := g.Registry.Run(ctx, agentID, sessionKey, req.Content)
	if err != nil {
		return lane.ChatResult{AgentID: agentID, Error: err.Error()}
	}
	return lane.ChatResult{AgentID: agentID, Content: text}
}
