package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nanogate/nanogate/internal/backend"
	"github.com/nanogate/nanogate/internal/bus"
	"github.com/nanogate/nanogate/internal/channels"
	"github.com/nanogate/nanogate/internal/cluster"
	"github.com/nanogate/nanogate/internal/config"
	"github.com/nanogate/nanogate/internal/gateway"
	"github.com/nanogate/nanogate/internal/lane"
	"github.com/nanogate/nanogate/internal/logging"
	"github.com/nanogate/nanogate/internal/memory"
	"github.com/nanogate/nanogate/internal/notify"
	"github.com/nanogate/nanogate/internal/queue"
	"github.com/nanogate/nanogate/internal/registry"
	"github.com/nanogate/nanogate/internal/router"
	"github.com/nanogate/nanogate/internal/scheduler"
	"github.com/nanogate/nanogate/internal/session"
	"github.com/nanogate/nanogate/internal/tools"
)

// app bundles every collaborator a subcommand needs, all built from one
// loaded config.Config.
type app struct {
	Config    config.Config
	Logger    *zap.Logger
	Sessions  *session.Store
	Memory    *memory.Store
	Router    *router.Router
	Scheduler *scheduler.Scheduler
	Queue     *queue.Queue
	Registry  *registry.Registry
	Channels  *channels.Manager
	Notify    *notify.Notifier
	Pool      *cluster.Pool
	Gateway   *gateway.Gateway
}

// loadConfig loads config.yaml from the --config flag or the default path.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// bootstrap wires every collaborator described in the filesystem layout and
// gateway method surface from a single loaded config. Closing app.Queue is
// the caller's responsibility.
func bootstrap(cfg config.Config) (*app, error) {
	logger, err := logging.New(logging.Config{Debug: cfg.Logging.Debug, JSON: cfg.Logging.JSON})
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	workspace, err := cfg.ResolveWorkspace()
	if err != nil {
		return nil, fmt.Errorf("resolving workspace: %w", err)
	}

	sessionsDir, err := cfg.WorkspacePath(".sessions")
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewStore(sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	memPath, err := cfg.WorkspacePath(".memory", "memories.jsonl")
	if err != nil {
		return nil, err
	}
	mem, err := memory.New(memPath)
	if err != nil {
		return nil, fmt.Errorf("opening memory store: %w", err)
	}

	bindingsPath, err := cfg.WorkspacePath(".routing", "bindings.json")
	if err != nil {
		return nil, err
	}
	rt, err := router.New(bindingsPath, "default")
	if err != nil {
		return nil, fmt.Errorf("opening router: %w", err)
	}

	jobsPath, err := cfg.WorkspacePath(".scheduler", "jobs.jsonl")
	if err != nil {
		return nil, err
	}
	sched, err := scheduler.New(jobsPath)
	if err != nil {
		return nil, fmt.Errorf("opening scheduler: %w", err)
	}

	queuePath, err := cfg.WorkspacePath(".queue", "delivery.db")
	if err != nil {
		return nil, err
	}
	q, err := queue.Open(queuePath)
	if err != nil {
		return nil, fmt.Errorf("opening delivery queue: %w", err)
	}

	toolRegistry := buildTools(cfg, workspace, sched, q)

	client := backend.NewHTTPClient(cfg.ResolveAPIKey(), cfg.Backend.BaseURL, cfg.Backend.Model)

	soulsDir, err := cfg.WorkspacePath(".souls")
	if err != nil {
		return nil, err
	}
	reg := registry.New(registry.Config{
		Backend:      client,
		Sessions:     sessions,
		Memory:       mem,
		Tools:        toolRegistry,
		SoulsDir:     soulsDir,
		DefaultModel: cfg.Backend.Model,
	})

	agentsPath, err := cfg.WorkspacePath(cfg.AgentsFile)
	if err != nil {
		return nil, err
	}
	specs, err := registry.LoadAgentSpecs(agentsPath)
	if err != nil {
		return nil, fmt.Errorf("loading agents.yaml: %w", err)
	}
	if len(specs) == 0 {
		specs = []registry.AgentSpec{{ID: "default", Description: "Default agent", IsDefault: true}}
	}
	for _, spec := range specs {
		if err := reg.Register(spec); err != nil {
			return nil, fmt.Errorf("registering agent %q: %w", spec.ID, err)
		}
	}

	chMgr := buildChannels(cfg, logger)

	notifier := notify.New(notify.Config{URL: cfg.Notify.URL, Password: cfg.Notify.Password, DB: cfg.Notify.DB}, logger)

	pool := cluster.NewPool(cfg.Gateway.NodeID)
	if len(cfg.Gateway.ClusterMembers) > 0 {
		pool.SetMembers(cfg.Gateway.ClusterMembers)
	}

	gw := gateway.New(gateway.Config{
		Registry:  reg,
		Router:    rt,
		Queue:     q,
		Scheduler: sched,
		Sessions:  sessions,
		Memory:    mem,
		Notify:    notifier,
		LaneMode:  lane.Mode(cfg.Gateway.LaneMode),
		Logger:    logger,
	})

	return &app{
		Config:    cfg,
		Logger:    logger,
		Sessions:  sessions,
		Memory:    mem,
		Router:    rt,
		Scheduler: sched,
		Queue:     q,
		Registry:  reg,
		Channels:  chMgr,
		Notify:    notifier,
		Pool:      pool,
		Gateway:   gw,
	}, nil
}

// buildTools assembles the shared tool registry every agent draws on:
// filesystem tools restricted to the workspace, shell exec, outbound
// messaging via the delivery queue, and cron scheduling.
func buildTools(cfg config.Config, workspace string, sched *scheduler.Scheduler, q *queue.Queue) *tools.Registry {
	reg := tools.NewRegistry()
	reg.Register(&tools.ReadFileTool{AllowedDir: workspace})
	reg.Register(&tools.WriteFileTool{AllowedDir: workspace})
	reg.Register(&tools.EditFileTool{AllowedDir: workspace})
	reg.Register(&tools.ListDirTool{AllowedDir: workspace})
	reg.Register(tools.NewExecTool())
	reg.Register(&tools.MessageTool{
		EnqueueCallback: func(msg bus.OutboundMessage) (string, error) {
			return q.Enqueue(context.Background(), queueParamsFromOutbound(msg))
		},
	})
	reg.Register(&tools.CronTool{
		Scheduler: &scheduler.AgentCallback{Scheduler: sched, AgentID: "default"},
	})
	return reg
}

// buildQueueWorker wires the delivery queue to the channel manager's Send,
// using the notify channel for wake-ups and the cluster pool to decide
// message ownership when more than one node shares the queue.
func buildQueueWorker(a *app) *queue.Worker {
	send := a.Channels.SendCallback()
	return &queue.Worker{
		Queue:  a.Queue,
		Logger: a.Logger,
		Limit:  a.Config.Gateway.QueuePollLimit,
		Send: func(ctx context.Context, m queue.Message) error {
			return send(m.Channel, m.Recipient, m.Content, m.ThreadID)
		},
		Notifier: a.Notify,
		Owner:    a.Pool,
	}
}

// formatJobTime renders a job's *time.Time as RFC3339, or "-" when nil (an
// every/cron job that hasn't computed its next run, or a job with none left).
func formatJobTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func queueParamsFromOutbound(msg bus.OutboundMessage) queue.EnqueueParams {
	return queue.EnqueueParams{
		Channel:   msg.Channel,
		Recipient: msg.Peer,
		Content:   msg.Text,
		ThreadID:  msg.ThreadID,
	}
}

// buildChannels registers every channel enabled in config.
func buildChannels(cfg config.Config, logger *zap.Logger) *channels.Manager {
	mgr := channels.NewManager(logger)
	maxLen := cfg.Channels.MaxTextLength
	if maxLen <= 0 {
		maxLen = 4000
	}

	if tg := cfg.Channels.Telegram; tg.Enabled && tg.Token != "" {
		mgr.Register(channels.NewTelegramChannel(tg.Token, tg.AllowFrom, maxLen, logger))
	}
	if fs := cfg.Channels.Feishu; fs.Enabled && fs.AppID != "" {
		mgr.Register(channels.NewFeishuChannel(fs.AppID, fs.AppSecret, fs.AllowFrom, maxLen, logger))
	}
	if sl := cfg.Channels.Slack; sl.Enabled && sl.BotToken != "" {
		ch, err := channels.NewSlackChannel(context.Background(), sl.BotToken, sl.AllowFrom, maxLen, logger)
		if err == nil {
			mgr.Register(ch)
		} else {
			logger.Warn("slack channel disabled", zap.Error(err))
		}
	}
	if wa := cfg.Channels.WhatsApp; wa.Enabled && wa.BridgeURL != "" {
		mgr.Register(channels.NewWhatsAppChannel(wa.BridgeURL, wa.AllowFrom, maxLen, logger))
	}
	if fc := cfg.Channels.File; fc.Enabled {
		dir := fc.Dir
		if dir == "" {
			dir = ".channels"
		}
		if ch, err := channels.NewFileChannel(dir, maxLen, logger); err == nil {
			mgr.Register(ch)
		} else {
			logger.Warn("file channel disabled", zap.Error(err))
		}
	}
	return mgr
}
