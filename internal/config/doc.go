// Package config loads the operator-facing configuration for a nanogate
// deployment: backend credentials, the workspace root, gateway polling
// intervals, per-channel adapter settings, and the notify wake-up backend.
// It reads config.yaml plus the sibling agents.yaml consumed directly by
// internal/registry, leaving every internal per-component state file
// (.sessions/, .routing/, .scheduler/, .queue/, .memory/, .souls/) to its
// own package's own persistence rather than routing it through here.
package config

import "time"

// Environment defaults for the backend, per the operating contract: model
// deepseek-chat, base URL https://api.deepseek.com/v1, workspace resolved
// against the current directory.
const (
	DefaultModel     = "deepseek-chat"
	DefaultBaseURL   = "https://api.deepseek.com/v1"
	DefaultWorkspace = "workspace"
	DefaultAPIKeyEnv = "NANOGATE_API_KEY"
)

// BackendConfig configures the OpenAI-compatible chat-completions client
// shared across every registered agent.
type BackendConfig struct {
	APIKey    string `yaml:"api_key,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
	Model     string `yaml:"model,omitempty"`
	MaxTokens int    `yaml:"max_tokens,omitempty"`
}

// GatewayConfig configures the process's own activities: how many messages
// the delivery worker takes per poll, which lane mode send_message defaults
// to, and how long shutdown waits. SchedulerInterval, QueuePollInterval and
// QueueErrorBackoff are loaded but not read by the gateway: the scheduler
// driver and the delivery worker run on fixed tick intervals of their own.
type GatewayConfig struct {
	SchedulerInterval time.Duration `yaml:"scheduler_interval,omitempty"`
	QueuePollInterval time.Duration `yaml:"queue_poll_interval,omitempty"`
	QueuePollLimit    int           `yaml:"queue_poll_limit,omitempty"`
	QueueErrorBackoff time.Duration `yaml:"queue_error_backoff,omitempty"`
	LaneMode          string        `yaml:"lane_mode,omitempty"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout,omitempty"`
	NodeID            string        `yaml:"node_id,omitempty"`
	ClusterMembers    []string      `yaml:"cluster_members,omitempty"`
}

// TelegramConfig configures the Telegram bot-API channel adapter.
type TelegramConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Token     string   `yaml:"token,omitempty"`
	AllowFrom []string `yaml:"allow_from,omitempty"`
}

// FeishuConfig configures the Feishu/Lark channel adapter.
type FeishuConfig struct {
	Enabled   bool     `yaml:"enabled"`
	AppID     string   `yaml:"app_id,omitempty"`
	AppSecret string   `yaml:"app_secret,omitempty"`
	AllowFrom []string `yaml:"allow_from,omitempty"`
}

// SlackConfig configures the Slack channel adapter.
type SlackConfig struct {
	Enabled   bool     `yaml:"enabled"`
	BotToken  string   `yaml:"bot_token,omitempty"`
	AllowFrom []string `yaml:"allow_from,omitempty"`
}

// WhatsAppConfig configures the WhatsApp bridge channel adapter.
type WhatsAppConfig struct {
	Enabled   bool     `yaml:"enabled"`
	BridgeURL string   `yaml:"bridge_url,omitempty"`
	AllowFrom []string `yaml:"allow_from,omitempty"`
}

// FileChannelConfig configures the filesystem-backed channel used for local
// testing and development (file_inbox.txt / file_outbox.txt under
// .channels/).
type FileChannelConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir,omitempty"`
}

// ChannelsConfig groups every channel adapter's settings plus the shared
// truncation limit applied to outbound text.
type ChannelsConfig struct {
	MaxTextLength int               `yaml:"max_text_length,omitempty"`
	Telegram      TelegramConfig    `yaml:"telegram,omitempty"`
	Feishu        FeishuConfig      `yaml:"feishu,omitempty"`
	Slack         SlackConfig       `yaml:"slack,omitempty"`
	WhatsApp      WhatsAppConfig    `yaml:"whatsapp,omitempty"`
	File          FileChannelConfig `yaml:"file,omitempty"`

	// WebhookAddr is the listen address for the HTTP server mounting
	// webhook-based channels (Feishu, Slack). Left blank, the server is
	// only started if a webhook channel is enabled, defaulting to ":9000".
	WebhookAddr string `yaml:"webhook_addr,omitempty"`
}

// NotifyConfig configures the delivery-queue wake-up channel. Left blank,
// the queue worker falls back to plain poll-interval sleeping.
type NotifyConfig struct {
	URL      string `yaml:"url,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// LoggingConfig configures internal/logging's zap setup.
type LoggingConfig struct {
	Debug bool `yaml:"debug,omitempty"`
	JSON  bool `yaml:"json,omitempty"`
}

// Config is the top-level config.yaml schema.
type Config struct {
	WorkspaceDir string `yaml:"workspace_dir,omitempty"`
	SoulsDir     string `yaml:"souls_dir,omitempty"`
	AgentsFile   string `yaml:"agents_file,omitempty"`

	Backend  BackendConfig  `yaml:"backend,omitempty"`
	Gateway  GatewayConfig  `yaml:"gateway,omitempty"`
	Channels ChannelsConfig `yaml:"channels,omitempty"`
	Notify   NotifyConfig   `yaml:"notify,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// DefaultConfig returns a Config populated with the operating defaults.
// WorkspaceDir is left relative ("workspace"); callers resolve it against
// the current directory when actually opening the filesystem layout.
func DefaultConfig() Config {
	return Config{
		WorkspaceDir: DefaultWorkspace,
		SoulsDir:     "souls",
		AgentsFile:   "agents.yaml",
		Backend: BackendConfig{
			APIKeyEnv: DefaultAPIKeyEnv,
			BaseURL:   DefaultBaseURL,
			Model:     DefaultModel,
			MaxTokens: 4096,
		},
		Gateway: GatewayConfig{
			SchedulerInterval: 10 * time.Second,
			QueuePollInterval: time.Second,
			QueuePollLimit:    10,
			QueueErrorBackoff: 5 * time.Second,
			LaneMode:          "followup",
			ShutdownTimeout:   5 * time.Second,
			NodeID:            "node-1",
		},
		Channels: ChannelsConfig{
			MaxTextLength: 4000,
			File:          FileChannelConfig{Enabled: true, Dir: ".channels"},
		},
	}
}
