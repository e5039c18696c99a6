package config

import (
	"sync"
)

// Config is the root configuration for the goclaw gateway: a single
// always-on operator agent, not a multi-tenant hosting platform.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Telegram  TelegramConfig  `json:"telegram"`
	Providers ProvidersConfig `json:"providers"`
	Database  DatabaseConfig  `json:"database,omitempty"`
	Budget    BudgetConfig    `json:"budget,omitempty"`
	Reactive  ReactiveConfig  `json:"reactive,omitempty"`
	Proactive ProactiveConfig `json:"proactive,omitempty"`
	Tasks     TaskConfig      `json:"tasks,omitempty"`
	Media     MediaConfig     `json:"media,omitempty"`
	Storage   StorageConfig   `json:"storage,omitempty"`
	Approval  ApprovalConfig  `json:"approval,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`

	mu sync.RWMutex
}

// GatewayConfig configures the webhook/health/stats HTTP surface (C12).
type GatewayConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	WebhookSecret  string   `json:"-"` // from env GOCLAW_WEBHOOK_SECRET only
	OperatorChatID []string `json:"operator_chat_ids,omitempty"`
}

// DatabaseConfig configures Postgres. PostgresDSN is never read from
// config.json (secret) — only from env GOCLAW_POSTGRES_DSN.
type DatabaseConfig struct {
	PostgresDSN string `json:"-"`
	MaxOpenConn int    `json:"max_open_conn,omitempty"`
	MaxIdleConn int    `json:"max_idle_conn,omitempty"`
}

// BudgetConfig mirrors the proactive token budget (spec §4.11).
type BudgetConfig struct {
	DailyTokenLimit int     `json:"daily_token_limit,omitempty"`
	WarnThreshold   float64 `json:"warn_threshold,omitempty"` // default 0.8
	HardThreshold   float64 `json:"hard_threshold,omitempty"` // default 0.95
}

// ProactiveConfig mirrors the proactive scheduler's dynamic interval (spec §4.7).
type ProactiveConfig struct {
	MinIntervalSeconds int `json:"min_interval_seconds,omitempty"`
	MaxIntervalSeconds int `json:"max_interval_seconds,omitempty"`

	// DigestCronExpr schedules a periodic operator digest (recent cycle
	// summaries rolled up into one notification) independent of the
	// per-cycle interval. Standard 5-field cron syntax; defaults to once
	// daily at 09:00.
	DigestCronExpr string `json:"digest_cron_expr,omitempty"`
}

// ApprovalConfig configures the approval protocol (spec §4.4).
type ApprovalConfig struct {
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// TelemetryConfig configures OpenTelemetry export for traces.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty"`
	Protocol    string            `json:"protocol,omitempty"` // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`
	ServiceName string            `json:"service_name,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// ReplaceFrom copies all data fields from src into c, preserving c's mutex.
// Used by the fsnotify-driven hot-reload to swap config atomically.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Gateway = src.Gateway
	c.Telegram = src.Telegram
	c.Providers = src.Providers
	c.Database = src.Database
	c.Budget = src.Budget
	c.Reactive = src.Reactive
	c.Proactive = src.Proactive
	c.Tasks = src.Tasks
	c.Media = src.Media
	c.Storage = src.Storage
	c.Approval = src.Approval
	c.Telemetry = src.Telemetry
}

// Snapshot returns a copy of the config safe to read without holding the lock.
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := *c
	cp.mu = sync.RWMutex{}
	return cp
}
