package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 18790,
		},
		Telegram: TelegramConfig{
			Mode:              "webhook",
			MediaMaxBytes:     20 * 1024 * 1024,
			STTTimeoutSeconds: 30,
		},
		Providers: ProvidersConfig{
			Classifier:   ProviderRole{Provider: "anthropic", Model: "claude-haiku-4-5-20251001"},
			Executor:     ProviderRole{Provider: "anthropic", Model: "claude-sonnet-4-5-20250929"},
			RateLimitRPS: 2,
		},
		Database: DatabaseConfig{
			MaxOpenConn: 10,
			MaxIdleConn: 5,
		},
		Budget: BudgetConfig{
			DailyTokenLimit: 1_000_000,
			WarnThreshold:   0.8,
			HardThreshold:   0.95,
		},
		Proactive: ProactiveConfig{
			MinIntervalSeconds: 60,
			MaxIntervalSeconds: 1800,
			DigestCronExpr:     "0 9 * * *",
		},
		Media: MediaConfig{
			PollIntervalMs: 5000,
		},
		Storage: StorageConfig{
			Driver: "local",
			Local:  LocalConfig{BaseDir: "~/.goclaw/storage"},
		},
		Approval: ApprovalConfig{
			TimeoutSeconds: 3600,
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "goclaw",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config. Env vars take
// precedence over file values and are the only source for secrets.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("GOCLAW_WEBHOOK_SECRET", &c.Gateway.WebhookSecret)
	envStr("GOCLAW_HOST", &c.Gateway.Host)
	if v := os.Getenv("GOCLAW_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Gateway.Port = port
		}
	}
	if v := os.Getenv("GOCLAW_OPERATOR_CHAT_IDS"); v != "" {
		c.Gateway.OperatorChatID = splitCSV(v)
	}

	envStr("GOCLAW_TELEGRAM_TOKEN", &c.Telegram.Token)
	envStr("GOCLAW_TELEGRAM_STT_API_KEY", &c.Telegram.STTAPIKey)

	envStr("GOCLAW_ANTHROPIC_API_KEY", &c.Providers.Anthropic.APIKey)
	envStr("GOCLAW_ANTHROPIC_BASE_URL", &c.Providers.Anthropic.APIBase)
	envStr("GOCLAW_OPENAI_API_KEY", &c.Providers.OpenAI.APIKey)
	envStr("GOCLAW_OPENAI_BASE_URL", &c.Providers.OpenAI.APIBase)
	envStr("GOCLAW_OPENROUTER_API_KEY", &c.Providers.OpenRouter.APIKey)
	envStr("GOCLAW_GEMINI_API_KEY", &c.Providers.Gemini.APIKey)
	envStr("GOCLAW_GROQ_API_KEY", &c.Providers.Groq.APIKey)
	envStr("GOCLAW_DEEPSEEK_API_KEY", &c.Providers.DeepSeek.APIKey)
	envStr("GOCLAW_MISTRAL_API_KEY", &c.Providers.Mistral.APIKey)
	envStr("GOCLAW_XAI_API_KEY", &c.Providers.XAI.APIKey)
	envStr("GOCLAW_DASHSCOPE_API_KEY", &c.Providers.DashScope.APIKey)

	envStr("GOCLAW_POSTGRES_DSN", &c.Database.PostgresDSN)

	envStr("GOCLAW_MEDIA_STT_API_KEY", &c.Media.SpeechToText.APIKey)
	envStr("GOCLAW_MEDIA_VISION_API_KEY", &c.Media.Vision.APIKey)
	envStr("GOCLAW_MEDIA_DOCUMENT_API_KEY", &c.Media.DocumentExtraction.APIKey)

	envStr("GOCLAW_S3_ACCESS_KEY_ID", &c.Storage.S3.AccessKeyID)
	envStr("GOCLAW_S3_SECRET_ACCESS_KEY", &c.Storage.S3.SecretAccessKey)

	envStr("GOCLAW_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("GOCLAW_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("GOCLAW_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("GOCLAW_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("GOCLAW_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}

	if v := os.Getenv("GOCLAW_DAILY_TOKEN_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Budget.DailyTokenLimit = n
		}
	}
}

func splitCSV(v string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			if i > start {
				out = append(out, v[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// ApplyEnvOverrides re-applies environment variable overrides onto the
// config. Call after a hot-reload swap to restore runtime secrets that
// config.json never carries.
func (c *Config) ApplyEnvOverrides() {
	c.applyEnvOverrides()
}

// Save writes the config to a JSON file.
func Save(path string, cfg *Config) error {
	snap := cfg.Snapshot()

	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Hash returns a SHA-256 hash of the config for optimistic concurrency.
func (c *Config) Hash() string {
	snap := c.Snapshot()
	data, _ := json.Marshal(&snap)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}

// ExpandHome replaces leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
