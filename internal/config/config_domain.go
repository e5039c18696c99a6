package config

// TelegramConfig configures the single chat transport (spec §6.1/§6.2).
type TelegramConfig struct {
	Token  string `json:"-"` // from env GOCLAW_TELEGRAM_TOKEN only
	Proxy  string `json:"proxy,omitempty"`
	Mode   string `json:"mode,omitempty"` // "webhook" (default) or "polling"
	Stream bool   `json:"stream,omitempty"`

	// Media handling (internal/channels/telegram/media.go).
	MediaMaxBytes int64 `json:"media_max_bytes,omitempty"`

	// STT proxy (internal/channels/telegram/stt.go).
	STTProxyURL       string `json:"stt_proxy_url,omitempty"`
	STTAPIKey         string `json:"-"` // from env GOCLAW_TELEGRAM_STT_API_KEY only
	STTTenantID       string `json:"stt_tenant_id,omitempty"`
	STTTimeoutSeconds int    `json:"stt_timeout_seconds,omitempty"`
}

// ProviderRole names the three LLM roles spec §4.6/§6.4 binds to
// provider+model pairs: classifier, executor, verifier.
type ProviderRole struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

// ProvidersConfig binds the three provider roles plus per-provider API keys.
// Verifier defaults to the classifier binding when left empty (§4.6).
type ProvidersConfig struct {
	Classifier ProviderRole `json:"classifier"`
	Executor   ProviderRole `json:"executor"`
	Verifier   ProviderRole `json:"verifier,omitempty"`

	Anthropic  ProviderKeyConfig `json:"anthropic,omitempty"`
	OpenAI     ProviderKeyConfig `json:"openai,omitempty"`
	OpenRouter ProviderKeyConfig `json:"openrouter,omitempty"`
	Gemini     ProviderKeyConfig `json:"gemini,omitempty"`
	Groq       ProviderKeyConfig `json:"groq,omitempty"`
	DeepSeek   ProviderKeyConfig `json:"deepseek,omitempty"`
	Mistral    ProviderKeyConfig `json:"mistral,omitempty"`
	XAI        ProviderKeyConfig `json:"xai,omitempty"`
	DashScope  ProviderKeyConfig `json:"dashscope,omitempty"`

	// Subprocess adapter (internal/providers/subprocess): an external CLI
	// invoked as prompt-via-stdin, JSON-on-stdout, behind the Provider interface.
	Subprocess SubprocessProviderConfig `json:"subprocess,omitempty"`

	// RateLimitRPS bounds concurrent/sustained calls per provider role
	// (classifier/executor/verifier), per spec §5's "implicit semaphore"
	// language. Zero disables limiting for that role.
	RateLimitRPS float64 `json:"rate_limit_rps,omitempty"`
}

// ProviderKeyConfig holds one provider's credential and optional base URL
// override. APIKey is never read from config.json — env only.
type ProviderKeyConfig struct {
	APIKey  string `json:"-"`
	APIBase string `json:"api_base,omitempty"`
}

// SubprocessProviderConfig configures the CLI-backed provider adapter.
type SubprocessProviderConfig struct {
	Command        string   `json:"command,omitempty"`
	Args           []string `json:"args,omitempty"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
}

// HasAnyProvider reports whether at least one LLM provider has credentials.
func (p ProvidersConfig) HasAnyProvider() bool {
	return p.Anthropic.APIKey != "" || p.OpenAI.APIKey != "" || p.OpenRouter.APIKey != "" ||
		p.Gemini.APIKey != "" || p.Groq.APIKey != "" || p.DeepSeek.APIKey != "" ||
		p.Mistral.APIKey != "" || p.XAI.APIKey != "" || p.DashScope.APIKey != "" ||
		p.Subprocess.Command != ""
}

// ReactiveConfig configures the reactive worker's poll cadence and
// conversation-window size (spec §4.3).
type ReactiveConfig struct {
	MessageHistoryLimit int `json:"message_history_limit,omitempty"` // default 30
	PollIntervalMinMs   int `json:"poll_interval_min_ms,omitempty"`  // default 50
	PollIntervalMaxMs   int `json:"poll_interval_max_ms,omitempty"`  // default 200
}

// TaskConfig configures the Task/Goal Executor (spec §4.6).
type TaskConfig struct {
	AttemptTimeoutSeconds int `json:"attempt_timeout_seconds,omitempty"` // default 600
	PollIntervalMs        int `json:"poll_interval_ms,omitempty"`        // default 5000
}

// MediaConfig configures the three media-processing backends (spec §4.5).
type MediaConfig struct {
	SpeechToText       MediaBackendConfig `json:"speech_to_text,omitempty"`
	Vision             MediaBackendConfig `json:"vision,omitempty"`
	DocumentExtraction MediaBackendConfig `json:"document_extraction,omitempty"`
	PollIntervalMs     int                `json:"poll_interval_ms,omitempty"` // default 5000
}

// MediaBackendConfig configures one HTTP proxy media backend. Empty URL
// means "not configured" — the processor skips that kind silently.
type MediaBackendConfig struct {
	URL            string `json:"url,omitempty"`
	APIKey         string `json:"-"` // from env only, per-backend
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// StorageConfig selects and configures the artifact/blob store (spec §6.3).
type StorageConfig struct {
	Driver string      `json:"driver,omitempty"` // "s3" or "local" (default)
	Local  LocalConfig `json:"local,omitempty"`
	S3     S3Config    `json:"s3,omitempty"`
}

// LocalConfig configures the local filesystem storage driver.
type LocalConfig struct {
	BaseDir string `json:"base_dir,omitempty"`
}

// S3Config configures the S3-compatible storage driver.
type S3Config struct {
	Bucket          string `json:"bucket,omitempty"`
	Region          string `json:"region,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"` // non-empty for S3-compatible (non-AWS) backends
	AccessKeyID     string `json:"-"`                  // from env GOCLAW_S3_ACCESS_KEY_ID only
	SecretAccessKey string `json:"-"`                  // from env GOCLAW_S3_SECRET_ACCESS_KEY only
	ForcePathStyle  bool   `json:"force_path_style,omitempty"`
}
