package providers

import (
	"fmt"

	"github.com/nextlevelbuilder/goclaw/internal/config"
)

// Registry resolves the three provider roles (classifier, executor,
// verifier) to concrete Provider instances, per spec §4.6. Verifier falls
// back to the classifier binding when left unconfigured.
type Registry struct {
	Classifier Provider
	Executor   Provider
	Verifier   Provider
}

// NewRegistry builds a Registry from the providers section of config.
func NewRegistry(cfg config.ProvidersConfig) (*Registry, error) {
	classifier, err := build(cfg, cfg.Classifier)
	if err != nil {
		return nil, fmt.Errorf("classifier provider: %w", err)
	}
	executor, err := build(cfg, cfg.Executor)
	if err != nil {
		return nil, fmt.Errorf("executor provider: %w", err)
	}

	verifier := classifier
	if cfg.Verifier.Provider != "" {
		verifier, err = build(cfg, cfg.Verifier)
		if err != nil {
			return nil, fmt.Errorf("verifier provider: %w", err)
		}
	}

	return &Registry{
		Classifier: withRateLimit(classifier, cfg.RateLimitRPS),
		Executor:   withRateLimit(executor, cfg.RateLimitRPS),
		Verifier:   withRateLimit(verifier, cfg.RateLimitRPS),
	}, nil
}

func build(cfg config.ProvidersConfig, role config.ProviderRole) (Provider, error) {
	switch role.Provider {
	case "anthropic":
		if cfg.Anthropic.APIKey == "" {
			return nil, fmt.Errorf("provider %q requires providers.anthropic credentials", role.Provider)
		}
		var opts []AnthropicOption
		if role.Model != "" {
			opts = append(opts, WithAnthropicModel(role.Model))
		}
		if cfg.Anthropic.APIBase != "" {
			opts = append(opts, WithAnthropicBaseURL(cfg.Anthropic.APIBase))
		}
		return NewAnthropicProvider(cfg.Anthropic.APIKey, opts...), nil

	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("provider %q requires providers.openai credentials", role.Provider)
		}
		return NewOpenAIProvider("openai", cfg.OpenAI.APIKey, cfg.OpenAI.APIBase, role.Model), nil

	case "openrouter":
		if cfg.OpenRouter.APIKey == "" {
			return nil, fmt.Errorf("provider %q requires providers.openrouter credentials", role.Provider)
		}
		base := cfg.OpenRouter.APIBase
		if base == "" {
			base = "https://openrouter.ai/api/v1"
		}
		return NewOpenAIProvider("openrouter", cfg.OpenRouter.APIKey, base, role.Model), nil

	case "groq":
		if cfg.Groq.APIKey == "" {
			return nil, fmt.Errorf("provider %q requires providers.groq credentials", role.Provider)
		}
		base := cfg.Groq.APIBase
		if base == "" {
			base = "https://api.groq.com/openai/v1"
		}
		return NewOpenAIProvider("groq", cfg.Groq.APIKey, base, role.Model), nil

	case "deepseek":
		if cfg.DeepSeek.APIKey == "" {
			return nil, fmt.Errorf("provider %q requires providers.deepseek credentials", role.Provider)
		}
		base := cfg.DeepSeek.APIBase
		if base == "" {
			base = "https://api.deepseek.com/v1"
		}
		return NewOpenAIProvider("deepseek", cfg.DeepSeek.APIKey, base, role.Model), nil

	case "mistral":
		if cfg.Mistral.APIKey == "" {
			return nil, fmt.Errorf("provider %q requires providers.mistral credentials", role.Provider)
		}
		base := cfg.Mistral.APIBase
		if base == "" {
			base = "https://api.mistral.ai/v1"
		}
		return NewOpenAIProvider("mistral", cfg.Mistral.APIKey, base, role.Model), nil

	case "xai":
		if cfg.XAI.APIKey == "" {
			return nil, fmt.Errorf("provider %q requires providers.xai credentials", role.Provider)
		}
		base := cfg.XAI.APIBase
		if base == "" {
			base = "https://api.x.ai/v1"
		}
		return NewOpenAIProvider("xai", cfg.XAI.APIKey, base, role.Model), nil

	case "gemini":
		// Gemini is reached through its OpenAI-compatibility shim; the
		// "gemini" name prefix triggers the thought_signature handling in
		// buildRequestBody/collapseToolCallsWithoutSig.
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("provider %q requires providers.gemini credentials", role.Provider)
		}
		base := cfg.Gemini.APIBase
		if base == "" {
			base = "https://generativelanguage.googleapis.com/v1beta/openai"
		}
		return NewOpenAIProvider("gemini", cfg.Gemini.APIKey, base, role.Model), nil

	case "dashscope":
		if cfg.DashScope.APIKey == "" {
			return nil, fmt.Errorf("provider %q requires providers.dashscope credentials", role.Provider)
		}
		return NewDashScopeProvider(cfg.DashScope.APIKey, cfg.DashScope.APIBase, role.Model), nil

	case "subprocess":
		// The subprocess adapter lives in internal/providers/subprocess and
		// implements Provider without importing this package's registry (to
		// avoid an import cycle); the composition root wires it directly
		// and never reaches this branch in practice.
		return nil, fmt.Errorf("provider %q must be constructed by the caller, not the registry", role.Provider)

	default:
		return nil, fmt.Errorf("unknown provider %q", role.Provider)
	}
}
