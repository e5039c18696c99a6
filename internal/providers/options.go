package providers

// Option keys recognized in ChatRequest.Options. Providers translate the
// keys they support into their own wire format and ignore the rest.
const (
	OptMaxTokens       = "max_tokens"
	OptTemperature     = "temperature"
	OptThinkingLevel   = "thinking_level" // "off", "low", "medium", "high"
	OptReasoningEffort = "reasoning_effort"
	OptEnableThinking  = "enable_thinking"  // DashScope passthrough
	OptThinkingBudget  = "thinking_budget" // DashScope passthrough
)
