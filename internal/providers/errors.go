package providers

import (
	"fmt"
	"time"
)

// RateLimitError distinguishes a provider's rate-limit response from other
// failures so callers (the reactive worker, the proactive scheduler) can
// back off instead of treating the call as a hard failure (spec §7).
type RateLimitError struct {
	ResetAt *time.Time // nil if the provider gave no reset hint
}

func (e *RateLimitError) Error() string {
	if e.ResetAt != nil {
		return fmt.Sprintf("rate limited until %s", e.ResetAt.Format(time.RFC3339))
	}
	return "rate limited"
}
