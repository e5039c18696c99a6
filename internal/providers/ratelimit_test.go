package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls int
}

func (p *countingProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	p.calls++
	return &ChatResponse{Content: "ok"}, nil
}

func (p *countingProvider) ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) (*ChatResponse, error) {
	p.calls++
	return &ChatResponse{Content: "ok"}, nil
}

func (p *countingProvider) DefaultModel() string { return "test-model" }
func (p *countingProvider) Name() string         { return "test" }

func TestWithRateLimit_ZeroRPSPassesThrough(t *testing.T) {
	inner := &countingProvider{}
	wrapped := withRateLimit(inner, 0)
	assert.Same(t, Provider(inner), wrapped)
}

func TestWithRateLimit_ThrottlesBurst(t *testing.T) {
	inner := &countingProvider{}
	wrapped := withRateLimit(inner, 1) // 1 req/sec, burst 1

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := wrapped.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)

	_, err = wrapped.Chat(ctx, ChatRequest{})
	assert.Error(t, err, "second call within the same second should block past the short deadline")
	assert.Equal(t, 1, inner.calls)
}
