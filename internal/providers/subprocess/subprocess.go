// Package subprocess adapts an external CLI to the providers.Provider
// interface: the prompt (and tool schema) is written to the child's stdin as
// JSON, and the child is expected to print one JSON object on stdout with
// {text, tool_calls, usage}. This lets an operator plug in a locally-running
// model runner or a wrapped vendor CLI without a bespoke HTTP client.
package subprocess

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/providers"
)

// Provider invokes a configured command for every Chat call. It does not
// support streaming; ChatStream runs Chat and delivers the whole response as
// a single chunk.
type Provider struct {
	command string
	args    []string
	timeout time.Duration
}

// New builds a subprocess Provider from config. Command must be set.
func New(cfg config.SubprocessProviderConfig) (*Provider, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("subprocess provider: command is required")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Provider{command: cfg.Command, args: cfg.Args, timeout: timeout}, nil
}

func (p *Provider) Name() string          { return "subprocess" }
func (p *Provider) DefaultModel() string  { return p.command }

// wireRequest/wireResponse mirror the contract documented for the external
// CLI: minimal JSON in, minimal JSON out.
type wireRequest struct {
	Messages []providers.Message        `json:"messages"`
	Tools    []providers.ToolDefinition `json:"tools,omitempty"`
	Model    string                     `json:"model,omitempty"`
}

type wireResponse struct {
	Text         string                 `json:"text"`
	ToolCalls    []providers.ToolCall   `json:"tool_calls,omitempty"`
	FinishReason string                 `json:"finish_reason,omitempty"`
	Usage        *providers.Usage       `json:"usage,omitempty"`
	Error        string                 `json:"error,omitempty"`
	RateLimited  bool                   `json:"rate_limited,omitempty"`
	ResetAt      *time.Time             `json:"reset_at,omitempty"`
}

func (p *Provider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	input, err := json.Marshal(wireRequest{Messages: req.Messages, Tools: req.Tools, Model: req.Model})
	if err != nil {
		return nil, fmt.Errorf("subprocess: marshal request: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, p.command, p.args...)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("subprocess: %s: %w (stderr: %s)", p.command, err, stderr.String())
	}

	var resp wireResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("subprocess: decode response: %w", err)
	}

	if resp.RateLimited {
		return nil, &providers.RateLimitError{ResetAt: resp.ResetAt}
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("subprocess: %s", resp.Error)
	}

	finish := resp.FinishReason
	if finish == "" {
		finish = "stop"
		if len(resp.ToolCalls) > 0 {
			finish = "tool_calls"
		}
	}

	return &providers.ChatResponse{
		Content:      resp.Text,
		ToolCalls:    resp.ToolCalls,
		FinishReason: finish,
		Usage:        resp.Usage,
	}, nil
}

// ChatStream has no incremental output from the child process; it runs Chat
// to completion and replays the result as a single chunk.
func (p *Provider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	resp, err := p.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	if onChunk != nil {
		if resp.Content != "" {
			onChunk(providers.StreamChunk{Content: resp.Content})
		}
		onChunk(providers.StreamChunk{Done: true})
	}
	return resp, nil
}

var _ providers.Provider = (*Provider)(nil)
