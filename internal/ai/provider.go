// Package ai abstracts text generation behind a single Provider interface so
// plugins can summarize alerts without caring which backend produces the
// text. Two backends exist: the GitHub Models chat completions API and a
// remote tool server exposing a generation tool.
package ai

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/alertops/alertops/internal/config"
)

// Generation failures callers may want to branch on
var (
	ErrRateLimited  = errors.New("ai rate limit exceeded")
	ErrUnauthorized = errors.New("ai authentication failed")
)

// GenerateOption overrides per-call generation parameters
type GenerateOption func(*generateOptions)

type generateOptions struct {
	model       string
	temperature *float64
	maxTokens   *int
}

// WithModel overrides the configured model for one call
func WithModel(model string) GenerateOption {
	return func(o *generateOptions) { o.model = model }
}

// WithTemperature overrides the sampling temperature for one call
func WithTemperature(temperature float64) GenerateOption {
	return func(o *generateOptions) { o.temperature = &temperature }
}

// WithMaxTokens overrides the completion budget for one call
func WithMaxTokens(maxTokens int) GenerateOption {
	return func(o *generateOptions) { o.maxTokens = &maxTokens }
}

func applyOptions(opts []GenerateOption) generateOptions {
	var o generateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Provider generates text from a user prompt and a system prompt
type Provider interface {
	Generate(ctx context.Context, prompt, systemPrompt string, opts ...GenerateOption) (string, error)
}

// New builds the provider selected by configuration. The caller parameter
// is only required for the "mcp" provider.
func New(cfg *config.AIConfig, caller ToolCaller, logger *zap.Logger) (Provider, error) {
	switch cfg.Provider {
	case "", "github_models":
		return NewGitHubModels(cfg, logger)
	case "mcp":
		if caller == nil {
			return nil, fmt.Errorf("mcp ai provider requires a tool invocation engine")
		}
		return NewMCPProvider(cfg, caller, logger), nil
	default:
		return nil, fmt.Errorf("unsupported ai provider: %q", cfg.Provider)
	}
}
