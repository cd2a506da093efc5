package ai

import (
	"context"
	"fmt"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/alertops/alertops/internal/config"
)

const (
	defaultMCPServer = "ai"
	defaultMCPTool   = "generate_text"
)

// ToolCaller is the slice of the tool invocation engine this provider needs
type ToolCaller interface {
	CallTool(ctx context.Context, serverName, toolName string, args map[string]interface{}, allowRetry bool) (*mcpgo.CallToolResult, error)
}

// MCPProvider generates text by invoking a generation tool on a remote MCP
// server through the tool invocation engine. Retry, timeout and mutual
// exclusion semantics are the engine's.
type MCPProvider struct {
	caller ToolCaller
	server string
	tool   string
	logger *zap.Logger
}

// NewMCPProvider creates the provider; server and tool names default to
// "ai" and "generate_text"
func NewMCPProvider(cfg *config.AIConfig, caller ToolCaller, logger *zap.Logger) *MCPProvider {
	p := &MCPProvider{
		caller: caller,
		server: cfg.MCPServer,
		tool:   cfg.MCPTool,
		logger: logger,
	}
	if p.server == "" {
		p.server = defaultMCPServer
	}
	if p.tool == "" {
		p.tool = defaultMCPTool
	}

	logger.Info("Initialized mcp ai provider", zap.String("server", p.server))
	return p
}

// Generate invokes the generation tool and concatenates its text content
func (p *MCPProvider) Generate(ctx context.Context, prompt, systemPrompt string, opts ...GenerateOption) (string, error) {
	o := applyOptions(opts)

	args := map[string]interface{}{
		"prompt":        prompt,
		"system_prompt": systemPrompt,
	}
	if o.model != "" {
		args["model"] = o.model
	}
	if o.temperature != nil {
		args["temperature"] = *o.temperature
	}
	if o.maxTokens != nil {
		args["max_tokens"] = *o.maxTokens
	}

	result, err := p.caller.CallTool(ctx, p.server, p.tool, args, true)
	if err != nil {
		return "", fmt.Errorf("ai generation via mcp failed: %w", err)
	}

	text := textFromResult(result)
	if text == "" {
		return "", fmt.Errorf("mcp server %q returned no text content", p.server)
	}
	return text, nil
}

func textFromResult(result *mcpgo.CallToolResult) string {
	if result == nil {
		return ""
	}
	var parts []string
	for _, content := range result.Content {
		if textContent, ok := mcpgo.AsTextContent(content); ok {
			parts = append(parts, textContent.Text)
		}
	}
	return strings.Join(parts, "\n")
}
