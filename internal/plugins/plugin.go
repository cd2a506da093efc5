// Package plugins contains the alert handler plugins behind the webhook
// endpoints. Each plugin consumes the full Alertmanager payload and returns
// a standard response; the HTTP layer always answers 200 so Alertmanager
// never retries on handler failures.
package plugins

import (
	"context"
	"fmt"
	"os"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/alertops/alertops/internal/ai"
	"github.com/alertops/alertops/internal/alerts"
	"github.com/alertops/alertops/internal/config"
	"github.com/alertops/alertops/internal/history"
)

// Plugin processes one webhook payload
type Plugin interface {
	Name() string
	Handle(ctx context.Context, payload *alerts.WebhookPayload) (*alerts.PluginResponse, error)
}

// ToolCaller is the slice of the tool invocation engine plugins need
type ToolCaller interface {
	CallTool(ctx context.Context, serverName, toolName string, args map[string]interface{}, allowRetry bool) (*mcpgo.CallToolResult, error)
}

// Deps carries the shared services plugins may depend on. Plugins declare
// what they need in their constructors; Load wires them up.
type Deps struct {
	Logger  *zap.Logger
	AI      ai.Provider
	Tools   ToolCaller
	History *history.Store
}

// Load instantiates the plugins named in configuration. The plugin set is
// closed; an unknown name is a configuration error.
func Load(cfg *config.Config, deps Deps) (map[string]Plugin, error) {
	loaded := make(map[string]Plugin)

	for _, name := range cfg.Plugins.Enabled {
		if _, exists := loaded[name]; exists {
			return nil, fmt.Errorf("plugin %q enabled twice", name)
		}

		switch name {
		case "logger":
			loaded[name] = NewLogger(deps.Logger)
		case "dump":
			loaded[name] = NewDump(os.Stdout)
		case "recall":
			if deps.History == nil {
				return nil, fmt.Errorf("recall plugin requires a history store")
			}
			loaded[name] = NewRecall(cfg.Plugins.Recall, deps.History, deps.Logger)
		case "jira":
			if deps.Tools == nil {
				return nil, fmt.Errorf("jira plugin requires a tool invocation engine")
			}
			loaded[name] = NewJira(cfg.Plugins.Jira, deps.AI, deps.Tools, deps.Logger)
		default:
			return nil, fmt.Errorf("unknown plugin: %q", name)
		}

		deps.Logger.Info("Loaded plugin", zap.String("plugin", name))
	}

	return loaded, nil
}
