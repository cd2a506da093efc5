package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/alertops/alertops/internal/config"
)

// Transport is an opaque bidirectional channel to a remote tool server.
// The engine only needs connect, invoke and close; error classification
// happens in the engine, not here.
type Transport interface {
	Connect(ctx context.Context) error
	CallTool(ctx context.Context, toolName string, args map[string]interface{}) (*mcp.CallToolResult, error)
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	Close() error
}

// TransportFactory builds a transport for a server configuration.
// Injected into the engine so tests can substitute mocks.
type TransportFactory func(serverConfig *config.MCPServerConfig) Transport

// NewStreamableHTTPTransport returns the production factory backed by the
// mcp-go streamable HTTP client
func NewStreamableHTTPTransport(logger *zap.Logger) TransportFactory {
	return func(serverConfig *config.MCPServerConfig) Transport {
		return &httpTransport{
			config: serverConfig,
			logger: logger.With(zap.String("mcp_server", serverConfig.Name)),
		}
	}
}

// httpTransport wraps the mcp-go streamable HTTP client for one server
type httpTransport struct {
	config *config.MCPServerConfig
	logger *zap.Logger

	mu     sync.Mutex
	client *client.Client
}

// Connect establishes the session and runs the MCP initialize handshake
func (t *httpTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.config.Endpoint == "" {
		return fmt.Errorf("no endpoint specified for mcp server %q", t.config.Name)
	}

	mcpClient, err := t.newClient()
	if err != nil {
		return err
	}
	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("failed to start mcp client: %w", err)
	}

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "alertops",
		Version: "1.0.0",
	}
	initRequest.Params.Capabilities = mcp.ClientCapabilities{}

	serverInfo, err := mcpClient.Initialize(ctx, initRequest)
	if err != nil {
		_ = mcpClient.Close()
		return fmt.Errorf("mcp initialize failed: %w", err)
	}

	t.logger.Debug("Connected to mcp server",
		zap.String("endpoint", t.config.Endpoint),
		zap.String("server_name", serverInfo.ServerInfo.Name),
		zap.String("server_version", serverInfo.ServerInfo.Version))

	t.client = mcpClient
	return nil
}

// newClient builds the streamable HTTP client, attaching the bearer token
// header when the server is configured with one
func (t *httpTransport) newClient() (*client.Client, error) {
	if t.config.AuthToken != "" {
		httpTrans, err := transport.NewStreamableHTTP(t.config.Endpoint,
			transport.WithHTTPTimeout(t.config.Timeout()),
			transport.WithHTTPHeaders(map[string]string{
				"Authorization": "Bearer " + t.config.AuthToken,
			}))
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP transport: %w", err)
		}
		return client.NewClient(httpTrans), nil
	}

	httpTrans, err := transport.NewStreamableHTTP(t.config.Endpoint,
		transport.WithHTTPTimeout(t.config.Timeout()))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP transport: %w", err)
	}
	return client.NewClient(httpTrans), nil
}

// CallTool invokes a named tool with a key/value argument map
func (t *httpTransport) CallTool(ctx context.Context, toolName string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	t.mu.Lock()
	mcpClient := t.client
	t.mu.Unlock()

	if mcpClient == nil {
		return nil, fmt.Errorf("mcp server %q: not connected", t.config.Name)
	}

	request := mcp.CallToolRequest{}
	request.Params.Name = toolName
	request.Params.Arguments = args

	return mcpClient.CallTool(ctx, request)
}

// ListTools retrieves the available tools from the server
func (t *httpTransport) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	t.mu.Lock()
	mcpClient := t.client
	t.mu.Unlock()

	if mcpClient == nil {
		return nil, fmt.Errorf("mcp server %q: not connected", t.config.Name)
	}

	result, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	return result.Tools, nil
}

// Close tears down the session
func (t *httpTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}
