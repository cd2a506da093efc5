package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/alertops/alertops/internal/config"
	"github.com/alertops/alertops/internal/metrics"
)

// DefaultRetrySchedule bounds the attempt count for a single logical call.
// Delays are fixed and small because the caller sits on the webhook request
// path and must still answer Alertmanager promptly.
var DefaultRetrySchedule = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
}

// SleepFunc sleeps for the given backoff delay, honoring ctx cancellation
type SleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Engine orchestrates lazy connection, per-server mutual exclusion,
// retry-with-backoff and error classification for tool calls against the
// servers held in a Registry. The engine keeps no per-call state of its own;
// all connection bookkeeping lives in the registry.
type Engine struct {
	registry *Registry
	factory  TransportFactory
	logger   *zap.Logger
	schedule []time.Duration
	sleep    SleepFunc
	metrics  *metrics.Metrics
}

// Option configures an Engine
type Option func(*Engine)

// WithRetrySchedule overrides the default backoff schedule
func WithRetrySchedule(schedule []time.Duration) Option {
	return func(e *Engine) { e.schedule = schedule }
}

// WithSleep overrides the backoff sleep function (used by tests)
func WithSleep(sleep SleepFunc) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// WithMetrics attaches prometheus instrumentation
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates a tool invocation engine over the given registry
func NewEngine(registry *Registry, factory TransportFactory, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		factory:  factory,
		logger:   logger,
		schedule: DefaultRetrySchedule,
		sleep:    defaultSleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CallTool executes a named tool on a named server.
//
// Validation failures (unknown or disabled server) return immediately with
// no connection attempt. A lazy connect runs exactly once when the server is
// not connected; its failure is fatal for this call and surfaces as
// ServerUnavailableError. The server's execution slot is held for the entire
// retry sequence so calls to the same server never interleave; calls to
// different servers proceed in parallel.
func (e *Engine) CallTool(ctx context.Context, serverName, toolName string, args map[string]interface{}, allowRetry bool) (*mcpgo.CallToolResult, error) {
	serverConfig, err := e.registry.Lookup(serverName)
	if err != nil {
		return nil, err
	}
	if !serverConfig.Enabled {
		return nil, &DisabledServerError{Server: serverName}
	}

	// Lazy connect: one attempt, not retried inline. A failure here is
	// retried implicitly on the next call.
	if e.registry.State(serverName) != StateConnected {
		e.logger.Info("Attempting lazy connection to mcp server",
			zap.String("server", serverName))
		if err := e.connect(ctx, serverConfig); err != nil {
			return nil, &ServerUnavailableError{Server: serverName, Err: err}
		}
	}

	slot := e.registry.Slot(serverName)
	slot.Lock()
	defer slot.Unlock()

	return e.callWithRetry(ctx, serverConfig, toolName, args, allowRetry)
}

// callWithRetry drives the bounded retry loop. The caller holds the slot.
func (e *Engine) callWithRetry(ctx context.Context, serverConfig *config.MCPServerConfig, toolName string, args map[string]interface{}, allowRetry bool) (*mcpgo.CallToolResult, error) {
	serverName := serverConfig.Name

	for attempt, delay := range e.schedule {
		lastAttempt := attempt == len(e.schedule)-1

		result, err := e.invoke(ctx, serverConfig, toolName, args)
		if err == nil {
			e.logger.Debug("mcp tool executed",
				zap.String("server", serverName),
				zap.String("tool", toolName),
				zap.Int("attempt", attempt+1))
			e.metrics.ToolCall(serverName, metrics.OutcomeSuccess)
			return result, nil
		}

		switch {
		case isTimeoutError(err):
			e.logger.Error("mcp tool timeout",
				zap.String("server", serverName),
				zap.String("tool", toolName),
				zap.Int("attempt", attempt+1))
			if !allowRetry || lastAttempt {
				e.metrics.ToolCall(serverName, metrics.OutcomeTimeout)
				return nil, &ToolTimeoutError{
					Server:  serverName,
					Tool:    toolName,
					Timeout: serverConfig.Timeout(),
				}
			}

		case isConnectionError(err):
			e.logger.Error("mcp connection error",
				zap.String("server", serverName),
				zap.String("tool", toolName),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			e.dropConnection(serverName)
			if !allowRetry || lastAttempt {
				e.metrics.ToolCall(serverName, metrics.OutcomeUnavailable)
				return nil, &ServerUnavailableError{Server: serverName, Err: err}
			}
			// One reconnect attempt. Reconnect failure does not abort the
			// loop; the next attempt runs against a dead connection and the
			// schedule is what bounds the call.
			if rerr := e.connect(ctx, serverConfig); rerr != nil {
				e.logger.Warn("Reconnect failed, continuing retry schedule",
					zap.String("server", serverName),
					zap.Error(rerr))
			}

		default:
			e.logger.Error("mcp tool error",
				zap.String("server", serverName),
				zap.String("tool", toolName),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			if !allowRetry || lastAttempt {
				e.metrics.ToolCall(serverName, metrics.OutcomeError)
				return nil, err
			}
		}

		e.metrics.ToolRetry(serverName)
		if serr := e.sleep(ctx, delay); serr != nil {
			return nil, serr
		}
	}

	// Unreachable with a non-empty schedule
	return nil, fmt.Errorf("mcp server %q: empty retry schedule", serverName)
}

// invoke issues one attempt bounded by the server's configured timeout
func (e *Engine) invoke(ctx context.Context, serverConfig *config.MCPServerConfig, toolName string, args map[string]interface{}) (*mcpgo.CallToolResult, error) {
	conn, ok := e.registry.Connection(serverConfig.Name)
	if !ok || conn.Transport == nil {
		return nil, fmt.Errorf("mcp server %q: not connected", serverConfig.Name)
	}

	callCtx, cancel := context.WithTimeout(ctx, serverConfig.Timeout())
	defer cancel()

	return conn.Transport.CallTool(callCtx, toolName, args)
}

// connect performs exactly one connection attempt and records the outcome
// in the registry
func (e *Engine) connect(ctx context.Context, serverConfig *config.MCPServerConfig) error {
	transport := e.factory(serverConfig)

	connectCtx, cancel := context.WithTimeout(ctx, serverConfig.Timeout())
	defer cancel()

	if err := transport.Connect(connectCtx); err != nil {
		e.registry.MarkPending(serverConfig.Name)
		return fmt.Errorf("mcp connection failed: %w", err)
	}

	e.registry.MarkConnected(serverConfig.Name, transport)
	return nil
}

// dropConnection closes and forgets a failed connection so the next
// connect builds a fresh transport
func (e *Engine) dropConnection(serverName string) {
	if conn, ok := e.registry.Connection(serverName); ok && conn.Transport != nil {
		_ = conn.Transport.Close()
	}
	e.registry.MarkPending(serverName)
}

// ListTools lists the tools available on a connected server
func (e *Engine) ListTools(ctx context.Context, serverName string) ([]mcpgo.Tool, error) {
	if _, err := e.registry.Lookup(serverName); err != nil {
		return nil, err
	}
	conn, ok := e.registry.Connection(serverName)
	if !ok || conn.Transport == nil {
		return nil, &ServerUnavailableError{
			Server: serverName,
			Err:    fmt.Errorf("not connected"),
		}
	}
	return conn.Transport.ListTools(ctx)
}

// ConnectAll attempts one connection per enabled configured server,
// independently and in parallel. A failure for one server does not block
// startup or affect others; failed servers stay pending for lazy retry on
// first use.
func (e *Engine) ConnectAll(ctx context.Context) {
	var wg sync.WaitGroup

	for _, name := range e.registry.Names() {
		serverConfig, err := e.registry.Lookup(name)
		if err != nil {
			continue
		}
		if !serverConfig.Enabled {
			e.logger.Info("Skipping disabled mcp server", zap.String("server", name))
			continue
		}

		wg.Add(1)
		go func(cfg *config.MCPServerConfig) {
			defer wg.Done()
			if err := e.connect(ctx, cfg); err != nil {
				e.logger.Warn("Failed to connect to mcp server at startup, will retry on first use",
					zap.String("server", cfg.Name),
					zap.Error(err))
				return
			}
			e.logger.Info("Connected to mcp server", zap.String("server", cfg.Name))
		}(serverConfig)
	}

	wg.Wait()

	connected := e.registry.ConnectedServers()
	e.logger.Info("mcp initialization complete",
		zap.Int("connected", len(connected)),
		zap.Int("total", len(e.registry.Names())))
}

// Shutdown tears down every connected server independently. A teardown
// failure is logged and does not prevent teardown of the others.
func (e *Engine) Shutdown() {
	for _, name := range e.registry.ConnectedServers() {
		conn, ok := e.registry.Connection(name)
		if !ok || conn.Transport == nil {
			continue
		}
		if err := conn.Transport.Close(); err != nil {
			e.logger.Error("Error closing mcp server connection",
				zap.String("server", name),
				zap.Error(err))
		}
		e.registry.MarkDisconnected(name)
	}
	e.logger.Info("mcp cleanup complete")
}
