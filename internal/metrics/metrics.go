// Package metrics exposes prometheus instrumentation for the webhook
// receiver and the mcp tool invocation engine. All methods are nil-safe so
// components can run uninstrumented in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tool call outcomes
const (
	OutcomeSuccess     = "success"
	OutcomeTimeout     = "timeout"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// Metrics holds the process-wide collectors
type Metrics struct {
	alertsReceived  *prometheus.CounterVec
	pluginErrors    *prometheus.CounterVec
	toolCalls       *prometheus.CounterVec
	toolCallRetries *prometheus.CounterVec
}

// New registers the collectors on the given registerer
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		alertsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alertops_alerts_received_total",
			Help: "Alerts received per plugin endpoint.",
		}, []string{"plugin"}),
		pluginErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alertops_plugin_errors_total",
			Help: "Plugin handler errors.",
		}, []string{"plugin"}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alertops_mcp_tool_calls_total",
			Help: "Terminal mcp tool call outcomes per server.",
		}, []string{"server", "outcome"}),
		toolCallRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alertops_mcp_tool_call_retries_total",
			Help: "Scheduled retries performed by the tool invocation engine.",
		}, []string{"server"}),
	}
}

// AlertsReceived counts alerts accepted by a plugin endpoint
func (m *Metrics) AlertsReceived(plugin string, count int) {
	if m == nil {
		return
	}
	m.alertsReceived.WithLabelValues(plugin).Add(float64(count))
}

// PluginError counts a handler failure
func (m *Metrics) PluginError(plugin string) {
	if m == nil {
		return
	}
	m.pluginErrors.WithLabelValues(plugin).Inc()
}

// ToolCall counts a terminal tool call outcome
func (m *Metrics) ToolCall(server, outcome string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(server, outcome).Inc()
}

// ToolRetry counts one scheduled retry
func (m *Metrics) ToolRetry(server string) {
	if m == nil {
		return
	}
	m.toolCallRetries.WithLabelValues(server).Inc()
}
