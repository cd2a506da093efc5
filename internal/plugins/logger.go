package plugins

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/alertops/alertops/internal/alerts"
)

// LoggerPlugin writes each alert to the log in a human-readable text block.
// For raw JSON output use the dump plugin instead.
type LoggerPlugin struct {
	logger *zap.Logger
}

// NewLogger creates the logger plugin
func NewLogger(logger *zap.Logger) *LoggerPlugin {
	return &LoggerPlugin{logger: logger}
}

// Name implements Plugin
func (p *LoggerPlugin) Name() string { return "logger" }

// Handle implements Plugin
func (p *LoggerPlugin) Handle(_ context.Context, payload *alerts.WebhookPayload) (*alerts.PluginResponse, error) {
	p.logger.Info("\n" + formatAlerts(payload.Alerts))

	return &alerts.PluginResponse{
		Status:          "ok",
		Plugin:          p.Name(),
		Message:         "Alerts logged successfully",
		AlertsProcessed: len(payload.Alerts),
	}, nil
}

// formatAlerts renders alerts in a markdown-style block: title with severity
// badge, description, then all labels sorted for stable output
func formatAlerts(alertList []alerts.Alert) string {
	var b strings.Builder

	for i := range alertList {
		alert := &alertList[i]
		if i > 0 {
			b.WriteString("---\n\n")
		}

		title := alert.Annotation("title")
		if title == "" {
			title = alert.Annotation("summary")
		}
		if title == "" {
			title = alert.Label("alertname")
		}
		if title == "" {
			title = "Alert"
		}

		if severity := alert.Label("severity"); severity != "" {
			fmt.Fprintf(&b, "*Alert:* %s - `%s`\n\n", title, severity)
		} else {
			fmt.Fprintf(&b, "*Alert:* %s\n\n", title)
		}

		description := alert.Annotation("description")
		if description == "" {
			description = "No description provided"
		}
		fmt.Fprintf(&b, "*Description:* %s\n\n", description)

		if len(alert.Labels) > 0 {
			b.WriteString("*Details:*\n")
			keys := make([]string, 0, len(alert.Labels))
			for key := range alert.Labels {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Fprintf(&b, "  • *%s:* `%s`\n", key, alert.Labels[key])
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}
