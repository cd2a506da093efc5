package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/alertops/alertops/internal/alerts"
)

// DumpPlugin writes the complete raw payload as indented JSON. Useful for
// debugging and for capturing test fixtures.
type DumpPlugin struct {
	out io.Writer
}

// NewDump creates the dump plugin writing to out
func NewDump(out io.Writer) *DumpPlugin {
	return &DumpPlugin{out: out}
}

// Name implements Plugin
func (p *DumpPlugin) Name() string { return "dump" }

// Handle implements Plugin
func (p *DumpPlugin) Handle(_ context.Context, payload *alerts.WebhookPayload) (*alerts.PluginResponse, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	if _, err := fmt.Fprintln(p.out, string(data)); err != nil {
		return nil, fmt.Errorf("failed to write payload: %w", err)
	}

	return &alerts.PluginResponse{
		Status:          "ok",
		Plugin:          p.Name(),
		Message:         "Payload dumped to stdout",
		AlertsProcessed: len(payload.Alerts),
	}, nil
}
