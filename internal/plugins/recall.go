package plugins

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alertops/alertops/internal/alerts"
	"github.com/alertops/alertops/internal/config"
	"github.com/alertops/alertops/internal/history"
)

// RecallPlugin persists every incoming alert and answers history queries.
// The query endpoints are exposed by the HTTP layer on top of the exported
// query methods.
type RecallPlugin struct {
	store      *history.Store
	queryLimit int
	logger     *zap.Logger
}

// NewRecall creates the recall plugin over a history store
func NewRecall(cfg *config.RecallConfig, store *history.Store, logger *zap.Logger) *RecallPlugin {
	limit := 100
	if cfg != nil && cfg.QueryLimit > 0 {
		limit = cfg.QueryLimit
	}
	return &RecallPlugin{
		store:      store,
		queryLimit: limit,
		logger:     logger,
	}
}

// Name implements Plugin
func (p *RecallPlugin) Name() string { return "recall" }

// Handle implements Plugin by storing every alert in the payload
func (p *RecallPlugin) Handle(_ context.Context, payload *alerts.WebhookPayload) (*alerts.PluginResponse, error) {
	stored := 0
	for i := range payload.Alerts {
		alert := &payload.Alerts[i]
		entry := history.Entry{
			Fingerprint:  alert.Fingerprint,
			Status:       alert.Status,
			AlertName:    alert.Label("alertname"),
			Labels:       alert.Labels,
			Annotations:  alert.Annotations,
			StartsAt:     alert.StartsAt,
			EndsAt:       alert.EndsAt,
			GeneratorURL: alert.GeneratorURL,
			ReceivedAt:   time.Now().UTC(),
			Receiver:     payload.Receiver,
			GroupKey:     payload.GroupKey,
		}
		if err := p.store.Append(entry); err != nil {
			return nil, fmt.Errorf("failed to store alert %s: %w", alert.Fingerprint, err)
		}
		stored++
	}

	p.logger.Info("Stored alerts", zap.Int("count", stored))

	return &alerts.PluginResponse{
		Status:          "ok",
		Plugin:          p.Name(),
		Message:         fmt.Sprintf("Stored %d alert(s)", stored),
		AlertsProcessed: stored,
	}, nil
}

// Query returns stored alerts filtered by status and alertname, newest
// first. The configured query limit caps the requested limit.
func (p *RecallPlugin) Query(status, alertName string, limit int) ([]history.Entry, error) {
	if limit <= 0 || limit > p.queryLimit {
		limit = p.queryLimit
	}
	return p.store.Query(status, alertName, limit)
}

// ByFingerprint returns the stored history for one fingerprint
func (p *RecallPlugin) ByFingerprint(fingerprint string) ([]history.Entry, error) {
	return p.store.ByFingerprint(fingerprint)
}

// Stats returns aggregate counts over the stored history
func (p *RecallPlugin) Stats() (*history.Stats, error) {
	return p.store.Stats()
}
