package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alertops/alertops/internal/alerts"
	"github.com/alertops/alertops/internal/config"
	"github.com/alertops/alertops/internal/history"
	"github.com/alertops/alertops/internal/metrics"
	"github.com/alertops/alertops/internal/plugins"
)

type stubPlugin struct {
	name string
	resp *alerts.PluginResponse
	err  error

	payload *alerts.WebhookPayload
}

func (p *stubPlugin) Name() string { return p.name }

func (p *stubPlugin) Handle(_ context.Context, payload *alerts.WebhookPayload) (*alerts.PluginResponse, error) {
	p.payload = payload
	if p.err != nil {
		return nil, p.err
	}
	return p.resp, nil
}

type stubLister struct{ servers []string }

func (l *stubLister) ConnectedServers() []string { return l.servers }

func newTestServer(loaded map[string]plugins.Plugin) *Server {
	registry := prometheus.NewRegistry()
	return NewServer(loaded, &stubLister{servers: []string{"jira"}},
		zap.NewNop(), metrics.New(registry), registry, "test")
}

const webhookBody = `{
	"version": "4",
	"groupKey": "{}:{alertname=\"HighCPU\"}",
	"status": "firing",
	"receiver": "alertops",
	"alerts": [{
		"status": "firing",
		"labels": {"alertname": "HighCPU", "severity": "critical"},
		"annotations": {"summary": "CPU is high"},
		"startsAt": "2026-08-23T10:00:00Z",
		"generatorURL": "http://prometheus/graph",
		"fingerprint": "abc123"
	}]
}`

func TestHandleAlert_Success(t *testing.T) {
	plugin := &stubPlugin{
		name: "logger",
		resp: &alerts.PluginResponse{Status: "ok", Plugin: "logger", AlertsProcessed: 1},
	}
	server := newTestServer(map[string]plugins.Plugin{"logger": plugin})

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alert/logger", strings.NewReader(webhookBody)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp alerts.PluginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.AlertsProcessed)

	require.NotNil(t, plugin.payload)
	require.Len(t, plugin.payload.Alerts, 1)
	assert.Equal(t, "abc123", plugin.payload.Alerts[0].Fingerprint)
}

func TestHandleAlert_PluginErrorStillAnswers200(t *testing.T) {
	plugin := &stubPlugin{name: "jira", err: errors.New("mcp server \"jira\" unavailable")}
	server := newTestServer(map[string]plugins.Plugin{"jira": plugin})

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alert/jira", strings.NewReader(webhookBody)))

	require.Equal(t, http.StatusOK, rec.Code, "Alertmanager must not retry permanent failures")
	var resp alerts.PluginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Message, "unavailable")
}

func TestHandleAlert_UnknownPlugin(t *testing.T) {
	server := newTestServer(map[string]plugins.Plugin{})

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alert/slack", strings.NewReader(webhookBody)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleAlert_MalformedBody(t *testing.T) {
	plugin := &stubPlugin{name: "logger", resp: &alerts.PluginResponse{Status: "ok"}}
	server := newTestServer(map[string]plugins.Plugin{"logger": plugin})

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alert/logger", strings.NewReader("{not json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, plugin.payload, "plugin never invoked on malformed payload")
}

func TestHandleInfoAndHealth(t *testing.T) {
	server := newTestServer(map[string]plugins.Plugin{
		"logger": &stubPlugin{name: "logger"},
	})

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "alertops", info["service"])

	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, []interface{}{"jira"}, health["mcp_connected"])
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(map[string]plugins.Plugin{
		"logger": &stubPlugin{name: "logger", resp: &alerts.PluginResponse{Status: "ok"}},
	})

	// generate one counted alert first
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alert/logger", strings.NewReader(webhookBody)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alertops_alerts_received_total")
}

func recallServer(t *testing.T) (*Server, *plugins.RecallPlugin) {
	t.Helper()
	store, err := history.New(t.TempDir(), zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	recall := plugins.NewRecall(&config.RecallConfig{QueryLimit: 100}, store, zap.NewNop())
	return newTestServer(map[string]plugins.Plugin{"recall": recall}), recall
}

func TestRecallRoutes(t *testing.T) {
	server, recall := recallServer(t)

	_, err := recall.Handle(context.Background(), &alerts.WebhookPayload{
		Receiver: "alertops",
		Alerts: []alerts.Alert{{
			Status:      alerts.StatusFiring,
			Labels:      map[string]string{"alertname": "HighCPU"},
			StartsAt:    time.Now().UTC(),
			Fingerprint: "abc123",
		}},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alert/recall?status=firing", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var query recallQueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &query))
	assert.Equal(t, 1, query.Count)

	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alert/recall/abc123", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var byFP recallHistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &byFP))
	assert.Equal(t, 1, byFP.Count)
	assert.Equal(t, "abc123", byFP.Fingerprint)

	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alert/recall/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alert/recall/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats recallStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.NotNil(t, stats.Statistics)
	assert.Equal(t, 1, stats.Statistics.Fingerprints)
}

func TestRecallQuery_InvalidLimit(t *testing.T) {
	server, _ := recallServer(t)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alert/recall?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
