package alerts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alertmanagerPayload = `{
	"version": "4",
	"groupKey": "{}:{alertname=\"InstanceDown\"}",
	"truncatedAlerts": 0,
	"status": "firing",
	"receiver": "alertops",
	"groupLabels": {"alertname": "InstanceDown"},
	"commonLabels": {"alertname": "InstanceDown", "job": "node"},
	"commonAnnotations": {"summary": "Instance is down"},
	"externalURL": "http://alertmanager:9093",
	"alerts": [
		{
			"status": "firing",
			"labels": {"alertname": "InstanceDown", "instance": "10.0.0.5:9100", "severity": "critical"},
			"annotations": {"summary": "Instance is down", "description": "10.0.0.5 unreachable for 5m"},
			"startsAt": "2026-08-23T10:00:00Z",
			"endsAt": "0001-01-01T00:00:00Z",
			"generatorURL": "http://prometheus/graph?g0.expr=up",
			"fingerprint": "8f5c7d3e2a1b4c6d"
		}
	]
}`

func TestWebhookPayloadDecode(t *testing.T) {
	var payload WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(alertmanagerPayload), &payload))

	assert.Equal(t, "4", payload.Version)
	assert.Equal(t, StatusFiring, payload.Status)
	assert.Equal(t, "alertops", payload.Receiver)
	assert.Equal(t, "InstanceDown", payload.GroupLabels["alertname"])

	require.Len(t, payload.Alerts, 1)
	alert := payload.Alerts[0]
	assert.Equal(t, StatusFiring, alert.Status)
	assert.Equal(t, "8f5c7d3e2a1b4c6d", alert.Fingerprint)
	assert.Equal(t, "critical", alert.Label("severity"))
	assert.Equal(t, "Instance is down", alert.Annotation("summary"))
	assert.Equal(t, 2026, alert.StartsAt.Year())
	assert.True(t, alert.EndsAt.IsZero())
}

func TestLabelAndAnnotationHelpers(t *testing.T) {
	var alert Alert
	assert.Empty(t, alert.Label("severity"), "nil maps are safe")
	assert.Empty(t, alert.Annotation("summary"))

	alert.Labels = map[string]string{"severity": "warning"}
	assert.Equal(t, "warning", alert.Label("severity"))
	assert.Empty(t, alert.Label("instance"))
}
