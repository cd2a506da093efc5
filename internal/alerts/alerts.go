// Package alerts defines the Prometheus Alertmanager webhook payload
// (version 4) consumed by all alert handler plugins.
//
// https://prometheus.io/docs/alerting/latest/configuration/#webhook_config
package alerts

import "time"

// Alert statuses as sent by Alertmanager.
const (
	StatusFiring   = "firing"
	StatusResolved = "resolved"
)

// Alert represents an individual alert in the webhook payload.
type Alert struct {
	Status       string            `json:"status"`
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations"`
	StartsAt     time.Time         `json:"startsAt"`
	EndsAt       time.Time         `json:"endsAt,omitempty"`
	GeneratorURL string            `json:"generatorURL"`
	Fingerprint  string            `json:"fingerprint"`
}

// Label returns the value of a label, or empty string if not present.
// Labels like severity, instance, job are user-defined and may not exist.
func (a *Alert) Label(name string) string {
	if a.Labels == nil {
		return ""
	}
	return a.Labels[name]
}

// Annotation returns the value of an annotation, or empty string if not present.
func (a *Alert) Annotation(name string) string {
	if a.Annotations == nil {
		return ""
	}
	return a.Annotations[name]
}

// WebhookPayload is the complete Alertmanager webhook notification.
type WebhookPayload struct {
	Version           string            `json:"version"`
	GroupKey          string            `json:"groupKey"`
	TruncatedAlerts   int               `json:"truncatedAlerts"`
	Status            string            `json:"status"`
	Receiver          string            `json:"receiver"`
	GroupLabels       map[string]string `json:"groupLabels"`
	CommonLabels      map[string]string `json:"commonLabels"`
	CommonAnnotations map[string]string `json:"commonAnnotations"`
	ExternalURL       string            `json:"externalURL"`
	Alerts            []Alert           `json:"alerts"`
}

// PluginResponse is the standard JSON body returned by plugin endpoints.
type PluginResponse struct {
	Status          string `json:"status"`
	Plugin          string `json:"plugin"`
	Message         string `json:"message,omitempty"`
	AlertsProcessed int    `json:"alerts_processed"`

	// jira plugin extras
	IssuesCreated []string `json:"issues_created,omitempty"`
	Skipped       int      `json:"skipped,omitempty"`
	Errors        int      `json:"errors,omitempty"`
}
