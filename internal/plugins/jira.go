package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/alertops/alertops/internal/ai"
	"github.com/alertops/alertops/internal/alerts"
	"github.com/alertops/alertops/internal/config"
)

const (
	jiraServerName = "jira"

	jiraSummaryMaxLen = 255

	defaultJiraSystemPrompt = `You are an expert SRE assistant creating Jira tickets from Prometheus alerts.

Your task is to create a clear, concise summary suitable for a Jira ticket.

Focus on:
- Alert severity and impact
- Affected service/instance
- Root cause if identifiable
- Recommended immediate actions

Format:
- First line: Brief summary (max 100 characters) for ticket title
- Following lines: Detailed description with context

Use plain text, no markdown formatting.`
)

// JiraPlugin creates Jira issues from alerts. Issue creation and the
// deduplication search both go through the jira tool server; summaries come
// from the AI provider with a template fallback.
type JiraPlugin struct {
	cfg    *config.JiraConfig
	ai     ai.Provider
	tools  ToolCaller
	logger *zap.Logger
}

// NewJira creates the jira plugin. The AI provider may be nil; the plugin
// then always uses template summaries.
func NewJira(cfg *config.JiraConfig, provider ai.Provider, tools ToolCaller, logger *zap.Logger) *JiraPlugin {
	if cfg == nil {
		cfg = config.DefaultJiraConfig()
	}
	logger.Info("Initialized jira plugin",
		zap.String("project", cfg.ProjectKey),
		zap.String("issue_type", cfg.IssueType),
		zap.Bool("deduplicate", cfg.Deduplicate))
	return &JiraPlugin{
		cfg:    cfg,
		ai:     provider,
		tools:  tools,
		logger: logger,
	}
}

// Name implements Plugin
func (p *JiraPlugin) Name() string { return "jira" }

// Handle implements Plugin. Alerts are processed independently; one failure
// does not stop the rest, and the response reports partial success.
func (p *JiraPlugin) Handle(ctx context.Context, payload *alerts.WebhookPayload) (*alerts.PluginResponse, error) {
	var createdIssues []string
	skipped := 0
	errorCount := 0

	for i := range payload.Alerts {
		alert := &payload.Alerts[i]

		if p.cfg.Deduplicate && p.isDuplicate(ctx, alert) {
			p.logger.Info("Skipping duplicate alert", zap.String("fingerprint", alert.Fingerprint))
			skipped++
			continue
		}

		summary, description := p.generateSummary(ctx, alert)

		issueKey, err := p.createIssue(ctx, alert, summary, description)
		if err != nil {
			p.logger.Error("Failed to create Jira issue",
				zap.String("fingerprint", alert.Fingerprint),
				zap.Error(err))
			errorCount++
			continue
		}

		createdIssues = append(createdIssues, issueKey)
		p.logger.Info("Created Jira issue",
			zap.String("issue", issueKey),
			zap.String("fingerprint", alert.Fingerprint))
	}

	status := "ok"
	if errorCount > 0 {
		status = "partial"
	}

	return &alerts.PluginResponse{
		Status: status,
		Plugin: p.Name(),
		Message: fmt.Sprintf("Created %d issues, skipped %d duplicates, %d errors",
			len(createdIssues), skipped, errorCount),
		AlertsProcessed: len(createdIssues),
		IssuesCreated:   createdIssues,
		Skipped:         skipped,
		Errors:          errorCount,
	}, nil
}

// isDuplicate searches for an open issue labeled with the alert fingerprint
// inside the dedup window. Search failures count as "not duplicate" so a
// broken search never suppresses an alert.
func (p *JiraPlugin) isDuplicate(ctx context.Context, alert *alerts.Alert) bool {
	jql := fmt.Sprintf(
		`project = %s AND labels = "fingerprint-%s" AND status NOT IN (Done, Resolved, Closed) AND created >= -%dh`,
		p.cfg.ProjectKey, alert.Fingerprint, p.cfg.DedupWindowHours)

	result, err := p.tools.CallTool(ctx, jiraServerName, "search_issues", map[string]interface{}{
		"jql":         jql,
		"max_results": 1,
	}, true)
	if err != nil {
		p.logger.Warn("Deduplication check failed", zap.Error(err))
		return false
	}

	var searchResult struct {
		Total int `json:"total"`
	}
	if err := decodeToolResult(result, &searchResult); err != nil {
		p.logger.Warn("Unparseable deduplication result", zap.Error(err))
		return false
	}
	return searchResult.Total > 0
}

// generateSummary prefers the AI provider and falls back to the template
// when the provider is missing or fails
func (p *JiraPlugin) generateSummary(ctx context.Context, alert *alerts.Alert) (string, string) {
	if p.ai != nil {
		summary, description, err := p.aiSummary(ctx, alert)
		if err != nil {
			p.logger.Warn("AI summarization failed, using fallback", zap.Error(err))
		} else {
			return summary, description
		}
	}
	return p.templateSummary(alert)
}

func (p *JiraPlugin) aiSummary(ctx context.Context, alert *alerts.Alert) (string, string, error) {
	systemPrompt := p.cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultJiraSystemPrompt
	}

	temperature := 0.2
	if p.cfg.Temperature != nil {
		temperature = *p.cfg.Temperature
	}
	maxTokens := 200
	if p.cfg.MaxTokens != nil {
		maxTokens = *p.cfg.MaxTokens
	}

	text, err := p.ai.Generate(ctx, buildAlertPrompt(alert), systemPrompt,
		ai.WithTemperature(temperature),
		ai.WithMaxTokens(maxTokens))
	if err != nil {
		return "", "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", fmt.Errorf("ai returned empty text")
	}

	// First line becomes the issue summary, the rest the description
	summary := text
	description := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		summary = strings.TrimSpace(text[:idx])
		description = strings.TrimSpace(text[idx+1:])
	}
	if len(summary) > jiraSummaryMaxLen {
		summary = summary[:jiraSummaryMaxLen-3] + "..."
	}
	return summary, description, nil
}

func buildAlertPrompt(alert *alerts.Alert) string {
	return fmt.Sprintf(`Create a Jira ticket from this Prometheus alert:

Alert Name: %s
Status: %s
Severity: %s
Instance: %s
Job: %s

Description: %s
Summary: %s

Started: %s
Fingerprint: %s

Provide a clear Jira ticket with:
1. First line: Concise summary (max 100 chars) for ticket title
2. Following lines: Detailed description with impact and recommended actions`,
		orDefault(alert.Label("alertname"), "Unknown"),
		alert.Status,
		orDefault(alert.Label("severity"), "unknown"),
		orDefault(alert.Label("instance"), "unknown"),
		orDefault(alert.Label("job"), "unknown"),
		orDefault(alert.Annotation("description"), "No description"),
		orDefault(alert.Annotation("summary"), "No summary"),
		alert.StartsAt.Format("2006-01-02T15:04:05Z07:00"),
		alert.Fingerprint)
}

// templateSummary renders the fallback summary and a Jira wiki markup
// description when AI generation is unavailable
func (p *JiraPlugin) templateSummary(alert *alerts.Alert) (string, string) {
	alertName := orDefault(alert.Label("alertname"), "Unknown Alert")
	instance := orDefault(alert.Label("instance"), "unknown")
	severity := orDefault(alert.Label("severity"), "unknown")

	summary := fmt.Sprintf("[%s] %s on %s", strings.ToUpper(severity), alertName, instance)

	var b strings.Builder
	fmt.Fprintf(&b, `h2. Alert Details

*Status:* %s
*Severity:* %s
*Instance:* %s
*Job:* %s
*Started:* %s

h3. Description
%s

h3. Summary
%s

h3. Technical Details
*Generator URL:* %s
*Fingerprint:* {{%s}}
*Labels:*
`,
		alert.Status,
		severity,
		instance,
		orDefault(alert.Label("job"), "unknown"),
		alert.StartsAt.Format("2006-01-02T15:04:05Z07:00"),
		orDefault(alert.Annotation("description"), "No description available"),
		orDefault(alert.Annotation("summary"), "No summary available"),
		alert.GeneratorURL,
		alert.Fingerprint)

	keys := make([]string, 0, len(alert.Labels))
	for key := range alert.Labels {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, "* *%s:* %s\n", key, alert.Labels[key])
	}

	return summary, b.String()
}

// createIssue creates the issue through the jira tool server and returns
// the new issue key
func (p *JiraPlugin) createIssue(ctx context.Context, alert *alerts.Alert, summary, description string) (string, error) {
	severity := strings.ToLower(orDefault(alert.Label("severity"), "info"))
	priority := p.cfg.SeverityPriority[severity]
	if priority == "" {
		priority = "Medium"
	}

	labels := []string{
		"alertops",
		"prometheus",
		"fingerprint-" + alert.Fingerprint,
		"severity-" + severity,
	}
	if alertName := alert.Label("alertname"); alertName != "" {
		labels = append(labels, strings.ToLower(strings.ReplaceAll(alertName, " ", "-")))
	}

	result, err := p.tools.CallTool(ctx, jiraServerName, "create_issue", map[string]interface{}{
		"project":     p.cfg.ProjectKey,
		"issuetype":   p.cfg.IssueType,
		"summary":     summary,
		"description": description,
		"priority":    priority,
		"labels":      labels,
	}, true)
	if err != nil {
		return "", err
	}

	var issue struct {
		Key string `json:"key"`
	}
	if err := decodeToolResult(result, &issue); err != nil || issue.Key == "" {
		return "unknown", nil
	}
	return issue.Key, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// decodeToolResult unmarshals the first text content of a tool result
func decodeToolResult(result *mcpgo.CallToolResult, target interface{}) error {
	if result == nil {
		return fmt.Errorf("empty tool result")
	}
	for _, content := range result.Content {
		if textContent, ok := mcpgo.AsTextContent(content); ok {
			return json.Unmarshal([]byte(textContent.Text), target)
		}
	}
	return fmt.Errorf("tool result has no text content")
}
