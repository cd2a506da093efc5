package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleConfig = `
server:
  listen: ":9090"
  log_level: debug

mcp_servers:
  jira:
    endpoint: "https://jira-mcp.internal/mcp"
    auth_token: "${JIRA_MCP_TOKEN}"
    timeout: 60
  kubernetes:
    endpoint: "https://k8s-mcp.internal/mcp"
    enabled: false

plugins:
  enabled:
    - logger
    - jira
  jira:
    project_key: "SRE"
    deduplicate_window_hours: 48

data_dir: "%s"
`

func TestLoadFromFile(t *testing.T) {
	t.Setenv("JIRA_MCP_TOKEN", "secret-token")
	dataDir := t.TempDir()
	path := writeConfig(t, sprintfConfig(dataDir))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, dataDir, cfg.DataDir)

	require.Contains(t, cfg.MCPServers, "jira")
	jira := cfg.MCPServers["jira"]
	assert.Equal(t, "jira", jira.Name, "name filled from map key")
	assert.Equal(t, "secret-token", jira.AuthToken, "env var substituted")
	assert.Equal(t, 60*time.Second, jira.Timeout())
	assert.True(t, jira.Enabled, "enabled defaults to true when absent")

	require.Contains(t, cfg.MCPServers, "kubernetes")
	assert.False(t, cfg.MCPServers["kubernetes"].Enabled, "explicit enabled: false preserved")

	assert.Equal(t, []string{"logger", "jira"}, cfg.Plugins.Enabled)
	assert.Equal(t, "SRE", cfg.Plugins.Jira.ProjectKey)
	assert.Equal(t, 48, cfg.Plugins.Jira.DedupWindowHours)
	assert.Equal(t, "Incident", cfg.Plugins.Jira.IssueType, "missing fields get defaults")
}

func sprintfConfig(dataDir string) string {
	return fmt.Sprintf(sampleConfig, dataDir)
}

func TestEnvSubstitution_UnsetBecomesEmpty(t *testing.T) {
	os.Unsetenv("ALERTOPS_TEST_MISSING_TOKEN")

	expanded := substituteEnvVars(`token: "${ALERTOPS_TEST_MISSING_TOKEN}"`)
	assert.Equal(t, `token: ""`, expanded)
}

func TestEnvSubstitution_OnlyBracedForm(t *testing.T) {
	t.Setenv("SOME_TOKEN", "abc")

	assert.Equal(t, "token: abc", substituteEnvVars("token: ${SOME_TOKEN}"))
	assert.Equal(t, "token: $SOME_TOKEN", substituteEnvVars("token: $SOME_TOKEN"))
}

func TestValidate_EndpointRequired(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MCPServers = map[string]*MCPServerConfig{
		"jira": {},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint is required")
}

func TestValidate_AppliesDefaults(t *testing.T) {
	cfg := &Config{
		MCPServers: map[string]*MCPServerConfig{
			"jira": {Endpoint: "https://jira-mcp.internal/mcp"},
		},
	}

	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, 30, cfg.MCPServers["jira"].TimeoutSeconds)
	assert.True(t, cfg.MCPServers["jira"].Enabled)
	assert.Equal(t, "OPS", cfg.Plugins.Jira.ProjectKey)
	assert.Equal(t, "Highest", cfg.Plugins.Jira.SeverityPriority["critical"])
	assert.Equal(t, 100, cfg.Plugins.Recall.QueryLimit)
}

func TestTimeoutDefault(t *testing.T) {
	server := &MCPServerConfig{}
	assert.Equal(t, 30*time.Second, server.Timeout())

	server.TimeoutSeconds = 5
	assert.Equal(t, 5*time.Second, server.Timeout())
}
