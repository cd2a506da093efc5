package config

import (
	"fmt"
	"time"
)

const (
	defaultListen         = ":8080"
	defaultMCPTimeoutSecs = 30
)

// Config represents the main configuration structure
type Config struct {
	Server  *ServerConfig `yaml:"server" mapstructure:"server"`
	Logging *LogConfig    `yaml:"logging" mapstructure:"logging"`

	// Remote MCP tool servers keyed by name
	MCPServers map[string]*MCPServerConfig `yaml:"mcp_servers" mapstructure:"mcp-servers"`

	// AI text generation settings
	AI *AIConfig `yaml:"ai" mapstructure:"ai"`

	// Plugin selection and per-plugin settings
	Plugins *PluginsConfig `yaml:"plugins" mapstructure:"plugins"`

	// Data directory for persistent state (alert history)
	DataDir string `yaml:"data_dir" mapstructure:"data-dir"`
}

// ServerConfig represents the HTTP listener configuration
type ServerConfig struct {
	Listen   string `yaml:"listen" mapstructure:"listen"`
	LogLevel string `yaml:"log_level" mapstructure:"log-level"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level         string `yaml:"level" mapstructure:"level"`
	EnableFile    bool   `yaml:"enable_file" mapstructure:"enable-file"`
	EnableConsole bool   `yaml:"enable_console" mapstructure:"enable-console"`
	Filename      string `yaml:"filename" mapstructure:"filename"`
	LogDir        string `yaml:"log_dir,omitempty" mapstructure:"log-dir"`
	MaxSize       int    `yaml:"max_size" mapstructure:"max-size"`       // MB
	MaxBackups    int    `yaml:"max_backups" mapstructure:"max-backups"` // number of backup files
	MaxAge        int    `yaml:"max_age" mapstructure:"max-age"`         // days
	Compress      bool   `yaml:"compress" mapstructure:"compress"`
	JSONFormat    bool   `yaml:"json_format" mapstructure:"json-format"`
}

// MCPServerConfig represents a single remote MCP tool server.
// Name is the registry key; it is filled in from the map key during Validate.
type MCPServerConfig struct {
	Name      string `yaml:"-"`
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	AuthToken string `yaml:"auth_token,omitempty" mapstructure:"auth-token"`
	// Per-call timeout in seconds; defaults to 30
	TimeoutSeconds int  `yaml:"timeout" mapstructure:"timeout"`
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`

	// set during Validate so a missing `enabled:` key defaults to true
	enabledSet bool
}

// Timeout returns the per-call timeout as a duration
func (s *MCPServerConfig) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return defaultMCPTimeoutSecs * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// UnmarshalYAML tracks whether `enabled` was present so absence defaults to true
func (s *MCPServerConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain struct {
		Endpoint       string `yaml:"endpoint"`
		AuthToken      string `yaml:"auth_token"`
		TimeoutSeconds int    `yaml:"timeout"`
		Enabled        *bool  `yaml:"enabled"`
	}
	var p plain
	if err := unmarshal(&p); err != nil {
		return err
	}
	s.Endpoint = p.Endpoint
	s.AuthToken = p.AuthToken
	s.TimeoutSeconds = p.TimeoutSeconds
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
		s.enabledSet = true
	}
	return nil
}

// AIConfig represents AI provider configuration
type AIConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // github_models or mcp
	GitHubPAT   string  `yaml:"github_pat,omitempty" mapstructure:"github-pat"`
	Model       string  `yaml:"model" mapstructure:"model"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max-tokens"`

	// MCP-backed provider settings
	MCPServer string `yaml:"mcp_server,omitempty" mapstructure:"mcp-server"`
	MCPTool   string `yaml:"mcp_tool,omitempty" mapstructure:"mcp-tool"`
}

// PluginsConfig selects and configures alert handler plugins
type PluginsConfig struct {
	Enabled []string      `yaml:"enabled" mapstructure:"enabled"`
	Jira    *JiraConfig   `yaml:"jira,omitempty" mapstructure:"jira"`
	Recall  *RecallConfig `yaml:"recall,omitempty" mapstructure:"recall"`
}

// JiraConfig configures the jira plugin
type JiraConfig struct {
	ProjectKey       string            `yaml:"project_key" mapstructure:"project-key"`
	IssueType        string            `yaml:"issue_type" mapstructure:"issue-type"`
	Deduplicate      bool              `yaml:"deduplicate" mapstructure:"deduplicate"`
	DedupWindowHours int               `yaml:"deduplicate_window_hours" mapstructure:"deduplicate-window-hours"`
	SeverityPriority map[string]string `yaml:"severity_priority_map,omitempty" mapstructure:"severity-priority-map"`

	// Per-plugin AI overrides
	SystemPrompt string   `yaml:"system_prompt,omitempty" mapstructure:"system-prompt"`
	Temperature  *float64 `yaml:"temperature,omitempty" mapstructure:"temperature"`
	MaxTokens    *int     `yaml:"max_tokens,omitempty" mapstructure:"max-tokens"`
}

// RecallConfig configures the recall plugin
type RecallConfig struct {
	QueryLimit int `yaml:"query_limit" mapstructure:"query-limit"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: &ServerConfig{
			Listen:   defaultListen,
			LogLevel: "info",
		},
		Logging: &LogConfig{
			Level:         "info",
			EnableFile:    false,
			EnableConsole: true,
			Filename:      "main.log",
			MaxSize:       10,
			MaxBackups:    5,
			MaxAge:        30,
			Compress:      true,
			JSONFormat:    false,
		},
		MCPServers: map[string]*MCPServerConfig{},
		AI: &AIConfig{
			Provider:    "github_models",
			Model:       "gpt-4o-mini",
			Temperature: 0.3,
			MaxTokens:   300,
		},
		Plugins: &PluginsConfig{
			Enabled: []string{"logger"},
		},
	}
}

// DefaultJiraConfig returns the jira plugin defaults
func DefaultJiraConfig() *JiraConfig {
	return &JiraConfig{
		ProjectKey:       "OPS",
		IssueType:        "Incident",
		Deduplicate:      true,
		DedupWindowHours: 24,
		SeverityPriority: map[string]string{
			"critical": "Highest",
			"high":     "High",
			"warning":  "High",
			"info":     "Medium",
			"low":      "Low",
		},
	}
}

// Validate validates the configuration and applies defaults
func (c *Config) Validate() error {
	if c.Server == nil {
		c.Server = DefaultConfig().Server
	}
	if c.Server.Listen == "" {
		c.Server.Listen = defaultListen
	}
	if c.Logging == nil {
		c.Logging = DefaultConfig().Logging
	}
	if c.AI == nil {
		c.AI = DefaultConfig().AI
	}
	if c.Plugins == nil {
		c.Plugins = DefaultConfig().Plugins
	}

	for name, server := range c.MCPServers {
		if server == nil {
			return fmt.Errorf("mcp server %q: empty configuration", name)
		}
		if name == "" {
			return fmt.Errorf("mcp server with empty name")
		}
		if server.Endpoint == "" {
			return fmt.Errorf("mcp server %q: endpoint is required", name)
		}
		server.Name = name
		if server.TimeoutSeconds <= 0 {
			server.TimeoutSeconds = defaultMCPTimeoutSecs
		}
		if !server.enabledSet {
			server.Enabled = true
		}
	}

	if c.Plugins.Jira == nil {
		c.Plugins.Jira = DefaultJiraConfig()
	} else {
		defaults := DefaultJiraConfig()
		if c.Plugins.Jira.ProjectKey == "" {
			c.Plugins.Jira.ProjectKey = defaults.ProjectKey
		}
		if c.Plugins.Jira.IssueType == "" {
			c.Plugins.Jira.IssueType = defaults.IssueType
		}
		if c.Plugins.Jira.DedupWindowHours <= 0 {
			c.Plugins.Jira.DedupWindowHours = defaults.DedupWindowHours
		}
		if len(c.Plugins.Jira.SeverityPriority) == 0 {
			c.Plugins.Jira.SeverityPriority = defaults.SeverityPriority
		}
	}

	if c.Plugins.Recall == nil {
		c.Plugins.Recall = &RecallConfig{QueryLimit: 100}
	} else if c.Plugins.Recall.QueryLimit <= 0 {
		c.Plugins.Recall.QueryLimit = 100
	}

	return nil
}
