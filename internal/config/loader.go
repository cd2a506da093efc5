package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDataDir = ".alertops"
	ConfigFileName = "config.yaml"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadFromFile loads configuration from a specific YAML file
func LoadFromFile(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadConfigFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load loads configuration from file, environment, and defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	setupViper()

	configPath := viper.GetString("config")
	if configPath != "" {
		if err := loadConfigFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if found, path, err := findAndLoadConfigFile(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	} else if !found {
		// No config file anywhere; run with defaults plus env overrides
		if err := viper.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal environment overrides: %w", err)
		}
	}

	// Listen address and log level can always be overridden from env
	if listen := viper.GetString("listen"); listen != "" {
		cfg.Server.Listen = listen
	}
	if level := viper.GetString("log-level"); level != "" {
		cfg.Server.LogLevel = level
	}

	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func finalize(cfg *Config) error {
	if cfg.DataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(homeDir, DefaultDataDir)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", cfg.DataDir, err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// setupViper configures viper with environment variable handling
func setupViper() {
	viper.SetEnvPrefix("ALERTOPS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

// loadConfigFile reads a YAML config file into cfg, substituting ${VAR}
// references from the process environment first
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	expanded := substituteEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// substituteEnvVars replaces ${VAR} references with environment values.
// Unset variables are replaced with an empty string so optional tokens
// can be omitted without breaking the YAML parse.
func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

// findAndLoadConfigFile searches common locations for a config file
func findAndLoadConfigFile(cfg *Config) (found bool, path string, err error) {
	candidates := []string{ConfigFileName}

	if homeDir, homeErr := os.UserHomeDir(); homeErr == nil {
		candidates = append(candidates, filepath.Join(homeDir, DefaultDataDir, ConfigFileName))
	}

	for _, candidate := range candidates {
		if _, statErr := os.Stat(candidate); statErr == nil {
			return true, candidate, loadConfigFile(candidate, cfg)
		}
	}

	return false, "", nil
}
