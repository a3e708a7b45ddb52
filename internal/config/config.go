// Package config loads and validates the YAML language-server configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config contains LSP server configuration keyed by language
type Config struct {
	Servers map[string]*ServerConfig `yaml:"servers"`
}

// ServerConfig contains configuration for a single language server
type ServerConfig struct {
	Command               string      `yaml:"command"`
	Args                  []string    `yaml:"args"`
	WorkingDir            string      `yaml:"working_dir,omitempty"`
	InitializationOptions interface{} `yaml:"initialization_options,omitempty"`

	// SettleDelay is how long to wait after the initialized notification
	// before declaring the server ready. Some servers report capabilities
	// before they can actually answer requests.
	SettleDelay time.Duration `yaml:"settle_delay,omitempty"`

	// RequestTimeout bounds each outgoing request; zero means DefaultRequestTimeout.
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`

	// Sections holds the fixed replies for inbound workspace/configuration
	// requests, keyed by section name.
	Sections map[string]interface{} `yaml:"sections,omitempty"`
}

// DefaultRequestTimeout applies when a server config does not set one
const DefaultRequestTimeout = 30 * time.Second

// Timeout returns the effective request timeout for this server
func (s *ServerConfig) Timeout() time.Duration {
	if s.RequestTimeout > 0 {
		return s.RequestTimeout
	}
	return DefaultRequestTimeout
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func validateConfig(config *Config) error {
	if config.Servers == nil {
		return fmt.Errorf("servers configuration is required")
	}

	for language, serverConfig := range config.Servers {
		if serverConfig.Command == "" {
			return fmt.Errorf("command is required for language %s", language)
		}
	}

	return nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lsp-bridge", "config.yaml")
}

// GetDefaultConfig returns a default configuration for common language servers
func GetDefaultConfig() *Config {
	return &Config{
		Servers: map[string]*ServerConfig{
			"go": {
				Command: "gopls",
				Args:    []string{"serve"},
			},
			"python": {
				Command: "pylsp",
				Args:    []string{},
			},
			"javascript": {
				Command: "typescript-language-server",
				Args:    []string{"--stdio"},
			},
			"typescript": {
				Command: "typescript-language-server",
				Args:    []string{"--stdio"},
			},
			"rust": {
				Command:     "rust-analyzer",
				Args:        []string{},
				SettleDelay: 500 * time.Millisecond,
			},
		},
	}
}
