package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config represents the main Agora configuration
type Config struct {
	// Gateway server
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Database
	Database DatabaseConfig `json:"database" mapstructure:"database"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Debate defaults
	Debate DebateConfig `json:"debate" mapstructure:"debate"`

	// Retention of completed debates
	Retention RetentionConfig `json:"retention" mapstructure:"retention"`

	// AI configuration
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// GatewayConfig holds gateway server configuration
type GatewayConfig struct {
	Port         int    `json:"port" mapstructure:"port"`
	Host         string `json:"host" mapstructure:"host"`
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DebateConfig holds debate defaults
type DebateConfig struct {
	DefaultMaxTurns int `json:"default_max_turns" mapstructure:"default_max_turns"`
}

// RetentionConfig holds the retention job settings for completed debates
type RetentionConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Schedule string `json:"schedule" mapstructure:"schedule"` // cron expression
	MaxAge   int    `json:"max_age" mapstructure:"max_age"`   // days
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	Profiles []AIProfile `json:"profiles" mapstructure:"profiles"`
}

// AIProfile represents an AI provider credential profile
type AIProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			SharedSecret: "",
		},
		Database: DatabaseConfig{
			Path: "",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Debate: DebateConfig{
			DefaultMaxTurns: 20,
		},
		Retention: RetentionConfig{
			Enabled:  false,
			Schedule: "0 3 * * *",
			MaxAge:   30,
		},
		AI: AIConfig{
			Profiles: []AIProfile{},
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("invalid gateway port: %d", c.Gateway.Port)
	}

	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	if c.Debate.DefaultMaxTurns <= 0 {
		return fmt.Errorf("default max turns must be positive")
	}

	if c.Retention.Enabled {
		if c.Retention.Schedule == "" {
			return fmt.Errorf("retention schedule is required when retention is enabled")
		}
		if c.Retention.MaxAge <= 0 {
			return fmt.Errorf("retention max age must be positive")
		}
	}

	for i, profile := range c.AI.Profiles {
		if profile.ID == "" {
			return fmt.Errorf("AI profile %d: ID is required", i)
		}
		if profile.APIKey == "" {
			return fmt.Errorf("AI profile %s: api_key is required", profile.ID)
		}
		switch profile.Provider {
		case "anthropic":
			if !strings.HasPrefix(profile.APIKey, "sk-ant-") {
				return fmt.Errorf("AI profile %s: invalid Anthropic API key format (should start with sk-ant-)", profile.ID)
			}
		case "openai":
			if !strings.HasPrefix(profile.APIKey, "sk-") {
				return fmt.Errorf("AI profile %s: invalid OpenAI API key format (should start with sk-)", profile.ID)
			}
		default:
			return fmt.Errorf("AI profile %s: invalid provider %s (must be: anthropic, openai)", profile.ID, profile.Provider)
		}
	}

	return nil
}
