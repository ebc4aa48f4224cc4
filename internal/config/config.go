package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all viewer configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// HTTP listener
	Server ServerConfig `yaml:"server"`

	// SQLite storage and workspace directory
	Storage StorageConfig `yaml:"storage"`

	// Language runners
	Execution ExecutionConfig `yaml:"execution"`

	// do/while caps
	ControlFlow ControlFlowConfig `yaml:"control_flow"`

	// Content addressing limits
	Content ContentConfig `yaml:"content"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address      string `yaml:"address"`
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
}

// ContentConfig bounds the size of content the engine will address.
type ContentConfig struct {
	MaxContentBytes int64 `yaml:"max_content_bytes"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "viewer",
		Version: "0.3.0",

		Server: ServerConfig{
			Address:      ":5000",
			ReadTimeout:  "30s",
			WriteTimeout: "90s",
		},

		Storage:     DefaultStorageConfig(),
		Execution:   DefaultExecutionConfig(),
		ControlFlow: DefaultControlFlowConfig(),

		Content: ContentConfig{
			MaxContentBytes: 16 << 20,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("VIEWER_ADDR"); addr != "" {
		c.Server.Address = addr
	}
	if path := os.Getenv("VIEWER_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
	if driver := os.Getenv("VIEWER_DB_DRIVER"); driver != "" {
		c.Storage.Driver = driver
	}
	if ws := os.Getenv("VIEWER_WORKSPACE"); ws != "" {
		c.Storage.Workspace = ws
	}
	if lvl := os.Getenv("VIEWER_LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
	}
}

// ValidDrivers lists the registered database/sql driver names.
var ValidDrivers = []string{"sqlite3", "sqlite"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	valid := false
	for _, d := range ValidDrivers {
		if c.Storage.Driver == d {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid storage driver: %s (valid: %v)", c.Storage.Driver, ValidDrivers)
	}
	if c.Content.MaxContentBytes <= 0 {
		return fmt.Errorf("content.max_content_bytes must be positive")
	}
	if c.ControlFlow.MaxIterations <= 0 {
		return fmt.Errorf("control_flow.max_iterations must be positive")
	}
	return nil
}

// GetReadTimeout returns the HTTP read timeout as a duration.
func (c *Config) GetReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 30*time.Second)
}

// GetWriteTimeout returns the HTTP write timeout as a duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 90*time.Second)
}

// GetExecutionTimeout returns the default runner timeout as a duration.
func (c *Config) GetExecutionTimeout() time.Duration {
	return c.Execution.Timeout()
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
