package config

import "time"

// ExecutionConfig configures the language runners.
type ExecutionConfig struct {
	// Default timeout for a single invocation
	DefaultTimeout string `yaml:"default_timeout" json:"default_timeout,omitempty"`

	// Captured stdout/stderr cap per child process
	MaxOutputBytes int64 `yaml:"max_output_bytes" json:"max_output_bytes,omitempty"`

	// Interpreter binary per language (python, bash, javascript, typescript, clojure)
	Interpreters map[string]string `yaml:"interpreters" json:"interpreters,omitempty"`

	// Working directory for child processes
	WorkingDirectory string `yaml:"working_directory" json:"working_directory,omitempty"`

	// Environment variables passed through to child processes
	AllowedEnvVars []string `yaml:"allowed_env_vars" json:"allowed_env_vars,omitempty"`
}

// DefaultExecutionConfig returns the default runner configuration.
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{
		DefaultTimeout: "30s",
		MaxOutputBytes: 10 << 20,
		Interpreters: map[string]string{
			"python":     "python3",
			"bash":       "bash",
			"javascript": "node",
			"typescript": "deno",
			"clojure":    "bb",
		},
		AllowedEnvVars: []string{"PATH", "HOME", "LANG", "TMPDIR"},
	}
}

// Interpreter returns the configured binary for a language, or fallback.
func (c ExecutionConfig) Interpreter(language, fallback string) string {
	if bin, ok := c.Interpreters[language]; ok && bin != "" {
		return bin
	}
	return fallback
}

// Timeout returns the default runner timeout as a duration.
func (c ExecutionConfig) Timeout() time.Duration {
	return parseDuration(c.DefaultTimeout, 30*time.Second)
}
