// Package runner executes code blobs. The host language runs in-process on
// the yaegi interpreter; every other language runs as a child process under
// a hard timeout.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"viewer/internal/config"
	"viewer/internal/language"
	"viewer/internal/signature"
)

// ErrTimeout is returned when an invocation exceeds its deadline.
var ErrTimeout = errors.New("runner timed out")

// Invocation is one call of a code blob.
type Invocation struct {
	Name      string
	Language  language.Language
	Code      string
	Signature signature.Signature

	// Args holds bound parameters by name; Positional holds the same values
	// in declaration order.
	Args       map[string]any
	Positional []any

	// Input is offered on stdin.
	Input string

	// Timeout overrides the runner default when positive.
	Timeout time.Duration
}

// Output is what an invocation produced.
type Output struct {
	Output      string        `json:"output"`
	ContentType string        `json:"content_type,omitempty"`
	Stdout      string        `json:"stdout,omitempty"`
	Stderr      string        `json:"stderr,omitempty"`
	ExitCode    int           `json:"exit_code"`
	Duration    time.Duration `json:"duration"`
	Truncated   bool          `json:"truncated,omitempty"`
}

// ExecutionError reports that user code raised or exited non-zero.
type ExecutionError struct {
	Language language.Language
	Message  string
	Stderr   string
	ExitCode int
}

func (e *ExecutionError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = lastLine(e.Stderr)
	}
	if msg == "" {
		msg = fmt.Sprintf("exit status %d", e.ExitCode)
	}
	return fmt.Sprintf("%s execution failed: %s", e.Language, msg)
}

// LanguageRunner executes code of one language.
type LanguageRunner interface {
	Language() language.Language
	Run(ctx context.Context, inv Invocation) (*Output, error)
}

// Registry maps languages to runners.
type Registry struct {
	mu      sync.RWMutex
	runners map[language.Language]LanguageRunner
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{runners: make(map[language.Language]LanguageRunner)}
}

// NewDefaultRegistry registers the Go runner and a subprocess runner for
// every other language, configured from cfg.
func NewDefaultRegistry(cfg config.ExecutionConfig) *Registry {
	exec := NewExecutor(ExecutorConfig{
		DefaultTimeout:     cfg.Timeout(),
		MaxOutputBytes:     cfg.MaxOutputBytes,
		WorkingDirectory:   cfg.WorkingDirectory,
		AllowedEnvironment: cfg.AllowedEnvVars,
	})

	r := NewRegistry()
	r.Register(NewGoRunner(cfg.Timeout()))
	r.Register(NewPythonRunner(exec, cfg.Interpreter(string(language.Python), "python3")))
	r.Register(NewBashRunner(exec, cfg.Interpreter(string(language.Bash), "bash")))
	r.Register(NewJavaScriptRunner(exec, cfg.Interpreter(string(language.JavaScript), "node")))
	r.Register(NewTypeScriptRunner(exec, cfg.Interpreter(string(language.TypeScript), "deno")))
	r.Register(NewClojureRunner(exec, cfg.Interpreter(string(language.Clojure), "bb")))
	return r
}

// Register adds or replaces the runner for its language.
func (r *Registry) Register(lr LanguageRunner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runners[lr.Language()] = lr
}

// Get returns the runner for lang.
func (r *Registry) Get(lang language.Language) (LanguageRunner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lr, ok := r.runners[lang]
	return lr, ok
}

// Run dispatches inv to the runner for its language.
func (r *Registry) Run(ctx context.Context, inv Invocation) (*Output, error) {
	lr, ok := r.Get(inv.Language)
	if !ok {
		return nil, fmt.Errorf("no runner registered for language %q", inv.Language)
	}
	return lr.Run(ctx, inv)
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n ")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return strings.TrimSpace(s)
}
