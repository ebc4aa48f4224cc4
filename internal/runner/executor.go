package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"viewer/internal/logging"
)

// ExecutorConfig holds child-process defaults.
type ExecutorConfig struct {
	DefaultTimeout     time.Duration
	MaxOutputBytes     int64
	WorkingDirectory   string
	AllowedEnvironment []string
}

// Command is one child process to run.
type Command struct {
	Binary      string
	Arguments   []string
	Stdin       string
	Environment []string
	Dir         string
	Timeout     time.Duration
}

// ProcessResult is the captured outcome of a Command.
type ProcessResult struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	StartedAt  time.Time
	Duration   time.Duration
	Killed     bool
	KillReason string
	Truncated  bool
}

// Executor runs commands directly on the host using os/exec. Each child gets
// its own process group so that the whole tree is killed on timeout or
// cancellation.
type Executor struct {
	config ExecutorConfig
}

// NewExecutor creates an executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = 10 << 20
	}
	logging.RunnerDebug("Creating Executor: timeout=%s, maxOutput=%d bytes", cfg.DefaultTimeout, cfg.MaxOutputBytes)
	return &Executor{config: cfg}
}

// Execute runs cmd. A deadline overrun returns the partial result and an
// error wrapping ErrTimeout; a non-zero exit is not an error.
func (e *Executor) Execute(ctx context.Context, cmd Command) (*ProcessResult, error) {
	timer := logging.StartTimer(logging.CategoryRunner, "child process "+cmd.Binary)
	defer timer.Stop()

	if cmd.Binary == "" {
		return nil, fmt.Errorf("binary is required")
	}

	timeout := e.config.DefaultTimeout
	if cmd.Timeout > 0 {
		timeout = cmd.Timeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	execCmd := exec.CommandContext(execCtx, cmd.Binary, cmd.Arguments...)
	execCmd.Dir = cmd.Dir
	if execCmd.Dir == "" {
		execCmd.Dir = e.config.WorkingDirectory
	}
	execCmd.Env = e.buildEnvironment(cmd.Environment)
	execCmd.Stdin = strings.NewReader(cmd.Stdin)

	setupProcessGroup(execCmd)
	execCmd.Cancel = func() error { return killProcessGroup(execCmd) }
	execCmd.WaitDelay = time.Second

	var stdoutBuf, stderrBuf bytes.Buffer
	stdout := &limitedWriter{w: &stdoutBuf, max: e.config.MaxOutputBytes}
	stderr := &limitedWriter{w: &stderrBuf, max: e.config.MaxOutputBytes}
	execCmd.Stdout = stdout
	execCmd.Stderr = stderr

	result := &ProcessResult{ExitCode: -1, StartedAt: time.Now()}
	logging.RunnerDebug("Starting process: %s %v", cmd.Binary, cmd.Arguments)

	err := execCmd.Run()

	result.Duration = time.Since(result.StartedAt)
	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()
	if stdout.truncated || stderr.truncated {
		result.Truncated = true
		logging.RunnerWarn("Output truncated: %d bytes discarded", stdout.discarded+stderr.discarded)
	}

	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		result.Killed = true
		result.KillReason = fmt.Sprintf("timeout after %s", timeout)
		logging.RunnerWarn("Process killed (timeout): %s after %s", cmd.Binary, timeout)
		return result, fmt.Errorf("%w: %s after %s", ErrTimeout, cmd.Binary, timeout)
	case errors.Is(execCtx.Err(), context.Canceled):
		result.Killed = true
		result.KillReason = "context canceled"
		logging.RunnerDebug("Process canceled: %s", cmd.Binary)
		return result, fmt.Errorf("%s canceled: %w", cmd.Binary, ctx.Err())
	default:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			logging.RunnerError("Process failed to start: %s - %v", cmd.Binary, err)
			return result, fmt.Errorf("run %s: %w", cmd.Binary, err)
		}
		result.ExitCode = exitErr.ExitCode()
		logging.RunnerDebug("Process exited non-zero: %s -> %d", cmd.Binary, result.ExitCode)
	}

	logging.Runner("Process completed: %s -> exit=%d, duration=%s, stdout=%d bytes",
		cmd.Binary, result.ExitCode, result.Duration, len(result.Stdout))
	return result, nil
}

func (e *Executor) buildEnvironment(cmdEnv []string) []string {
	env := make([]string, 0, len(e.config.AllowedEnvironment)+len(cmdEnv))
	for _, key := range e.config.AllowedEnvironment {
		if val := os.Getenv(key); val != "" {
			env = append(env, key+"="+val)
		}
	}
	return append(env, cmdEnv...)
}

// limitedWriter is an io.Writer that limits total bytes written.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
	discarded int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		lw.truncated = true
		lw.discarded += int64(n)
		return n, nil
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		lw.discarded += int64(n) - remaining
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
