package runner

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"viewer/internal/config"
	"viewer/internal/language"
)

func requireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

func TestGoRunner_EntryFunction(t *testing.T) {
	code := `package main

import "strings"

func main(name string) string {
	return strings.ToUpper(name)
}
`
	out, err := NewGoRunner(5*time.Second).Run(context.Background(), Invocation{
		Name:       "echo",
		Language:   language.Go,
		Code:       code,
		Positional: []any{"hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out.Output)
}

func TestGoRunner_ConvertsArguments(t *testing.T) {
	code := `func main(n int, scale float64, loud bool) string {
	if loud {
		return "big"
	}
	return "small"
}`
	out, err := NewGoRunner(5*time.Second).Run(context.Background(), Invocation{
		Language:   language.Go,
		Code:       code,
		Positional: []any{"3", float64(2), "true"},
	})
	require.NoError(t, err)
	assert.Equal(t, "big", out.Output)
}

func TestGoRunner_MapResult(t *testing.T) {
	code := `func main(input string) map[string]any {
	return map[string]any{"output": "<b>" + input + "</b>", "content_type": "text/html"}
}`
	out, err := NewGoRunner(5*time.Second).Run(context.Background(), Invocation{
		Language:   language.Go,
		Code:       code,
		Positional: []any{"x"},
	})
	require.NoError(t, err)
	assert.Equal(t, "<b>x</b>", out.Output)
	assert.Equal(t, "text/html", out.ContentType)
}

func TestGoRunner_ReturnedError(t *testing.T) {
	code := `import "errors"

func main(input string) (string, error) {
	return "", errors.New("bad input")
}`
	_, err := NewGoRunner(5*time.Second).Run(context.Background(), Invocation{
		Language:   language.Go,
		Code:       code,
		Positional: []any{"x"},
	})
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr), "got %v", err)
	assert.Contains(t, execErr.Error(), "bad input")
}

func TestGoRunner_Script(t *testing.T) {
	out, err := NewGoRunner(5*time.Second).Run(context.Background(), Invocation{
		Language: language.Go,
		Code:     "x := 40\nx + 2",
	})
	require.NoError(t, err)
	assert.Equal(t, "42", out.Output)

	out, err = NewGoRunner(5*time.Second).Run(context.Background(), Invocation{
		Language: language.Go,
		Code:     "import \"fmt\"\nfmt.Print(\"printed\")",
	})
	require.NoError(t, err)
	assert.Equal(t, "printed", out.Output)
}

func TestGoRunner_SyntaxError(t *testing.T) {
	_, err := NewGoRunner(5*time.Second).Run(context.Background(), Invocation{
		Language: language.Go,
		Code:     "func main(x string) string { return x",
	})
	var execErr *ExecutionError
	assert.True(t, errors.As(err, &execErr))
}

func TestEntrySource(t *testing.T) {
	src := entrySource("func main(a string) string { return a }")
	assert.True(t, strings.HasPrefix(src, "package main"))
	assert.Contains(t, src, "func serverMain(a string)")
	assert.Contains(t, src, "var ServerEntry = serverMain")
}

func TestExecutor_Timeout(t *testing.T) {
	defer goleak.VerifyNone(t)
	requireBinary(t, "sleep")

	e := NewExecutor(ExecutorConfig{AllowedEnvironment: []string{"PATH"}})
	res, err := e.Execute(context.Background(), Command{
		Binary:    "sleep",
		Arguments: []string{"10"},
		Timeout:   100 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.True(t, res.Killed)
}

func TestExecutor_NonZeroExitIsNotAnError(t *testing.T) {
	defer goleak.VerifyNone(t)
	requireBinary(t, "sh")

	e := NewExecutor(ExecutorConfig{AllowedEnvironment: []string{"PATH"}})
	res, err := e.Execute(context.Background(), Command{
		Binary:    "sh",
		Arguments: []string{"-c", "echo oops >&2; exit 3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "oops\n", res.Stderr)
}

func TestExecutor_TruncatesOutput(t *testing.T) {
	requireBinary(t, "sh")

	e := NewExecutor(ExecutorConfig{MaxOutputBytes: 4, AllowedEnvironment: []string{"PATH"}})
	res, err := e.Execute(context.Background(), Command{Binary: "sh", Arguments: []string{"-c", "echo 0123456789"}})
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, "0123", res.Stdout)
}

func TestBashRunner(t *testing.T) {
	defer goleak.VerifyNone(t)
	requireBinary(t, "bash")

	r := NewBashRunner(NewExecutor(ExecutorConfig{AllowedEnvironment: []string{"PATH"}}), "bash")
	out, err := r.Run(context.Background(), Invocation{
		Language: language.Bash,
		Code:     "tr a-z A-Z",
		Input:    "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out.Output)

	_, err = r.Run(context.Background(), Invocation{Language: language.Bash, Code: "exit 2"})
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, 2, execErr.ExitCode)
}

func TestPythonRunner(t *testing.T) {
	requireBinary(t, "python3")

	r := NewPythonRunner(NewExecutor(ExecutorConfig{AllowedEnvironment: []string{"PATH"}}), "python3")
	out, err := r.Run(context.Background(), Invocation{
		Language: language.Python,
		Code:     "def main(name, suffix='!'):\n    print('log line')\n    return name.upper() + suffix\n",
		Args:     map[string]any{"name": "ada"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ADA!", out.Output)
	assert.Equal(t, "log line\n", out.Stdout)

	out, err = r.Run(context.Background(), Invocation{
		Language: language.Python,
		Code:     "import sys\nprint(sys.stdin.read()[::-1], end='')\n",
		Input:    "abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "cba", out.Output)

	_, err = r.Run(context.Background(), Invocation{Language: language.Python, Code: "raise ValueError('nope')\n"})
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Contains(t, execErr.Error(), "ValueError")
}

func TestJavaScriptRunner(t *testing.T) {
	requireBinary(t, "node")

	r := NewJavaScriptRunner(NewExecutor(ExecutorConfig{AllowedEnvironment: []string{"PATH"}}), "node")
	out, err := r.Run(context.Background(), Invocation{
		Language:   language.JavaScript,
		Code:       "function main(name) { return { output: name + '?', content_type: 'text/plain' } }",
		Positional: []any{"who"},
	})
	require.NoError(t, err)
	assert.Equal(t, "who?", out.Output)
	assert.Equal(t, "text/plain", out.ContentType)
}

func TestJSModule(t *testing.T) {
	name, src := jsModule("function main(x) { return x }", "js")
	assert.Equal(t, "server.mjs", name)
	assert.Contains(t, src, "export { main };")

	name, src = jsModule("module.exports = { main: (x) => x }", "js")
	assert.Equal(t, "server.cjs", name)
	assert.NotContains(t, src, "export {")

	name, _ = jsModule("export function main(x: string) { return x }", "ts")
	assert.Equal(t, "server.ts", name)
}

func TestSplitResult(t *testing.T) {
	printed, res, err := splitResult("hi\n\n" + resultMarker + "\n{\"output\":\"x\",\"content_type\":null}\n")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", printed)
	require.NotNil(t, res.Output)
	assert.Equal(t, "x", *res.Output)
	assert.Nil(t, res.ContentType)

	_, _, err = splitResult("no marker")
	assert.Error(t, err)
}

func TestDefaultRegistry(t *testing.T) {
	reg := NewDefaultRegistry(config.DefaultExecutionConfig())
	for _, lang := range language.All {
		lr, ok := reg.Get(lang)
		require.True(t, ok, lang)
		assert.Equal(t, lang, lr.Language())
	}

	py, _ := reg.Get(language.Python)
	assert.Equal(t, "python3", py.(*SubprocessRunner).Binary())

	_, err := NewRegistry().Run(context.Background(), Invocation{Language: language.Go})
	assert.Error(t, err)
}
