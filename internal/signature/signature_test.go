package signature

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viewer/internal/language"
)

func TestAnalyze_Go(t *testing.T) {
	code := "package main\n\nfunc main(name string, count int) string {\n\treturn name\n}\n"
	sig, err := Analyze(context.Background(), language.Go, code)
	require.NoError(t, err)

	assert.True(t, sig.HasEntry)
	assert.True(t, sig.Supported())
	assert.Equal(t, []string{"name", "count"}, sig.Order)
	assert.Equal(t, []string{"name", "count"}, sig.Required)
	assert.Equal(t, "int", sig.Types["count"])
}

func TestAnalyze_GoSharedType(t *testing.T) {
	sig, err := Analyze(context.Background(), language.Go, "func main(a, b string) string { return a + b }")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, sig.Required)
}

func TestAnalyze_GoVariadicRejected(t *testing.T) {
	sig, err := Analyze(context.Background(), language.Go, "func main(parts ...string) string { return \"\" }")
	require.NoError(t, err)
	assert.True(t, sig.HasEntry)
	assert.False(t, sig.Supported())
}

func TestAnalyze_GoScript(t *testing.T) {
	sig, err := Analyze(context.Background(), language.Go, "x := 1\nx")
	require.NoError(t, err)
	assert.False(t, sig.HasEntry)
	assert.Empty(t, sig.Order)
}

func TestAnalyze_Python(t *testing.T) {
	code := "import json\n\ndef main(name, greeting: str = 'hi', *, loud=False):\n    return greeting + name\n"
	sig, err := Analyze(context.Background(), language.Python, code)
	require.NoError(t, err)

	assert.True(t, sig.HasEntry)
	assert.True(t, sig.Supported(), sig.Unsupported)
	assert.Equal(t, []string{"name"}, sig.Required)
	assert.Equal(t, []string{"greeting", "loud"}, sig.Optional)
	assert.True(t, sig.IsOptional("greeting"))
	assert.Equal(t, "str", sig.Types["greeting"])
}

func TestAnalyze_PythonVariadicRejected(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"args", "def main(*args):\n    return ''\n"},
		{"kwargs", "def main(x, **kwargs):\n    return x\n"},
		{"positional only", "def main(x, /, y):\n    return x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := Analyze(context.Background(), language.Python, tt.code)
			require.NoError(t, err)
			assert.True(t, sig.HasEntry)
			assert.NotEmpty(t, sig.Unsupported)
		})
	}
}

func TestAnalyze_PythonDecorated(t *testing.T) {
	code := "import functools\n\n@functools.cache\ndef main(input):\n    return input\n"
	sig, err := Analyze(context.Background(), language.Python, code)
	require.NoError(t, err)
	assert.True(t, sig.HasEntry)
	assert.Equal(t, []string{"input"}, sig.Required)
}

func TestAnalyze_PythonRedefinedMain(t *testing.T) {
	code := "def main(a: int, *rest):\n    return a\n\ndef main(b=2):\n    return b\n"
	sig, err := Analyze(context.Background(), language.Python, code)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, sig.Order)
	assert.Empty(t, sig.Required)
	assert.Equal(t, []string{"b"}, sig.Optional)
	assert.Empty(t, sig.Types)
	assert.True(t, sig.Supported(), "the earlier definition's variadic parameter no longer applies")
}

func TestAnalyze_JavaScript(t *testing.T) {
	sig, err := Analyze(context.Background(), language.JavaScript,
		"export function main(input, suffix = '!') { return input + suffix }")
	require.NoError(t, err)
	assert.True(t, sig.HasEntry)
	assert.Equal(t, []string{"input"}, sig.Required)
	assert.Equal(t, []string{"suffix"}, sig.Optional)

	sig, err = Analyze(context.Background(), language.JavaScript, "const main = (a, ...rest) => a")
	require.NoError(t, err)
	assert.True(t, sig.HasEntry)
	assert.False(t, sig.Supported())
}

func TestAnalyze_TypeScript(t *testing.T) {
	sig, err := Analyze(context.Background(), language.TypeScript,
		"export function main(name: string, times?: number): string {\n  return name\n}\n")
	require.NoError(t, err)
	assert.True(t, sig.HasEntry)
	assert.Equal(t, []string{"name"}, sig.Required)
	assert.Equal(t, []string{"times"}, sig.Optional)
	assert.Equal(t, "string", sig.Types["name"])
}

func TestAnalyze_Clojure(t *testing.T) {
	sig, err := Analyze(context.Background(), language.Clojure, "(defn main [input sep] (str input sep))")
	require.NoError(t, err)
	assert.Equal(t, []string{"input", "sep"}, sig.Required)

	sig, err = Analyze(context.Background(), language.Clojure, "(defn main [x & more] x)")
	require.NoError(t, err)
	assert.False(t, sig.Supported())
}

func TestAnalyze_Bash(t *testing.T) {
	sig, err := Analyze(context.Background(), language.Bash, "tr a-z A-Z")
	require.NoError(t, err)
	assert.False(t, sig.HasEntry)
	assert.True(t, sig.Supported())
}

func TestDescribe(t *testing.T) {
	sig, err := Analyze(context.Background(), language.Python, "def main(a, b=1):\n    pass\n")
	require.NoError(t, err)
	assert.Equal(t, "main(a, b=…)", sig.Describe())
}
