package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		code string
		want Language
	}{
		{"python shebang", "#!/usr/bin/env python3\nprint('hi')", Python},
		{"bash shebang", "#!/bin/bash\nx=1", Bash},
		{"env bash shebang", "#!/usr/bin/env bash\nls", Bash},
		{"node shebang", "#!/usr/bin/env node\nfoo()", JavaScript},
		{"deno shebang", "#!/usr/bin/env -S deno run\nfoo()", TypeScript},
		{"babashka shebang", "#!/usr/bin/env bb\n(println 1)", Clojure},
		{"shebang beats markers", "#!/bin/sh\ndef main(x):\n  pass", Bash},
		{"go package", "package main\n\nfunc main(name string) string { return name }", Go},
		{"go func only", "func main(name string) string {\n\treturn name\n}", Go},
		{"clojure ns", "(ns hello.core)\n(defn main [x] x)", Clojure},
		{"clojure defn", "(defn main [input] (str input \"!\"))", Clojure},
		{"typescript typed function", "export function main(name: string): string {\n  return name;\n}", TypeScript},
		{"typescript interface", "interface Args {\n  name: string\n}", TypeScript},
		{"javascript export", "export default function main(name) { return name }", JavaScript},
		{"javascript async", "async function main(input) {\n  return input\n}", JavaScript},
		{"javascript module exports", "module.exports = { main }", JavaScript},
		{"python def", "def main(name, greeting='hi'):\n    return greeting + name\n", Python},
		{"python import", "import json\nprint(json.dumps({}))", Python},
		{"shell majority", "echo hello | tr a-z A-Z", Bash},
		{"shell variables", "cat $1 | grep -v foo | sort | uniq", Bash},
		{"prose mentioning a command", "please remember to echo this message back to every reader of the page", Go},
		{"empty defaults to host", "", Go},
		{"go script", "x := 40\nx + 2", Go},
		{"go script var", "var x = 40\nx + 2", Go},
		{"go script const", "const greeting = \"hi\"\ngreeting", Go},
		{"javascript let", "let total = 1\ntotal", JavaScript},
		{"javascript const semicolon", "const name = 'x';\nname", JavaScript},
		{"javascript const arrow", "const main = (input) => input", JavaScript},
		{"javascript require", "const fs = require('fs')", JavaScript},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.code))
		})
	}
}

func TestSupportsChaining(t *testing.T) {
	assert.True(t, SupportsChaining(Python, "print(1)"))
	assert.True(t, SupportsChaining(Bash, "echo hi"))
	assert.True(t, SupportsChaining(Go, "func main(x string) string { return x }"))
	assert.False(t, SupportsChaining(Go, "x := 1\nx"))
	assert.False(t, SupportsChaining(Go, "func helper() {}"))
}

func TestSplitSuffix(t *testing.T) {
	stem, ext, ok := SplitSuffix("echo.py")
	assert.True(t, ok)
	assert.Equal(t, "echo", stem)
	assert.Equal(t, "py", ext)

	_, ext, ok = SplitSuffix("README.TXT")
	assert.True(t, ok)
	assert.Equal(t, "txt", ext)

	_, _, ok = SplitSuffix("v1.2")
	assert.False(t, ok, "numeric suffix is not a filename suffix")

	_, _, ok = SplitSuffix("plain")
	assert.False(t, ok)

	_, _, ok = SplitSuffix(".hidden")
	assert.False(t, ok, "a suffix needs a stem")
}

func TestSuffixTables(t *testing.T) {
	l, ok := ExecutableSuffix("PY")
	assert.True(t, ok)
	assert.Equal(t, Python, l)

	_, ok = ExecutableSuffix("txt")
	assert.False(t, ok)

	ct, ok := DataSuffix("json")
	assert.True(t, ok)
	assert.Equal(t, "application/json", ct)

	for _, lang := range All {
		back, ok := ExecutableSuffix(lang.Suffix())
		assert.True(t, ok, lang)
		assert.Equal(t, lang, back)
	}
}

func TestParse(t *testing.T) {
	l, ok := Parse("Py")
	assert.True(t, ok)
	assert.Equal(t, Python, l)

	_, ok = Parse("cobol")
	assert.False(t, ok)
}
