// Package language names the execution languages, maps filename suffixes to
// languages and content types, and detects the language of a code blob.
package language

import (
	"regexp"
	"strings"
)

// Language is an execution language.
type Language string

const (
	Go         Language = "go"
	Python     Language = "python"
	Bash       Language = "bash"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Clojure    Language = "clojure"

	// Host is the language executed in-process.
	Host = Go
)

// All lists every supported language.
var All = []Language{Go, Python, Bash, JavaScript, TypeScript, Clojure}

// Parse returns the language named s, accepting common short names.
func Parse(s string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "go", "golang":
		return Go, true
	case "python", "py", "python3":
		return Python, true
	case "bash", "sh", "shell":
		return Bash, true
	case "javascript", "js", "node":
		return JavaScript, true
	case "typescript", "ts", "deno":
		return TypeScript, true
	case "clojure", "clj", "bb", "babashka":
		return Clojure, true
	}
	return "", false
}

// IsHost reports whether l runs in-process.
func (l Language) IsHost() bool { return l == Host }

var entryFuncRe = regexp.MustCompile(`(?m)^func\s+main\s*\(`)

// HasEntryFunction reports whether host-language code defines main.
func HasEntryFunction(code string) bool {
	return entryFuncRe.MatchString(code)
}

// SupportsChaining reports whether code in language l can sit in a
// non-terminal chain position. Every non-host language can; host-language
// code needs an entry function to receive chained input.
func SupportsChaining(l Language, code string) bool {
	if l != Host {
		return true
	}
	return HasEntryFunction(code)
}
