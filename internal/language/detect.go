package language

import (
	"path"
	"regexp"
	"strings"
)

// shebang interpreter names, matched on the base name of each shebang field
var shebangInterpreters = map[string]Language{
	"python":  Python,
	"python3": Python,
	"python2": Python,
	"bash":    Bash,
	"sh":      Bash,
	"zsh":     Bash,
	"dash":    Bash,
	"node":    JavaScript,
	"nodejs":  JavaScript,
	"deno":    TypeScript,
	"ts-node": TypeScript,
	"bun":     TypeScript,
	"bb":      Clojure,
	"clojure": Clojure,
	"clj":     Clojure,
	"yaegi":   Go,
	"gorun":   Go,
}

type marker struct {
	lang Language
	re   *regexp.Regexp
}

// markers are checked in order; the first match wins.
var markers = []marker{
	{Go, regexp.MustCompile(`(?m)^package\s+\w+\s*$`)},
	{Go, regexp.MustCompile(`(?m)^func\s+(\(\w+\s+\*?\w+\)\s*)?\w+\s*\(`)},
	{Clojure, regexp.MustCompile(`(?m)^\s*\((ns|defn-?|def)\s+[\w\-\.\*!?]+`)},
	{TypeScript, regexp.MustCompile(`(?m)^\s*(export\s+)?(interface|enum)\s+\w+\s*\{`)},
	{TypeScript, regexp.MustCompile(`(?m)^\s*(export\s+)?(async\s+)?function\s+\w+\s*\([^)]*\w\s*:\s*[\w\[\]<>|]+`)},
	{TypeScript, regexp.MustCompile(`(?m)^\s*(export\s+)?type\s+\w+\s*=\s*\{`)},
	{JavaScript, regexp.MustCompile(`(?m)^\s*export\s+(default|function|const|let|async|class)\b`)},
	{JavaScript, regexp.MustCompile(`\bmodule\.exports\b`)},
	{JavaScript, regexp.MustCompile(`\basync\s+function\b`)},
	{JavaScript, regexp.MustCompile(`(?m)^\s*let\s+\w+\s*=`)},
	// var and const also start Go scripts, so they need JavaScript-only
	// syntax on the same line.
	{JavaScript, regexp.MustCompile(`(?m)^\s*(const|var)\s+\w+\s*=.*(;\s*$|=>|\brequire\s*\()`)},
	{JavaScript, regexp.MustCompile(`\bconsole\.log\s*\(`)},
	{Python, regexp.MustCompile(`(?m)^\s*(async\s+)?def\s+\w+\s*\(.*\)\s*(->\s*[^:]+)?:\s*$`)},
	{Python, regexp.MustCompile(`(?m)^\s*(from\s+[\w\.]+\s+import\s+\w+|import\s+[\w\.]+(\s+as\s+\w+)?\s*$)`)},
}

// shell vocabulary for the majority vote
var shellWords = map[string]bool{
	"echo": true, "printf": true, "cat": true, "grep": true, "egrep": true, "sed": true, "awk": true,
	"ls": true, "cd": true, "pwd": true, "cut": true, "sort": true, "uniq": true, "head": true,
	"tail": true, "tr": true, "wc": true, "read": true, "export": true, "set": true, "unset": true,
	"if": true, "then": true, "else": true, "elif": true, "fi": true, "for": true, "in": true,
	"do": true, "done": true, "while": true, "until": true, "case": true, "esac": true,
	"test": true, "xargs": true, "find": true, "curl": true, "wget": true, "date": true,
	"env": true, "true": true, "false": true, "exit": true, "local": true, "return": true,
	"jq": true, "base64": true, "mkdir": true, "rm": true, "cp": true, "mv": true, "touch": true,
	"tee": true, "rev": true, "seq": true, "sleep": true, "basename": true, "dirname": true,
	"sha256sum": true, "md5sum": true, "shift": true, "source": true, "eval": true,
}

var shellPunctuation = map[string]bool{
	"|": true, "||": true, "&&": true, ">": true, ">>": true, "<": true, "<<": true, ";": true,
	";;": true, "[": true, "]": true, "[[": true, "]]": true, "&": true, "2>&1": true, "-": true,
}

// Detect classifies code as one of the supported languages. Evidence is
// weighed in a fixed order: shebang, syntactic markers, shell token majority,
// and finally the host language.
func Detect(code string) Language {
	if l, ok := detectShebang(code); ok {
		return l
	}
	for _, m := range markers {
		if m.re.MatchString(code) {
			return m.lang
		}
	}
	if looksLikeShell(code) {
		return Bash
	}
	return Host
}

func detectShebang(code string) (Language, bool) {
	if !strings.HasPrefix(code, "#!") {
		return "", false
	}
	line := code[2:]
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	for _, field := range strings.Fields(line) {
		name := path.Base(field)
		if l, ok := shebangInterpreters[name]; ok {
			return l, true
		}
		if strings.HasPrefix(name, "python") {
			return Python, true
		}
	}
	return "", false
}

// looksLikeShell reports whether at least half the tokens are shell
// command names, variables or punctuation.
func looksLikeShell(code string) bool {
	tokens := strings.Fields(code)
	if len(tokens) == 0 {
		return false
	}
	hits := 0
	for _, tok := range tokens {
		if isShellToken(tok) {
			hits++
		}
	}
	return hits*2 >= len(tokens)
}

func isShellToken(tok string) bool {
	if shellWords[tok] || shellPunctuation[tok] {
		return true
	}
	if strings.HasPrefix(tok, "$") || strings.HasPrefix(tok, "\"$") {
		return true
	}
	if strings.HasPrefix(tok, "-") && len(tok) > 1 {
		return true // flags
	}
	return strings.HasSuffix(tok, ";") && shellWords[strings.TrimSuffix(tok, ";")]
}
