package language

import (
	"regexp"
	"strings"
)

// executable suffixes select a language and force execution.
var executableSuffixes = map[string]Language{
	"go":   Go,
	"py":   Python,
	"sh":   Bash,
	"bash": Bash,
	"js":   JavaScript,
	"mjs":  JavaScript,
	"ts":   TypeScript,
	"clj":  Clojure,
}

// data suffixes force a content fetch and set the content type.
var dataSuffixes = map[string]string{
	"txt":  "text/plain; charset=utf-8",
	"json": "application/json",
	"html": "text/html; charset=utf-8",
	"htm":  "text/html; charset=utf-8",
	"md":   "text/markdown; charset=utf-8",
	"csv":  "text/csv; charset=utf-8",
	"xml":  "application/xml",
	"css":  "text/css; charset=utf-8",
	"yaml": "application/yaml",
	"yml":  "application/yaml",
	"svg":  "image/svg+xml",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"gif":  "image/gif",
	"pdf":  "application/pdf",
}

var suffixRe = regexp.MustCompile(`^(.+)\.([A-Za-z][A-Za-z0-9]{0,7})$`)

// SplitSuffix splits "name.ext" into stem and lower-cased extension. ok is
// false when the segment carries no filename-style suffix.
func SplitSuffix(segment string) (stem, ext string, ok bool) {
	m := suffixRe.FindStringSubmatch(segment)
	if m == nil {
		return segment, "", false
	}
	return m[1], strings.ToLower(m[2]), true
}

// ExecutableSuffix returns the language selected by ext.
func ExecutableSuffix(ext string) (Language, bool) {
	l, ok := executableSuffixes[strings.ToLower(ext)]
	return l, ok
}

// DataSuffix returns the content type implied by ext.
func DataSuffix(ext string) (string, bool) {
	ct, ok := dataSuffixes[strings.ToLower(ext)]
	return ct, ok
}

// Suffix returns the canonical executable suffix for l.
func (l Language) Suffix() string {
	switch l {
	case Go:
		return "go"
	case Python:
		return "py"
	case Bash:
		return "sh"
	case JavaScript:
		return "js"
	case TypeScript:
		return "ts"
	case Clojure:
		return "clj"
	}
	return ""
}

// ContentType returns the content type for a path ending in ext, defaulting
// to plain text.
func ContentType(ext string) string {
	if ct, ok := DataSuffix(ext); ok {
		return ct
	}
	return "text/plain; charset=utf-8"
}
