// Package alias matches request paths against alias routes and rewrites them
// to target paths.
//
// Three pattern styles are supported:
//
//	literal    /docs              exact path
//	glob       /static/*.css      * within a segment, ** across segments, ? one char
//	framework  /users/<int:id>    named captures: <name>, <int:name>, <path:name>
//
// Captured names are substituted into the target wherever <name> appears.
package alias

import (
	"fmt"
	"regexp"
	"strings"
)

// MatchType is the pattern style of a route.
type MatchType string

const (
	MatchLiteral   MatchType = "literal"
	MatchGlob      MatchType = "glob"
	MatchFramework MatchType = "framework"
)

// Route is one alias definition.
type Route struct {
	Name       string    `yaml:"name" json:"name"`
	MatchType  MatchType `yaml:"match_type" json:"match_type"`
	Pattern    string    `yaml:"pattern" json:"pattern"`
	Target     string    `yaml:"target" json:"target"`
	IgnoreCase bool      `yaml:"ignore_case" json:"ignore_case,omitempty"`
	Enabled    bool      `yaml:"enabled" json:"enabled"`
}

// Match is a successful route match.
type Match struct {
	Route      Route
	TargetPath string
	Captures   map[string]string
	// IsRelative is true when the target stays inside this application.
	IsRelative bool
}

// EffectivePattern returns the route's pattern, defaulting to "/<name>".
func (r Route) EffectivePattern() string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return "/" + r.Name
}

// Validate reports malformed routes.
func (r Route) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("alias has no name")
	}
	if strings.TrimSpace(r.Target) == "" {
		return fmt.Errorf("alias %q has no target", r.Name)
	}
	switch r.MatchType {
	case "", MatchLiteral, MatchGlob:
	case MatchFramework:
		if _, _, err := compileFramework(r.EffectivePattern(), r.IgnoreCase); err != nil {
			return fmt.Errorf("alias %q: %w", r.Name, err)
		}
	default:
		return fmt.Errorf("alias %q: unknown match type %q", r.Name, r.MatchType)
	}
	return nil
}

// MatchPath tests path against r and returns the substituted target.
func (r Route) MatchPath(path string) (Match, bool) {
	if !r.Enabled {
		return Match{}, false
	}
	path = normalizePath(path)
	pattern := normalizePath(r.EffectivePattern())

	var captures map[string]string
	switch r.MatchType {
	case "", MatchLiteral:
		if r.IgnoreCase {
			if !strings.EqualFold(pattern, path) {
				return Match{}, false
			}
		} else if pattern != path {
			return Match{}, false
		}
	case MatchGlob:
		re := globToRegexp(pattern, r.IgnoreCase)
		if !re.MatchString(path) {
			return Match{}, false
		}
	case MatchFramework:
		re, names, err := compileFramework(pattern, r.IgnoreCase)
		if err != nil {
			return Match{}, false
		}
		m := re.FindStringSubmatch(path)
		if m == nil {
			return Match{}, false
		}
		captures = make(map[string]string, len(names))
		for i, name := range names {
			captures[name] = m[i+1]
		}
	default:
		return Match{}, false
	}

	target := Substitute(r.Target, captures)
	return Match{
		Route:      r,
		TargetPath: target,
		Captures:   captures,
		IsRelative: IsRelativeTarget(target),
	}, true
}

// Resolve returns the first enabled route that matches path.
func Resolve(routes []Route, path string) (Match, bool) {
	for _, r := range routes {
		if m, ok := r.MatchPath(path); ok {
			return m, true
		}
	}
	return Match{}, false
}

// IsRelativeTarget reports whether target is an internal path rather than
// an absolute URL.
func IsRelativeTarget(target string) bool {
	t := strings.TrimSpace(target)
	if t == "" || strings.HasPrefix(t, "//") {
		return false
	}
	if i := strings.Index(t, "://"); i > 0 && !strings.ContainsAny(t[:i], "/?#") {
		return false
	}
	return true
}

var placeholderRe = regexp.MustCompile(`<(?:(?:int|path|string):)?([A-Za-z_][A-Za-z0-9_]*)>`)

// Substitute replaces <name> placeholders in target with captured values.
// Unknown placeholders are left as they are.
func Substitute(target string, captures map[string]string) string {
	if len(captures) == 0 {
		return target
	}
	return placeholderRe.ReplaceAllStringFunc(target, func(ph string) string {
		name := placeholderRe.FindStringSubmatch(ph)[1]
		if v, ok := captures[name]; ok {
			return v
		}
		return ph
	})
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

func globToRegexp(pattern string, ignoreCase bool) *regexp.Regexp {
	var b strings.Builder
	if ignoreCase {
		b.WriteString("(?i)")
	}
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '*' && i+1 < len(pattern) && pattern[i+1] == '*':
			b.WriteString(".*")
			i++
		case c == '*':
			b.WriteString("[^/]*")
		case c == '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

var frameworkTokenRe = regexp.MustCompile(`<(?:(int|path|string):)?([A-Za-z_][A-Za-z0-9_]*)>`)

func compileFramework(pattern string, ignoreCase bool) (*regexp.Regexp, []string, error) {
	var b strings.Builder
	if ignoreCase {
		b.WriteString("(?i)")
	}
	b.WriteString("^")

	var names []string
	seen := map[string]bool{}
	last := 0
	for _, loc := range frameworkTokenRe.FindAllStringSubmatchIndex(pattern, -1) {
		b.WriteString(regexp.QuoteMeta(pattern[last:loc[0]]))
		conv := ""
		if loc[2] >= 0 {
			conv = pattern[loc[2]:loc[3]]
		}
		name := pattern[loc[4]:loc[5]]
		if seen[name] {
			return nil, nil, fmt.Errorf("duplicate placeholder <%s>", name)
		}
		seen[name] = true
		names = append(names, name)
		switch conv {
		case "int":
			b.WriteString(`(-?\d+)`)
		case "path":
			b.WriteString(`(.+)`)
		default:
			b.WriteString(`([^/]+)`)
		}
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(pattern[last:]))
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, nil, err
	}
	return re, names, nil
}
