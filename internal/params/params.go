// Package params binds request data and stored context onto the declared
// parameters of an entry function.
//
// Sources are consulted per parameter in a fixed order and the first source
// holding the name wins: query string, request body, headers, base
// arguments, variables, secrets.
package params

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"viewer/internal/language"
	"viewer/internal/logging"
	"viewer/internal/signature"
)

// Source names where a bound value came from.
type Source string

const (
	SourceQuery    Source = "query"
	SourceBody     Source = "body"
	SourceHeader   Source = "header"
	SourceBase     Source = "base"
	SourceVariable Source = "variable"
	SourceSecret   Source = "secret"
)

// Precedence lists sources from highest to lowest priority.
var Precedence = []Source{SourceQuery, SourceBody, SourceHeader, SourceBase, SourceVariable, SourceSecret}

// Request is everything a parameter can be bound from.
type Request struct {
	Query   url.Values
	Body    map[string]any
	Headers http.Header

	// BaseArgs are caller-supplied values such as request/response in io chains.
	BaseArgs map[string]any

	// Variables and Secrets are the acting principal's enabled entries.
	Variables map[string]string
	Secrets   map[string]string
}

// Resolution is the outcome of binding a signature against a Request.
type Resolution struct {
	Bound     map[string]any      `json:"bound"`
	BoundFrom map[string]Source   `json:"bound_from"`
	Missing   []string            `json:"missing,omitempty"`
	Available map[Source][]string `json:"available"`
}

// MissingParameterError reports required parameters no source could supply.
type MissingParameterError struct {
	Missing   []string
	Available map[Source][]string
}

func (e *MissingParameterError) Error() string {
	var parts []string
	for _, src := range Precedence {
		if keys := e.Available[src]; len(keys) > 0 {
			parts = append(parts, fmt.Sprintf("%s=[%s]", src, strings.Join(keys, ", ")))
		}
	}
	avail := "none"
	if len(parts) > 0 {
		avail = strings.Join(parts, " ")
	}
	return fmt.Sprintf("missing required parameter(s): %s (available: %s)", strings.Join(e.Missing, ", "), avail)
}

// UnsupportedSignatureError reports a signature that cannot be bound by name.
type UnsupportedSignatureError struct {
	Reasons []string
}

func (e *UnsupportedSignatureError) Error() string {
	return "unsupported signature: " + strings.Join(e.Reasons, "; ")
}

// Resolve binds sig against req. With allowPartial, unbound required
// parameters are returned in Resolution.Missing instead of failing.
func Resolve(sig signature.Signature, req Request, allowPartial bool) (Resolution, error) {
	if !sig.Supported() {
		return Resolution{}, &UnsupportedSignatureError{Reasons: sig.Unsupported}
	}

	res := Resolution{
		Bound:     make(map[string]any, len(sig.Order)),
		BoundFrom: make(map[string]Source, len(sig.Order)),
		Available: req.available(),
	}
	headers := normalizedHeaders(req.Headers)

	for _, name := range sig.Order {
		v, src, ok := req.lookup(name, headers)
		if ok {
			res.Bound[name] = v
			res.BoundFrom[name] = src
			continue
		}
		if !sig.IsOptional(name) {
			res.Missing = append(res.Missing, name)
		}
	}

	logging.ParamsDebug("resolve %s: bound=%v missing=%v partial=%v",
		sig.Describe(), res.BoundFrom, res.Missing, allowPartial)

	if len(res.Missing) > 0 && !allowPartial {
		return res, &MissingParameterError{Missing: res.Missing, Available: res.Available}
	}
	return res, nil
}

// BindChained gives input to the parameter that receives chained input: a
// missing parameter named "input" if there is one, otherwise the first
// missing parameter. It reports whether a parameter was bound.
func (r *Resolution) BindChained(input string) bool {
	if len(r.Missing) == 0 {
		return false
	}
	idx := 0
	for i, name := range r.Missing {
		if name == "input" {
			idx = i
			break
		}
	}
	name := r.Missing[idx]
	r.Bound[name] = input
	r.BoundFrom[name] = SourceBase
	r.Missing = append(r.Missing[:idx:idx], r.Missing[idx+1:]...)
	return true
}

// BindPositional fills missing parameters in order from values and returns
// the values left over.
func (r *Resolution) BindPositional(values []string) []string {
	for len(values) > 0 && len(r.Missing) > 0 {
		name := r.Missing[0]
		r.Bound[name] = values[0]
		r.BoundFrom[name] = SourceBase
		r.Missing = r.Missing[1:]
		values = values[1:]
	}
	return values
}

// Err returns a MissingParameterError if required parameters remain unbound.
func (r Resolution) Err() error {
	if len(r.Missing) == 0 {
		return nil
	}
	return &MissingParameterError{Missing: r.Missing, Available: r.Available}
}

// Positional returns bound values in signature order. Unbound optional
// parameters end the list so that defaults apply.
func (r Resolution) Positional(sig signature.Signature) []any {
	out := make([]any, 0, len(sig.Order))
	for _, name := range sig.Order {
		v, ok := r.Bound[name]
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

// ResolveAndInvoke analyses source and binds its entry function's parameters
// against req in non-partial mode. The language is detected when lang is empty.
func ResolveAndInvoke(ctx context.Context, source string, lang language.Language, req Request) (Resolution, signature.Signature, error) {
	if lang == "" {
		lang = language.Detect(source)
	}
	sig, err := signature.Analyze(ctx, lang, source)
	if err != nil {
		return Resolution{}, sig, err
	}
	res, err := Resolve(sig, req, false)
	return res, sig, err
}

func (req Request) lookup(name string, headers map[string]string) (any, Source, bool) {
	if vals, ok := req.Query[name]; ok && len(vals) > 0 {
		return vals[0], SourceQuery, true
	}
	if v, ok := req.Body[name]; ok {
		return v, SourceBody, true
	}
	if v, ok := headers[headerKey(name)]; ok {
		return v, SourceHeader, true
	}
	if v, ok := req.BaseArgs[name]; ok {
		return v, SourceBase, true
	}
	if v, ok := req.Variables[name]; ok {
		return v, SourceVariable, true
	}
	if v, ok := req.Secrets[name]; ok {
		return v, SourceSecret, true
	}
	return nil, "", false
}

func (req Request) available() map[Source][]string {
	avail := map[Source][]string{
		SourceQuery:    sortedKeys(req.Query),
		SourceBody:     sortedKeys(req.Body),
		SourceHeader:   sortedKeys(req.Headers),
		SourceBase:     sortedKeys(req.BaseArgs),
		SourceVariable: sortedKeys(req.Variables),
		SourceSecret:   sortedKeys(req.Secrets),
	}
	return avail
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// headerKey folds case and treats '_' and '-' as the same character.
func headerKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "-")
}

func normalizedHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vals := range h {
		if len(vals) > 0 {
			out[headerKey(k)] = vals[0]
		}
	}
	return out
}
