// Package engine evaluates request paths.
//
// A pipeline path is evaluated right to left: each segment's output feeds the
// segment on its left, and the leftmost segment produces the response. An io
// path is evaluated in two phases, a left-to-right request phase followed by
// a right-to-left response phase.
//
// The engine keeps no state between requests. Servers, aliases and content
// are read through collaborator interfaces on every call.
package engine

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"viewer/internal/logging"
	"viewer/internal/params"
	"viewer/internal/runner"
	"viewer/internal/segment"
)

// DefaultContentType is reported when no segment sets a content type.
const DefaultContentType = "text/plain; charset=utf-8"

// Collaborators are the engine's external dependencies. Only Runners is
// required; missing lookups behave as empty stores.
type Collaborators struct {
	Servers    ServerLookup
	Aliases    AliasLookup
	Content    ContentStore
	Principals PrincipalContext
	Recorder   InvocationRecorder
	Runners    *runner.Registry
}

// Engine evaluates pipeline and io paths.
type Engine struct {
	servers    ServerLookup
	aliases    AliasLookup
	content    ContentStore
	principals PrincipalContext
	recorder   InvocationRecorder
	runners    *runner.Registry

	builtins   map[string]Builtin
	classifier *segment.Classifier

	maxContentBytes int64
	timeout         time.Duration
	maxDepth        int
}

// Option configures an Engine.
type Option func(*Engine)

// WithBuiltins registers built-in servers.
func WithBuiltins(builtins ...Builtin) Option {
	return func(e *Engine) {
		for _, b := range builtins {
			e.builtins[b.Name()] = b
		}
	}
}

// WithMaxContentBytes bounds the size of content the engine will address.
func WithMaxContentBytes(n int64) Option {
	return func(e *Engine) { e.maxContentBytes = n }
}

// WithTimeout sets the per-invocation runner timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithMaxDepth bounds nested evaluation depth.
func WithMaxDepth(n int) Option {
	return func(e *Engine) { e.maxDepth = n }
}

// New creates an engine.
func New(c Collaborators, opts ...Option) *Engine {
	e := &Engine{
		servers:         c.Servers,
		aliases:         c.Aliases,
		content:         c.Content,
		principals:      c.Principals,
		recorder:        c.Recorder,
		runners:         c.Runners,
		builtins:        make(map[string]Builtin),
		maxContentBytes: 16 << 20,
		maxDepth:        64,
	}
	if e.runners == nil {
		e.runners = runner.NewRegistry()
	}
	for _, opt := range opts {
		opt(e)
	}

	e.classifier = &segment.Classifier{
		Servers: e.servers,
		Aliases: e.aliases,
		Builtin: e.isBuiltin,
	}
	if e.content != nil {
		e.classifier.Content = e.content
	}
	logging.EngineDebug("engine created: builtins=%v maxContent=%d", e.BuiltinNames(), e.maxContentBytes)
	return e
}

func (e *Engine) isBuiltin(name string) bool {
	_, ok := e.builtins[name]
	return ok
}

// BuiltinNames lists registered built-in servers.
func (e *Engine) BuiltinNames() []string {
	names := make([]string, 0, len(e.builtins))
	for name := range e.builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Classifier returns the engine's segment classifier.
func (e *Engine) Classifier() *segment.Classifier { return e.classifier }

// Options control one evaluation.
type Options struct {
	Debug   bool
	Request params.Request
}

// state is threaded through one evaluation call tree. visited is copied,
// never shared, when the tree branches.
type state struct {
	request   params.Request
	principal Principal
	debug     bool
	visited   map[string]bool
	depth     int
}

func (st *state) child(key string) (*state, bool) {
	if st.visited[key] {
		return nil, false
	}
	visited := make(map[string]bool, len(st.visited)+1)
	for k := range st.visited {
		visited[k] = true
	}
	visited[key] = true
	return &state{
		request:   st.request,
		principal: st.principal,
		debug:     st.debug,
		visited:   visited,
		depth:     st.depth + 1,
	}, true
}

func (e *Engine) newState(ctx context.Context, opts Options) (*state, error) {
	st := &state{request: opts.Request, debug: opts.Debug, visited: map[string]bool{}}
	if e.principals != nil {
		p, err := e.principals.CurrentPrincipal(ctx)
		if err != nil {
			return nil, &Error{Kind: KindLookupFailed, Message: fmt.Sprintf("load principal: %v", err), Err: err}
		}
		st.principal = p
	}
	st.request.Variables = st.principal.Variables
	st.request.Secrets = st.principal.Secrets
	return st, nil
}

// EvaluatePipeline evaluates path right to left.
func (e *Engine) EvaluatePipeline(ctx context.Context, path string, opts Options) *Result {
	timer := logging.StartTimer(logging.CategoryEngine, "pipeline "+path)
	defer timer.Stop()

	st, err := e.newState(ctx, opts)
	if err != nil {
		res := Failed(err)
		res.Path, res.Mode, res.Debug = path, ModePipeline, opts.Debug
		return res
	}

	parts := segment.Split(path)
	res := e.pipeline(ctx, parts, st, nil, true)
	res.Path, res.Mode, res.Debug = path, ModePipeline, opts.Debug
	if !opts.Debug {
		e.finish(ctx, res)
	}

	logging.Engine("pipeline %s: status=%d success=%v kind=%s", path, res.Status, res.Success, res.ErrorKind)
	return res
}

// pipeline evaluates parts. input, when set, is the value entering from the
// right of the rightmost segment. Top-level paths must start with something
// invocable; nested paths may be plain literals.
func (e *Engine) pipeline(ctx context.Context, parts []string, parent *state, input *string, topLevel bool) *Result {
	key := segment.Join(parts)
	st, ok := parent.child(key)
	if !ok {
		return Failed(newError(KindCycleDetected, "cycle detected: %s is already being evaluated", key))
	}
	if st.depth > e.maxDepth {
		return Failed(newError(KindCycleDetected, "evaluation nested deeper than %d levels at %s", e.maxDepth, key))
	}

	target, err := e.rewrite(ctx, parts)
	if err != nil {
		return Failed(err)
	}
	if target.Matched {
		logging.EngineDebug("path alias %s: %s -> %s", target.Name, key, target.TargetPath)
		out := e.pipeline(ctx, segment.Split(target.TargetPath), st, input, topLevel)
		out.Annotate(AnnotationAlias, target.Name)
		return out
	}

	res := &Result{Segments: e.classifier.ClassifyPath(ctx, parts)}
	segs := res.Segments

	if len(segs) == 0 {
		if !topLevel {
			res.succeed("", DefaultContentType)
			if input != nil {
				res.Output = *input
			}
			return res
		}
		res.fail(newError(KindNotFound, "empty path"))
		return res
	}

	if st.debug {
		return e.inspect(ctx, res, topLevel)
	}

	// classification errors stop evaluation before anything runs. Region
	// segments are classified again when their built-in evaluates them.
	for _, s := range segs {
		if !s.Region && s.HasErrors() {
			issue := s.Errors[0]
			res.fail(&Error{
				Kind:    ErrorKind(issue.Code),
				Message: fmt.Sprintf("segment %d (%s): %s", s.Position, s.Text, issue.Message),
			})
			logging.EngineDebug("pipeline %s: classification failed at %q: %s", key, s.Text, issue.Message)
			return res
		}
	}

	if topLevel {
		if err := leadingError(segs[0]); err != nil {
			res.fail(err)
			return res
		}
	}

	var running *string
	if input != nil {
		v := *input
		running = &v
	}
	contentType := ""

	for i := len(segs) - 1; i >= 0; i-- {
		s := &segs[i]
		if s.Region {
			continue
		}
		if running != nil {
			s.Input = *running
		}

		var out *Result
		switch s.Policy {
		case segment.PolicyLiteral:
			out = Literal(s.Text, "")
		case segment.PolicyContents:
			out = e.contents(ctx, s)
		case segment.PolicyExecute:
			if s.Builtin {
				out = e.invokeBuiltin(ctx, s, parts[i+1:], st)
				for j := i + 1; j < len(segs); j++ {
					segs[j].Executed = true
				}
			} else {
				out = e.invoke(ctx, s, call{input: running}, st)
			}
		}

		s.Executed = true
		if !out.Success {
			s.Errors = append(s.Errors, segment.Issue{Code: segment.ErrorCode(out.ErrorKind), Message: out.Error})
			out.Segments = segs
			return out
		}

		v := out.Output
		running = &v
		s.Output = out.Output
		s.OutputContentType = out.ContentType
		if out.ContentType != "" {
			contentType = out.ContentType
		}
		if len(out.Annotations) > 0 {
			for k, val := range out.Annotations {
				res.Annotate(k, val)
			}
		}
		if out.Status != 0 && out.Status != http.StatusOK {
			res.Status = out.Status
		}
	}

	if contentType == "" {
		contentType = DefaultContentType
	}
	status := res.Status
	res.succeed(*running, contentType)
	if status != 0 {
		res.Status = status
	}
	return res
}
