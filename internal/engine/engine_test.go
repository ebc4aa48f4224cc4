package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"viewer/internal/alias"
	"viewer/internal/cid"
	"viewer/internal/language"
	"viewer/internal/params"
	"viewer/internal/runner"
	"viewer/internal/segment"
)

type fakeServers map[string]ServerDefinition

func (f fakeServers) LookupServer(_ context.Context, name string) (ServerDefinition, bool, error) {
	def, ok := f[name]
	return def, ok, nil
}

type fakeAliases map[string]string

func (f fakeAliases) LookupAliasTarget(_ context.Context, path string) (AliasTarget, error) {
	target, ok := f[path]
	if !ok {
		return AliasTarget{}, nil
	}
	return AliasTarget{Matched: true, Name: strings.TrimPrefix(path, "/"), TargetPath: target, IsRelative: strings.HasPrefix(target, "/")}, nil
}

// routeAliases matches paths the way the store does.
type routeAliases []alias.Route

func (r routeAliases) LookupAliasTarget(_ context.Context, path string) (AliasTarget, error) {
	m, ok := alias.Resolve(r, path)
	if !ok {
		return AliasTarget{}, nil
	}
	return AliasTarget{Matched: true, Name: m.Route.Name, TargetPath: m.TargetPath, IsRelative: m.IsRelative}, nil
}

type memoryContent struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryContent() *memoryContent { return &memoryContent{data: map[string][]byte{}} }

func (m *memoryContent) FetchContent(_ context.Context, id cid.CID) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[id.Value()]
	return d, ok, nil
}

func (m *memoryContent) StoreContent(_ context.Context, data []byte) (cid.CID, error) {
	id, err := cid.Identify(data)
	if err != nil {
		return cid.CID{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id.Value()] = append([]byte(nil), data...)
	return id, nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []InvocationRecord
}

func (r *fakeRecorder) RecordInvocation(_ context.Context, rec InvocationRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

type fixedPrincipal Principal

func (p fixedPrincipal) CurrentPrincipal(context.Context) (Principal, error) { return Principal(p), nil }

// scriptedRunner stands in for the Go runner. Behaviour is chosen by the
// invoked server's name.
type scriptedRunner struct {
	mu    sync.Mutex
	calls map[string]int
	last  map[string]runner.Invocation
}

func newScriptedRunner() *scriptedRunner {
	return &scriptedRunner{calls: map[string]int{}, last: map[string]runner.Invocation{}}
}

func (r *scriptedRunner) Language() language.Language { return language.Go }

func (r *scriptedRunner) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

func (r *scriptedRunner) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}

func (r *scriptedRunner) Run(_ context.Context, inv runner.Invocation) (*runner.Output, error) {
	r.mu.Lock()
	r.calls[inv.Name]++
	r.last[inv.Name] = inv
	r.mu.Unlock()

	str := func(k string) string { return fmt.Sprint(inv.Args[k]) }
	switch inv.Name {
	case "upper":
		return &runner.Output{Output: strings.ToUpper(str("input"))}, nil
	case "wrap":
		return &runner.Output{Output: "[" + str("input") + "]"}, nil
	case "greet":
		return &runner.Output{Output: "hello " + str("name")}, nil
	case "page":
		return &runner.Output{Output: "<p>" + str("input") + "</p>", ContentType: "text/html"}, nil
	case "mw":
		return &runner.Output{Output: fmt.Sprintf("mw(%s|%s)", str("request"), str("response"))}, nil
	case "tail":
		return &runner.Output{Output: "tail(" + str("request") + ")"}, nil
	case "script":
		return &runner.Output{Output: "script"}, nil
	case "boom":
		return nil, &runner.ExecutionError{Language: language.Go, Message: "boom", Stderr: "panic: boom\ngoroutine 1"}
	case "slow":
		return nil, fmt.Errorf("slow: %w", runner.ErrTimeout)
	}
	return nil, fmt.Errorf("unexpected server %q", inv.Name)
}

func goServer(name, code string) ServerDefinition {
	return ServerDefinition{Name: name, Definition: code, Enabled: true}
}

type fixture struct {
	engine   *Engine
	runner   *scriptedRunner
	content  *memoryContent
	recorder *fakeRecorder
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	servers := fakeServers{
		"upper":  goServer("upper", "func main(input string) string { return input }"),
		"wrap":   goServer("wrap", "func main(input string) string { return input }"),
		"greet":  goServer("greet", "func main(name string) string { return name }"),
		"page":   goServer("page", "func main(input string) string { return input }"),
		"mw":     goServer("mw", "func main(request string, response string) string { return request }"),
		"tail":   goServer("tail", "func main(request string) string { return request }"),
		"script": goServer("script", "x := 1\nx"),
		"boom":   goServer("boom", "func main() string {\n\tpanic(\"boom\")\n}"),
		"slow":   goServer("slow", "func main() string { return \"\" }"),
		"off":    {Name: "off", Definition: "func main() string { return \"\" }", Enabled: false},
	}
	aliases := fakeAliases{
		"/shout": "/upper",
		"/loop":  "/loop",
		"/ping":  "/pong",
		"/pong":  "/ping",
	}

	sr := newScriptedRunner()
	reg := runner.NewRegistry()
	reg.Register(sr)

	f := &fixture{runner: sr, content: newMemoryContent(), recorder: &fakeRecorder{}}
	f.engine = New(Collaborators{
		Servers:    servers,
		Aliases:    aliases,
		Content:    f.content,
		Principals: fixedPrincipal{Name: "tester", Variables: map[string]string{"name": "variable"}},
		Recorder:   f.recorder,
		Runners:    reg,
	}, opts...)
	return f
}

func TestEvaluatePipeline_RealGoServer(t *testing.T) {
	reg := runner.NewRegistry()
	reg.Register(runner.NewGoRunner(10 * time.Second))
	e := New(Collaborators{
		Servers: fakeServers{
			"echo": goServer("echo", "import \"strings\"\n\nfunc main(name string) string { return strings.ToUpper(name) }"),
		},
		Runners: reg,
	})

	res := e.EvaluatePipeline(context.Background(), "/echo/hello", Options{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "HELLO", res.Output)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, DefaultContentType, res.ContentType)
}

func TestEvaluatePipeline_RightToLeft(t *testing.T) {
	f := newFixture(t)
	res := f.engine.EvaluatePipeline(context.Background(), "/upper/wrap/abc", Options{})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "[ABC]", res.Output)
	require.Len(t, res.Segments, 3)
	assert.Equal(t, "abc", res.Segments[1].Input)
	assert.Equal(t, "[abc]", res.Segments[1].Output)
	assert.Equal(t, "[ABC]", res.Segments[0].Output)
	for _, s := range res.Segments {
		assert.True(t, s.Executed, s.Text)
	}
	assert.NotEmpty(t, res.ResultCID)
}

func TestEvaluatePipeline_ContentTypePropagates(t *testing.T) {
	f := newFixture(t)
	res := f.engine.EvaluatePipeline(context.Background(), "/upper/page/x", Options{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "<P>X</P>", res.Output)
	assert.Equal(t, "text/html", res.ContentType)
}

func TestEvaluatePipeline_ChainingUnsupported(t *testing.T) {
	f := newFixture(t)
	res := f.engine.EvaluatePipeline(context.Background(), "/upper/param/script", Options{})

	assert.False(t, res.Success)
	assert.Equal(t, KindChainingUnsupported, res.ErrorKind)
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Contains(t, res.Error, segment.ChainingUnsupportedMessage)
	assert.Zero(t, f.runner.total(), "nothing runs after a classification error")

	require.Len(t, res.Segments, 3)
	require.Len(t, res.Segments[2].Errors, 1)
	assert.Equal(t, segment.ErrChainingUnsupported, res.Segments[2].Errors[0].Code)
}

func TestEvaluatePipeline_ScriptAtTerminalPosition(t *testing.T) {
	f := newFixture(t)
	res := f.engine.EvaluatePipeline(context.Background(), "/script", Options{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "script", res.Output)
}

func TestEvaluatePipeline_DebugAnalysesEverySegment(t *testing.T) {
	f := newFixture(t)
	res := f.engine.EvaluatePipeline(context.Background(), "/upper/hello.txt/wrap/x.zzz", Options{Debug: true})

	assert.False(t, res.Success)
	assert.True(t, res.Debug)
	assert.Equal(t, KindDataExtensionMisuse, res.ErrorKind)
	require.Len(t, res.Segments, 4)
	assert.Equal(t, segment.ErrUnrecognizedExtension, res.Segments[3].Errors[0].Code)
	assert.NotNil(t, res.Segments[0].Signature)
	assert.NotNil(t, res.Segments[2].Signature, "segments after the first error are still analysed")
	assert.Zero(t, f.runner.total())
}

func TestEvaluatePipeline_DebugRunsNothing(t *testing.T) {
	f := newFixture(t)
	res := f.engine.EvaluatePipeline(context.Background(), "/upper/wrap/abc", Options{Debug: true})

	require.True(t, res.Success, res.Error)
	assert.Zero(t, f.runner.total())
	assert.Empty(t, res.Output)
	assert.Empty(t, res.ResultCID)
	assert.Equal(t, "false", res.Annotations[AnnotationExecuted])
	assert.Empty(t, f.recorder.records)

	require.Len(t, res.Segments, 3)
	for _, s := range res.Segments {
		assert.False(t, s.Executed, s.Text)
	}
	require.NotNil(t, res.Segments[0].Signature)
	assert.Equal(t, []string{"input"}, res.Segments[0].Signature.Order)
	assert.Nil(t, res.Segments[2].Signature, "literals have no signature")
}

func TestEvaluatePipeline_DebugReportsWithoutRunning(t *testing.T) {
	f := newFixture(t)
	f.engine.servers.(fakeServers)["many"] = goServer("many", "func main(parts ...string) string { return \"\" }")
	ctx := context.Background()

	res := f.engine.EvaluatePipeline(ctx, "/many/x", Options{Debug: true})
	assert.Equal(t, KindUnsupportedSignature, res.ErrorKind)
	assert.Equal(t, http.StatusUnprocessableEntity, res.Status)
	require.NotEmpty(t, res.Segments[0].Errors)

	res = f.engine.EvaluatePipeline(ctx, "/nothing/here", Options{Debug: true})
	assert.Equal(t, KindNotFound, res.ErrorKind)

	assert.Zero(t, f.runner.total())
}

func TestEvaluatePipeline_LeadingLiteral(t *testing.T) {
	f := newFixture(t)

	res := f.engine.EvaluatePipeline(context.Background(), "/nothing/here", Options{})
	assert.Equal(t, KindNotFound, res.ErrorKind)
	assert.Equal(t, http.StatusNotFound, res.Status)

	res = f.engine.EvaluatePipeline(context.Background(), "/off", Options{})
	assert.Equal(t, KindServerDisabled, res.ErrorKind)
	assert.Equal(t, http.StatusForbidden, res.Status)
}

func TestEvaluatePipeline_Parameters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.engine.EvaluatePipeline(ctx, "/greet", Options{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "hello variable", res.Output, "principal variables are a binding source")

	res = f.engine.EvaluatePipeline(ctx, "/greet", Options{Request: params.Request{Query: url.Values{"name": {"bob"}}}})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "hello bob", res.Output)

	res = f.engine.EvaluatePipeline(ctx, "/greet/alice", Options{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "hello variable", res.Output, "variables outrank chained input")
}

func TestEvaluatePipeline_MissingParameter(t *testing.T) {
	f := newFixture(t)
	f.engine.principals = nil

	res := f.engine.EvaluatePipeline(context.Background(), "/greet", Options{})
	assert.Equal(t, KindMissingRequiredParameter, res.ErrorKind)
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Contains(t, res.Error, "name")
}

func TestEvaluatePipeline_Alias(t *testing.T) {
	f := newFixture(t)
	res := f.engine.EvaluatePipeline(context.Background(), "/shout/hey", Options{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "HEY", res.Output)
	assert.Equal(t, segment.KindAlias, res.Segments[0].Kind)

	res = f.engine.EvaluatePipeline(context.Background(), "/shout.txt", Options{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "/upper", res.Output)
}

func TestEvaluatePipeline_WholePathAlias(t *testing.T) {
	f := newFixture(t)
	routes := routeAliases{
		{Name: "user", MatchType: alias.MatchFramework, Pattern: "/users/<int:id>", Target: "/wrap/<id>", Enabled: true},
		{Name: "say", MatchType: alias.MatchFramework, Pattern: "/say/<word>", Target: "/upper/wrap/<word>", Enabled: true},
		{Name: "docs", MatchType: alias.MatchGlob, Pattern: "/docs/**", Target: "/wrap/docs", Enabled: true},
		{Name: "shadowed", MatchType: alias.MatchGlob, Pattern: "/upper/**", Target: "/wrap/nope", Enabled: true},
		{Name: "external", MatchType: alias.MatchGlob, Pattern: "/away/**", Target: "https://example.com/", Enabled: true},
		{Name: "spin", MatchType: alias.MatchFramework, Pattern: "/spin/<x>", Target: "/spin/<x>", Enabled: true},
		{Name: "grow", MatchType: alias.MatchFramework, Pattern: "/grow/<path:rest>", Target: "/grow/more/<rest>", Enabled: true},
	}
	f.engine.aliases = routes
	f.engine.classifier.Aliases = routes
	ctx := context.Background()

	tests := []struct {
		path string
		want string
		kind ErrorKind
	}{
		{"/users/42", "[42]", ""},
		{"/users/abc", "", KindNotFound},
		{"/say/hi", "[HI]", ""},
		{"/docs/a/b", "[docs]", ""},
		{"/upper/x", "X", ""},
		{"/away/x", "", KindNotFound},
		{"/spin/a", "", KindCycleDetected},
		{"/grow/a", "", KindCycleDetected},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			res := f.engine.EvaluatePipeline(ctx, tt.path, Options{})
			assert.Equal(t, tt.kind, res.ErrorKind, res.Error)
			if tt.kind == "" {
				assert.Equal(t, tt.want, res.Output)
			}
		})
	}

	res := f.engine.EvaluatePipeline(ctx, "/say/hi", Options{})
	assert.Equal(t, "say", res.Annotations[AnnotationAlias])
	assert.Equal(t, "/say/hi", res.Path)

	f.engine.principals = nil
	res = f.engine.EvaluateIO(ctx, "/greeting/bob", Options{})
	assert.Equal(t, KindNotFound, res.ErrorKind)

	routes = append(routes, alias.Route{Name: "greeting", MatchType: alias.MatchFramework, Pattern: "/greeting/<who>", Target: "/greet/<who>", Enabled: true})
	f.engine.aliases = routes
	res = f.engine.EvaluateIO(ctx, "/greeting/bob", Options{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "hello bob", res.Output)
	assert.Equal(t, "greeting", res.Annotations[AnnotationAlias])

	res = f.engine.EvaluateIO(ctx, "/spin/a", Options{})
	assert.Equal(t, KindCycleDetected, res.ErrorKind)
}

func TestEvaluatePipeline_CycleDetected(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/loop", "/ping", "/upper/loop"} {
		t.Run(path, func(t *testing.T) {
			res := f.engine.EvaluatePipeline(context.Background(), path, Options{})
			assert.Equal(t, KindCycleDetected, res.ErrorKind)
			assert.Equal(t, http.StatusLoopDetected, res.Status)
		})
	}
}

func TestEvaluatePipeline_Contents(t *testing.T) {
	f := newFixture(t)
	res := f.engine.EvaluatePipeline(context.Background(), "/upper.txt", Options{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "func main(input string) string { return input }", res.Output)
	assert.Equal(t, "text/plain; charset=utf-8", res.ContentType)
	assert.Zero(t, f.runner.total())
}

func TestEvaluatePipeline_LiteralCID(t *testing.T) {
	f := newFixture(t)
	id := cid.MustIdentify([]byte("some text"))
	res := f.engine.EvaluatePipeline(context.Background(), "/"+id.Value()+".txt", Options{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "some text", res.Output)
}

func TestEvaluatePipeline_ExecutionRaisedDiagnostic(t *testing.T) {
	f := newFixture(t)
	res := f.engine.EvaluatePipeline(context.Background(), "/boom", Options{})

	assert.False(t, res.Success)
	assert.Equal(t, KindExecutionRaised, res.ErrorKind)
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	require.NotEmpty(t, res.DiagnosticCID)

	id, err := cid.Parse(res.DiagnosticCID)
	require.NoError(t, err)
	data, ok, err := f.content.FetchContent(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)
	diag := string(data)
	assert.Contains(t, diag, "boom")
	assert.Contains(t, diag, "panic(\"boom\")")
	assert.Contains(t, diag, "Arguments:")
	assert.Contains(t, diag, "panic: boom")

	var failed []InvocationRecord
	for _, rec := range f.recorder.records {
		if rec.Failed {
			failed = append(failed, rec)
		}
	}
	require.NotEmpty(t, failed)
	assert.Equal(t, res.DiagnosticCID, failed[len(failed)-1].ResultCID)
}

func TestEvaluatePipeline_Timeout(t *testing.T) {
	f := newFixture(t)
	res := f.engine.EvaluatePipeline(context.Background(), "/slow", Options{})
	assert.Equal(t, KindRunnerTimeout, res.ErrorKind)
	assert.Equal(t, http.StatusGatewayTimeout, res.Status)
	assert.Empty(t, res.DiagnosticCID)
}

func TestEvaluatePipeline_ContentTooLarge(t *testing.T) {
	f := newFixture(t, WithMaxContentBytes(4))
	res := f.engine.EvaluatePipeline(context.Background(), "/upper/abcdefgh", Options{})
	assert.Equal(t, KindContentTooLarge, res.ErrorKind)
	assert.Equal(t, http.StatusRequestEntityTooLarge, res.Status)
}

func TestEvaluatePipeline_RecordsInvocations(t *testing.T) {
	f := newFixture(t)
	res := f.engine.EvaluatePipeline(context.Background(), "/upper/wrap/a", Options{})
	require.True(t, res.Success, res.Error)

	require.Len(t, f.recorder.records, 2)
	assert.Equal(t, "wrap", f.recorder.records[0].ServerName)
	assert.Equal(t, "upper", f.recorder.records[1].ServerName)
	assert.Equal(t, res.ResultCID, f.recorder.records[1].ResultCID)
}

type firstBuiltin struct{}

func (firstBuiltin) Name() string { return "first" }

func (firstBuiltin) Invoke(ctx context.Context, call BuiltinCall) *Result {
	return call.Evaluate(ctx, call.Args)
}

func TestEvaluatePipeline_BuiltinConsumesRight(t *testing.T) {
	f := newFixture(t, WithBuiltins(firstBuiltin{}))
	res := f.engine.EvaluatePipeline(context.Background(), "/upper/first/wrap/x", Options{})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "[X]", res.Output)
	require.Len(t, res.Segments, 4)
	assert.True(t, res.Segments[2].Region)
	assert.True(t, res.Segments[2].Executed)
	assert.True(t, res.Segments[3].Executed)
	assert.Equal(t, []string{"first"}, f.engine.BuiltinNames())
}

func TestEvaluatePipeline_NoLeakedGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		res := f.engine.EvaluatePipeline(context.Background(), "/upper/wrap/x", Options{})
		require.True(t, res.Success, res.Error)
	}
}

func TestEvaluateIO_TwoPhases(t *testing.T) {
	f := newFixture(t)
	res := f.engine.EvaluateIO(context.Background(), "/mw/tail", Options{})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, ModeIO, res.Mode)
	assert.Equal(t, "mw(|tail(mw(|)))", res.Output)
	assert.Equal(t, 2, f.runner.count("mw"))
	assert.Equal(t, 1, f.runner.count("tail"))

	require.Len(t, res.Groups, 2)
	assert.Equal(t, RoleMiddle, res.Groups[0].Role)
	assert.Equal(t, RoleTail, res.Groups[1].Role)
	assert.Equal(t, "mw(|)", res.Groups[0].RequestOutput)
	assert.Equal(t, "tail(mw(|))", res.Groups[1].RequestOutput)
}

func TestEvaluateIO_InvocationCounts(t *testing.T) {
	f := newFixture(t)
	res := f.engine.EvaluateIO(context.Background(), "/mw/mw/tail", Options{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 4, f.runner.count("mw"), "every middle group runs once per phase")
	assert.Equal(t, 1, f.runner.count("tail"))
}

func TestEvaluateIO_SingleGroup(t *testing.T) {
	f := newFixture(t)
	res := f.engine.EvaluateIO(context.Background(), "/greet/bob", Options{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "hello variable", res.Output)

	f.engine.principals = nil
	res = f.engine.EvaluateIO(context.Background(), "/greet/bob", Options{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "hello bob", res.Output, "path parameters bind positionally")
	assert.Equal(t, []string{"bob"}, res.Groups[0].Params)
}

func TestEvaluateIO_DebugRunsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.engine.EvaluateIO(ctx, "/mw/tail", Options{Debug: true})
	require.True(t, res.Success, res.Error)
	assert.Zero(t, f.runner.total())
	assert.Equal(t, "false", res.Annotations[AnnotationExecuted])
	require.Len(t, res.Groups, 2)
	assert.Equal(t, RoleTail, res.Groups[1].Role)
	require.NotNil(t, res.Segments[0].Signature)
	assert.Equal(t, []string{"request", "response"}, res.Segments[0].Signature.Order)

	res = f.engine.EvaluateIO(ctx, "/script/tail", Options{Debug: true})
	assert.Equal(t, KindChainingUnsupported, res.ErrorKind)
	assert.NotNil(t, res.Segments[1].Signature)
	assert.Zero(t, f.runner.total())
}

func TestEvaluateIO_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.engine.EvaluateIO(ctx, "/script/tail", Options{})
	assert.Equal(t, KindChainingUnsupported, res.ErrorKind)
	assert.Zero(t, f.runner.total())

	res = f.engine.EvaluateIO(ctx, "/hello/tail", Options{})
	assert.Equal(t, KindNotFound, res.ErrorKind)

	res = f.engine.EvaluateIO(ctx, "/mw/boom", Options{})
	assert.Equal(t, KindExecutionRaised, res.ErrorKind)
	assert.NotEmpty(t, res.DiagnosticCID)
	assert.Len(t, res.Segments, 2)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		kind ErrorKind
	}{
		{nil, ""},
		{newError(KindNotFound, "x"), KindNotFound},
		{fmt.Errorf("wrapped: %w", runner.ErrTimeout), KindRunnerTimeout},
		{context.DeadlineExceeded, KindRunnerTimeout},
		{&params.MissingParameterError{Missing: []string{"a"}}, KindMissingRequiredParameter},
		{&params.UnsupportedSignatureError{Reasons: []string{"*args"}}, KindUnsupportedSignature},
		{cid.ErrContentTooLarge, KindContentTooLarge},
		{cid.ErrInvalidFormat, KindInvalidContentIdentifier},
		{&runner.ExecutionError{Message: "x"}, KindExecutionRaised},
		{errors.New("other"), KindExecutionRaised},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, Classify(tt.err), "%v", tt.err)
	}
}
