package engine

import (
	"context"
	"errors"
	"time"

	"viewer/internal/cid"
	"viewer/internal/logging"
	"viewer/internal/params"
	"viewer/internal/runner"
	"viewer/internal/segment"
	"viewer/internal/signature"
)

// call carries what a single invocation receives besides the request.
type call struct {
	// input is the chained value. It binds to the input parameter and is
	// offered on stdin.
	input *string

	// base adds base arguments for this call only.
	base map[string]any

	// positional are path parameter tokens, bound in order to parameters
	// the request did not supply.
	positional []string
}

// invoke runs an execute-policy segment.
func (e *Engine) invoke(ctx context.Context, s *segment.Segment, c call, st *state) *Result {
	if s.Kind == segment.KindAlias {
		logging.EngineDebug("alias %s -> %s", s.AliasName, s.AliasTarget)
		return e.pipeline(ctx, segment.Split(s.AliasTarget), st, c.input, false)
	}
	if s.NotFound {
		return Failed(newError(KindNotFound, "no content stored for %s", s.CID))
	}

	name := s.ServerName
	if name == "" {
		name = s.CID
	}

	sig, err := signature.Analyze(ctx, s.Language, s.Code)
	if err != nil {
		return Failed(&Error{Kind: KindExecutionRaised, Message: err.Error(), Err: err})
	}

	req := st.request
	if len(c.base) > 0 {
		merged := make(map[string]any, len(req.BaseArgs)+len(c.base))
		for k, v := range req.BaseArgs {
			merged[k] = v
		}
		for k, v := range c.base {
			merged[k] = v
		}
		req.BaseArgs = merged
	}

	res, err := params.Resolve(sig, req, true)
	if err != nil {
		return Failed(err)
	}
	leftover := res.BindPositional(c.positional)
	stdin := ""
	if c.input != nil {
		stdin = *c.input
		res.BindChained(stdin)
	}
	if err := res.Err(); err != nil {
		return Failed(err)
	}

	positional := res.Positional(sig)
	if !sig.HasEntry {
		for _, v := range leftover {
			positional = append(positional, v)
		}
	}

	lr, ok := e.runners.Get(s.Language)
	if !ok {
		return Failed(newError(KindExecutionRaised, "no runner registered for language %q", s.Language))
	}

	inv := runner.Invocation{
		Name:       name,
		Language:   s.Language,
		Code:       s.Code,
		Signature:  sig,
		Args:       res.Bound,
		Positional: positional,
		Input:      stdin,
		Timeout:    e.timeout,
	}

	start := time.Now()
	out, err := lr.Run(ctx, inv)
	elapsed := time.Since(start)

	if err != nil {
		logging.RunnerWarn("%s (%s) failed after %v: %v", name, s.Language, elapsed, err)
		result := Failed(err)
		result.failure = &failure{
			name:     name,
			language: string(s.Language),
			code:     s.Code,
			args:     res.Bound,
			input:    stdin,
		}
		var execErr *runner.ExecutionError
		if errors.As(err, &execErr) {
			result.failure.stderr = execErr.Stderr
		} else if out != nil {
			result.failure.stderr = out.Stderr
		}
		e.record(ctx, InvocationRecord{ServerName: name, Duration: elapsed, Failed: true})
		return result
	}

	id, err := e.storeOutput(ctx, []byte(out.Output))
	if err != nil {
		return Failed(err)
	}
	aux := []string{}
	if s.CID != "" {
		aux = append(aux, s.CID)
	}
	e.record(ctx, InvocationRecord{ServerName: name, ResultCID: id.Value(), AuxiliaryCIDs: aux, Duration: elapsed})

	logging.RunnerDebug("%s (%s) ok in %v: %d bytes", name, s.Language, elapsed, len(out.Output))
	result := Literal(out.Output, out.ContentType)
	result.ResultCID = id.Value()
	return result
}

// invokeBuiltin hands the segments to the right of a built-in to it.
func (e *Engine) invokeBuiltin(ctx context.Context, s *segment.Segment, args []string, st *state) *Result {
	b, ok := e.builtins[s.Name]
	if !ok {
		return Failed(newError(KindNotFound, "no built-in server named %s", s.Name))
	}
	logging.ControlFlowDebug("%s %v", s.Name, args)
	return b.Invoke(ctx, BuiltinCall{
		Name: s.Name,
		Args: args,
		Evaluate: func(ctx context.Context, parts []string) *Result {
			return e.pipeline(ctx, parts, st, nil, false)
		},
	})
}

// contents returns what a contents-policy segment refers to without running it.
func (e *Engine) contents(_ context.Context, s *segment.Segment) *Result {
	switch {
	case s.NotFound:
		return Failed(newError(KindNotFound, "no content stored for %s", s.CID))
	case s.Builtin:
		return Failed(newError(KindNotFound, "built-in server %s has no stored source", s.Name))
	case s.Kind == segment.KindAlias:
		return Literal(s.AliasTarget, s.ContentType)
	default:
		return Literal(s.Code, s.ContentType)
	}
}

// storeOutput addresses data and saves it to the content store. A failed
// save is logged; the identifier is still returned.
func (e *Engine) storeOutput(ctx context.Context, data []byte) (cid.CID, error) {
	id, err := cid.IdentifyLimited(data, e.maxContentBytes)
	if err != nil {
		return cid.CID{}, err
	}
	if e.content == nil {
		return id, nil
	}
	if _, err := e.content.StoreContent(ctx, data); err != nil {
		logging.EngineWarn("store content %s: %v", id, err)
	}
	return id, nil
}

func (e *Engine) record(ctx context.Context, rec InvocationRecord) {
	if e.recorder == nil {
		return
	}
	e.recorder.RecordInvocation(ctx, rec)
}

// finish applies what only the outermost evaluation does: the result is
// addressed, and execution failures get a stored diagnostic.
func (e *Engine) finish(ctx context.Context, res *Result) {
	if res.Success {
		if res.ContentType == "" {
			res.ContentType = DefaultContentType
		}
		if id, err := e.storeOutput(ctx, []byte(res.Output)); err == nil {
			res.ResultCID = id.Value()
		}
		return
	}
	if res.ErrorKind == KindExecutionRaised && res.failure != nil {
		e.attachDiagnostic(ctx, res)
	}
}
