package engine

import (
	"context"
	"fmt"

	"viewer/internal/logging"
	"viewer/internal/segment"
)

// GroupRole is a group's place in an io chain.
type GroupRole string

const (
	RoleMiddle GroupRole = "middle"
	RoleTail   GroupRole = "tail"
)

// Group is one invocable segment of an io path with the parameter tokens to
// its right.
type Group struct {
	Role    GroupRole `json:"role"`
	Segment string    `json:"segment"`
	Params  []string  `json:"params,omitempty"`

	RequestInput   string `json:"request_input"`
	RequestOutput  string `json:"request_output"`
	ResponseOutput string `json:"response_output,omitempty"`

	index int
}

// EvaluateIO evaluates path as an io chain. The request phase runs the
// groups left to right, each receiving the previous group's output as its
// request. The tail's output becomes the response, which then flows right
// to left through every other group.
func (e *Engine) EvaluateIO(ctx context.Context, path string, opts Options) *Result {
	timer := logging.StartTimer(logging.CategoryEngine, "io "+path)
	defer timer.Stop()

	res := &Result{Path: path, Mode: ModeIO, Debug: opts.Debug}
	st, err := e.newState(ctx, opts)
	if err != nil {
		res.fail(err)
		return res
	}

	parts := segment.Split(path)
	st, ok := st.child(segment.Join(parts))
	if !ok {
		res.fail(newError(KindCycleDetected, "cycle detected: %s", path))
		return res
	}
	for {
		target, err := e.rewrite(ctx, parts)
		if err != nil {
			res.fail(err)
			return res
		}
		if !target.Matched {
			break
		}
		logging.EngineDebug("io path alias %s: %s -> %s", target.Name, segment.Join(parts), target.TargetPath)
		parts = segment.Split(target.TargetPath)
		if st, ok = st.child(segment.Join(parts)); !ok || st.depth > e.maxDepth {
			res.fail(newError(KindCycleDetected, "cycle detected: alias %s rewrites %s back onto itself", target.Name, path))
			return res
		}
		res.Annotate(AnnotationAlias, target.Name)
	}

	e.io(ctx, res, parts, st)
	if !opts.Debug {
		e.finish(ctx, res)
	}

	logging.Engine("io %s: status=%d success=%v groups=%d", path, res.Status, res.Success, len(res.Groups))
	return res
}

func (e *Engine) io(ctx context.Context, res *Result, parts []string, st *state) {
	res.Segments = e.classifier.ClassifyTokens(ctx, parts)
	segs := res.Segments

	// a debug evaluation analyses every segment and stops before the
	// request phase
	var problem *Error
	if st.debug {
		res.Annotate(AnnotationExecuted, "false")
		problem = e.analyse(ctx, segs)
	} else {
		for _, s := range segs {
			if s.HasErrors() {
				res.fail(&Error{
					Kind:    ErrorKind(s.Errors[0].Code),
					Message: fmt.Sprintf("segment %d (%s): %s", s.Position, s.Text, s.Errors[0].Message),
				})
				return
			}
		}
	}

	groups, err := groupSegments(segs)
	if err != nil {
		if problem != nil {
			res.fail(problem)
		} else {
			res.fail(err)
		}
		return
	}
	res.Groups = groups

	for i := range groups {
		s := &segs[groups[i].index]
		if s.Builtin {
			for j := groups[i].index + 1; j <= groups[i].index+len(groups[i].Params); j++ {
				segs[j].Region = true
			}
		}
		if i < len(groups)-1 && !s.SupportsChaining {
			s.AddError(segment.ErrChainingUnsupported, segment.ChainingUnsupportedMessage)
			if problem == nil {
				problem = newError(KindChainingUnsupported, "segment %d (%s): %s", s.Position, s.Text, segment.ChainingUnsupportedMessage)
			}
			if !st.debug {
				break
			}
		}
	}
	if problem != nil {
		res.fail(problem)
		return
	}
	if st.debug {
		res.succeed("", DefaultContentType)
		return
	}

	contentType := ""
	run := func(g *Group, input *string, base map[string]any) (*Result, bool) {
		s := &segs[g.index]
		var out *Result
		switch {
		case s.Policy == segment.PolicyContents:
			out = e.contents(ctx, s)
		case s.Builtin:
			out = e.invokeBuiltin(ctx, s, g.Params, st)
		default:
			out = e.invoke(ctx, s, call{input: input, base: base, positional: g.Params}, st)
		}
		s.Executed = true
		for j := g.index + 1; j <= g.index+len(g.Params); j++ {
			segs[j].Executed = true
		}
		if !out.Success {
			s.Errors = append(s.Errors, segment.Issue{Code: segment.ErrorCode(out.ErrorKind), Message: out.Error})
			*res = mergeFailure(res, out)
			return nil, false
		}
		if input != nil {
			s.Input = *input
		}
		s.Output = out.Output
		s.OutputContentType = out.ContentType
		if out.ContentType != "" {
			contentType = out.ContentType
		}
		for k, v := range out.Annotations {
			res.Annotate(k, v)
		}
		return out, true
	}

	// request phase
	prev := ""
	for i := range groups {
		g := &groups[i]
		g.RequestInput = prev
		var input *string
		if i > 0 {
			v := prev
			input = &v
		}
		out, ok := run(g, input, map[string]any{"request": prev, "response": "", "input": prev})
		if !ok {
			return
		}
		g.RequestOutput = out.Output
		prev = out.Output
	}

	// response phase
	response := prev
	for i := len(groups) - 2; i >= 0; i-- {
		g := &groups[i]
		v := response
		out, ok := run(g, &v, map[string]any{"request": g.RequestInput, "response": response, "input": response})
		if !ok {
			return
		}
		g.ResponseOutput = out.Output
		response = out.Output
	}

	if contentType == "" {
		contentType = DefaultContentType
	}
	res.succeed(response, contentType)
}

// groupSegments pairs every invocable segment with the parameter tokens that
// follow it. The last group is the tail.
func groupSegments(segs []segment.Segment) ([]Group, error) {
	var groups []Group
	for i, s := range segs {
		if s.Invocable() {
			groups = append(groups, Group{Role: RoleMiddle, Segment: s.Text, index: i})
			continue
		}
		if len(groups) == 0 {
			if s.Disabled {
				return nil, newError(KindServerDisabled, "server %s is disabled", s.Name)
			}
			return nil, newError(KindNotFound, "io path must start with a server, alias or content identifier, got %s", s.Text)
		}
		last := &groups[len(groups)-1]
		last.Params = append(last.Params, s.Text)
	}
	if len(groups) == 0 {
		return nil, newError(KindNotFound, "empty io path")
	}
	groups[len(groups)-1].Role = RoleTail
	return groups, nil
}

// mergeFailure copies a failed group result into the chain result while
// keeping the chain's own bookkeeping.
func mergeFailure(chain, out *Result) Result {
	merged := *chain
	merged.Success = false
	merged.Error = out.Error
	merged.ErrorKind = out.ErrorKind
	merged.Status = out.Status
	merged.failure = out.failure
	return merged
}
