package engine

import (
	"context"
	"fmt"
	"strings"

	"viewer/internal/logging"
	"viewer/internal/segment"
	"viewer/internal/signature"
)

// Result annotations set by the engine.
const (
	// AnnotationExecuted is "false" on results of debug evaluations.
	AnnotationExecuted = "executed"

	// AnnotationAlias names the alias that rewrote a whole path.
	AnnotationAlias = "alias"
)

// inspect finishes a debug pipeline evaluation: segments are analysed and
// nothing runs.
func (e *Engine) inspect(ctx context.Context, res *Result, topLevel bool) *Result {
	res.Annotate(AnnotationExecuted, "false")
	if err := e.analyse(ctx, res.Segments); err != nil {
		res.fail(err)
		return res
	}
	if topLevel {
		if err := leadingError(res.Segments[0]); err != nil {
			res.fail(err)
			return res
		}
	}
	res.succeed("", DefaultContentType)
	return res
}

// analyse attaches a signature to every segment that would run and records
// the problems a real evaluation would hit before its runner starts. All
// segments are analysed; the leftmost problem is returned.
func (e *Engine) analyse(ctx context.Context, segs []segment.Segment) *Error {
	var first *Error
	note := func(s *segment.Segment, kind ErrorKind, msg string) {
		s.Errors = append(s.Errors, segment.Issue{Code: segment.ErrorCode(kind), Message: msg})
	}

	for i := range segs {
		s := &segs[i]
		if s.Policy == segment.PolicyExecute && !s.Builtin && s.Kind != segment.KindAlias {
			switch {
			case s.NotFound:
				note(s, KindNotFound, "no content stored for "+s.CID)
			default:
				sig, err := signature.Analyze(ctx, s.Language, s.Code)
				if err != nil {
					note(s, KindExecutionRaised, err.Error())
					break
				}
				s.Signature = &sig
				if !sig.Supported() {
					note(s, KindUnsupportedSignature, "unsupported signature: "+strings.Join(sig.Unsupported, "; "))
				}
			}
		}
		if first == nil && s.HasErrors() {
			first = &Error{
				Kind:    ErrorKind(s.Errors[0].Code),
				Message: fmt.Sprintf("segment %d (%s): %s", s.Position, s.Text, s.Errors[0].Message),
			}
		}
	}
	if first != nil {
		logging.EngineDebug("inspection found %s: %s", first.Kind, first.Message)
	}
	return first
}

// leadingError reports why s cannot start a top-level pipeline.
func leadingError(s segment.Segment) *Error {
	if s.Invocable() {
		return nil
	}
	if s.Disabled {
		return newError(KindServerDisabled, "server %s is disabled", s.Name)
	}
	return newError(KindNotFound, "no server, alias or content named %s", s.Name)
}

// rewrite matches the whole path against the aliases. Paths led by a server
// are left alone, since servers outrank aliases. Absolute targets never
// rewrite.
func (e *Engine) rewrite(ctx context.Context, parts []string) (AliasTarget, error) {
	if e.aliases == nil || len(parts) == 0 {
		return AliasTarget{}, nil
	}
	led, err := e.ledByServer(ctx, parts[0])
	if err != nil || led {
		return AliasTarget{}, err
	}
	target, err := e.aliases.LookupAliasTarget(ctx, segment.Join(parts))
	if err != nil {
		return AliasTarget{}, &Error{Kind: KindLookupFailed, Message: fmt.Sprintf("alias lookup failed: %v", err), Err: err}
	}
	if !target.Matched || !target.IsRelative {
		return AliasTarget{}, nil
	}
	return target, nil
}

func (e *Engine) ledByServer(ctx context.Context, first string) (bool, error) {
	if e.isBuiltin(first) {
		return true, nil
	}
	if e.servers == nil {
		return false, nil
	}
	def, found, err := e.servers.LookupServer(ctx, first)
	if err != nil {
		return false, &Error{Kind: KindLookupFailed, Message: fmt.Sprintf("server lookup failed: %v", err), Err: err}
	}
	return found && def.Enabled, nil
}
