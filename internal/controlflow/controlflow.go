// Package controlflow implements the if, try and do built-in servers. Each
// one splits the path segments to its right into keyword-separated regions
// and evaluates every region as an ordinary pipeline.
//
//	/if/<test>/then/<then>[/else/<else>]
//	/try/<body>/catch/<handler>
//	/do/<body>[/while/<condition>]
package controlflow

import (
	"context"
	"strconv"
	"strings"
	"time"

	"viewer/internal/config"
	"viewer/internal/engine"
	"viewer/internal/logging"
)

// Annotation keys set on control-flow results.
const (
	AnnotationBranch      = "if-branch"
	AnnotationErrorType   = "error-type"
	AnnotationErrorStatus = "error-status"
	AnnotationErrorMsg    = "error-message"
	AnnotationTermination = "termination-cause"
	AnnotationIterations  = "iterations"
)

// Termination causes reported by do.
const (
	StopCondition  = "condition"
	StopIterations = "iterations"
	StopTime       = "time"
	StopCost       = "cost"
)

var falsy = map[string]bool{"": true, "false": true, "0": true, "null": true, "none": true}

// Truthy reports whether r counts as true: it succeeded with a status below
// 400 and its trimmed output is not one of "", false, 0, null or none.
func Truthy(r *engine.Result) bool {
	if r.Failure() {
		return false
	}
	return !falsy[strings.ToLower(strings.TrimSpace(r.Output))]
}

// Builtins returns the control-flow servers with do caps from cfg.
func Builtins(cfg config.ControlFlowConfig) []engine.Builtin {
	return []engine.Builtin{If{}, Try{}, Do{Limits: LimitsFromConfig(cfg)}}
}

func invalid(err error) *engine.Result {
	return engine.Failed(engine.NewError(engine.KindInvalidControlFlow, "%v", err))
}

// If evaluates its test region and then one branch.
type If struct{}

func (If) Name() string { return ifConstruct.opener }

func (If) Invoke(ctx context.Context, call engine.BuiltinCall) *engine.Result {
	r, err := split(ifConstruct, call.Args)
	if err != nil {
		return invalid(err)
	}

	test := call.Evaluate(ctx, r.Head)
	branch := "then"
	switch {
	case Truthy(test):
	case r.has("else"):
		branch = "else"
	default:
		branch = "test"
	}
	logging.ControlFlowDebug("if %v: truthy=%v branch=%s", r.Head, branch == "then", branch)

	out := test
	if branch != "test" {
		out = call.Evaluate(ctx, r.Parts[branch])
	}
	out.Annotate(AnnotationBranch, branch)
	return out
}

// Try evaluates its body and falls back to the catch region when the body
// fails or returns a status of 400 or above.
type Try struct{}

func (Try) Name() string { return tryConstruct.opener }

func (Try) Invoke(ctx context.Context, call engine.BuiltinCall) *engine.Result {
	r, err := split(tryConstruct, call.Args)
	if err != nil {
		return invalid(err)
	}

	body := call.Evaluate(ctx, r.Head)
	if !body.Failure() {
		return body
	}
	logging.ControlFlowDebug("try %v caught %s (%d): %s", r.Head, body.ErrorKind, body.Status, body.Error)

	errType := string(body.ErrorKind)
	if errType == "" {
		errType = "HTTPError"
	}
	handler := call.Evaluate(ctx, r.Parts["catch"])
	handler.Annotate(AnnotationErrorType, errType)
	handler.Annotate(AnnotationErrorStatus, strconv.Itoa(body.Status))
	handler.Annotate(AnnotationErrorMsg, body.Error)
	return handler
}

// Limits cap a do loop. Time and cost caps that are zero or negative are
// not applied; the iteration cap falls back to the configured default.
type Limits struct {
	MaxIterations      int
	MaxDuration        time.Duration
	MaxCost            float64
	CostPerByte        float64
	CostPerMillisecond float64
}

// LimitsFromConfig converts the configured caps.
func LimitsFromConfig(cfg config.ControlFlowConfig) Limits {
	return Limits{
		MaxIterations:      cfg.MaxIterations,
		MaxDuration:        cfg.GetMaxDuration(),
		MaxCost:            cfg.MaxCost,
		CostPerByte:        cfg.CostPerByte,
		CostPerMillisecond: cfg.CostPerMillisecond,
	}
}

// Do repeats its body while its condition holds, concatenating the body's
// output, until the condition is false or a cap is reached.
type Do struct {
	Limits Limits

	// now is replaced in tests.
	now func() time.Time
}

func (Do) Name() string { return doConstruct.opener }

func (d Do) Invoke(ctx context.Context, call engine.BuiltinCall) *engine.Result {
	r, err := split(doConstruct, call.Args)
	if err != nil {
		return invalid(err)
	}
	now := d.now
	if now == nil {
		now = time.Now
	}
	limits := d.Limits
	if limits.MaxIterations <= 0 {
		limits.MaxIterations = config.DefaultControlFlowConfig().MaxIterations
	}

	var (
		output      strings.Builder
		contentType string
		cost        float64
		iterations  int
		cause       string
	)
	start := now()

	for cause == "" {
		if err := ctx.Err(); err != nil {
			return engine.Failed(err)
		}
		iterStart := now()

		body := call.Evaluate(ctx, r.Head)
		iterations++
		if body.Failure() {
			body.Annotate(AnnotationIterations, strconv.Itoa(iterations))
			return body
		}
		output.WriteString(body.Output)
		if body.ContentType != "" {
			contentType = body.ContentType
		}
		processed := len(body.Output)

		proceed := false
		if r.has("while") {
			cond := call.Evaluate(ctx, r.Parts["while"])
			processed += len(cond.Output)
			proceed = Truthy(cond)
		}
		cost += float64(processed)*limits.CostPerByte +
			float64(now().Sub(iterStart).Milliseconds())*limits.CostPerMillisecond

		switch {
		case !proceed:
			cause = StopCondition
		case iterations >= limits.MaxIterations:
			cause = StopIterations
		case limits.MaxDuration > 0 && now().Sub(start) >= limits.MaxDuration:
			cause = StopTime
		case limits.MaxCost > 0 && cost >= limits.MaxCost:
			cause = StopCost
		}
	}

	logging.ControlFlowDebug("do %v: %d iterations, cost %.3f, stopped by %s", r.Head, iterations, cost, cause)
	out := engine.Literal(output.String(), contentType)
	out.Annotate(AnnotationTermination, cause)
	out.Annotate(AnnotationIterations, strconv.Itoa(iterations))
	return out
}
