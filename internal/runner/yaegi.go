package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"viewer/internal/language"
	"viewer/internal/logging"
)

// =============================================================================
// YAEGI GO RUNNER
// =============================================================================
// Go code runs in-process on the yaegi interpreter. Code that defines
// func main(...) is called through that function with bound arguments; code
// without one is evaluated as a script whose last expression or printed
// output is the result.
//
// Go does not allow main to take parameters or return values, so main is
// renamed before evaluation and exported through a package variable.

const entryVar = "ServerEntry"

var (
	mainDeclRe   = regexp.MustCompile(`(?m)^func\s+main\s*\(`)
	packageRe    = regexp.MustCompile(`(?m)^package\s+\w+`)
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
	byteSliceTyp = reflect.TypeOf([]byte(nil))
)

// GoRunner executes Go code with yaegi.
type GoRunner struct {
	timeout time.Duration
}

// NewGoRunner creates a Go runner with the given default timeout.
func NewGoRunner(timeout time.Duration) *GoRunner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GoRunner{timeout: timeout}
}

// Language implements LanguageRunner.
func (g *GoRunner) Language() language.Language { return language.Go }

// Run implements LanguageRunner. The call is abandoned, not interrupted, when
// the deadline passes: interpreted code cannot be preempted.
func (g *GoRunner) Run(ctx context.Context, inv Invocation) (*Output, error) {
	timer := logging.StartTimer(logging.CategoryRunner, "yaegi "+inv.Name)
	defer timer.Stop()

	timeout := g.timeout
	if inv.Timeout > 0 {
		timeout = inv.Timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	i := interp.New(interp.Options{
		Stdin:  strings.NewReader(inv.Input),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib: %w", err)
	}

	start := time.Now()
	type outcome struct {
		value reflect.Value
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &ExecutionError{Language: language.Go, Message: fmt.Sprintf("panic: %v", r)}}
			}
		}()
		v, err := g.evaluate(runCtx, i, inv)
		done <- outcome{value: v, err: err}
	}()

	var res outcome
	select {
	case res = <-done:
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			logging.RunnerWarn("yaegi %s: timeout after %s", inv.Name, timeout)
			return nil, fmt.Errorf("%w: go code after %s", ErrTimeout, timeout)
		}
		return nil, fmt.Errorf("go code canceled: %w", runCtx.Err())
	}

	out := &Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: go code after %s", ErrTimeout, timeout)
		}
		var execErr *ExecutionError
		if !errors.As(res.err, &execErr) {
			res.err = &ExecutionError{Language: language.Go, Message: res.err.Error(), Stderr: out.Stderr}
		}
		out.ExitCode = 1
		return out, res.err
	}

	if !language.HasEntryFunction(inv.Code) && out.Stdout != "" {
		// scripts that print produce their printed text, not the value of
		// the last statement
		out.Output = out.Stdout
		return out, nil
	}
	out.Output, out.ContentType = renderValue(res.value, out.Stdout)
	return out, nil
}

// evaluate loads the code and returns the entry function's result, or the
// script's final value.
func (g *GoRunner) evaluate(ctx context.Context, i *interp.Interpreter, inv Invocation) (reflect.Value, error) {
	if !language.HasEntryFunction(inv.Code) {
		v, err := i.EvalWithContext(ctx, inv.Code)
		if err != nil {
			return reflect.Value{}, err
		}
		return v, nil
	}

	if _, err := i.EvalWithContext(ctx, entrySource(inv.Code)); err != nil {
		return reflect.Value{}, err
	}
	fnv, err := i.EvalWithContext(ctx, "main."+entryVar)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("entry function not found: %w", err)
	}
	if fnv.Kind() != reflect.Func {
		return reflect.Value{}, fmt.Errorf("entry %s is %s, not a function", entryVar, fnv.Kind())
	}

	args, err := convertArgs(fnv.Type(), inv.Positional)
	if err != nil {
		return reflect.Value{}, &ExecutionError{Language: language.Go, Message: err.Error()}
	}
	return unpackResults(fnv.Call(args))
}

// entrySource rewrites main so it can take parameters and return values.
func entrySource(code string) string {
	src := mainDeclRe.ReplaceAllString(code, "func serverMain(")
	if !packageRe.MatchString(src) {
		src = "package main\n\n" + src
	}
	return src + "\n\nvar " + entryVar + " = serverMain\n"
}

func unpackResults(results []reflect.Value) (reflect.Value, error) {
	switch len(results) {
	case 0:
		return reflect.Value{}, nil
	case 1:
		if results[0].Type().Implements(errorType) && results[0].Type().Kind() == reflect.Interface {
			if !results[0].IsNil() {
				return reflect.Value{}, &ExecutionError{Language: language.Go, Message: results[0].Interface().(error).Error()}
			}
			return reflect.Value{}, nil
		}
		return results[0], nil
	default:
		last := results[len(results)-1]
		if last.Type().Implements(errorType) && !last.IsNil() {
			return reflect.Value{}, &ExecutionError{Language: language.Go, Message: last.Interface().(error).Error()}
		}
		return results[0], nil
	}
}

// convertArgs converts bound values to the entry function's parameter types.
// Missing trailing arguments get zero values.
func convertArgs(fnType reflect.Type, values []any) ([]reflect.Value, error) {
	if fnType.IsVariadic() {
		return nil, fmt.Errorf("variadic entry functions are not supported")
	}
	args := make([]reflect.Value, fnType.NumIn())
	for idx := range args {
		want := fnType.In(idx)
		if idx >= len(values) || values[idx] == nil {
			args[idx] = reflect.Zero(want)
			continue
		}
		v, err := convertValue(values[idx], want)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", idx+1, err)
		}
		args[idx] = v
	}
	return args, nil
}

func convertValue(val any, want reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(val)
	if rv.Type().AssignableTo(want) {
		return rv, nil
	}

	text, isText := val.(string)
	if !isText {
		text = fmt.Sprint(val)
	}

	switch want.Kind() {
	case reflect.String:
		if !isText {
			if data, err := json.Marshal(val); err == nil {
				text = string(data)
			}
		}
		return reflect.ValueOf(text).Convert(want), nil
	case reflect.Slice:
		if want == byteSliceTyp {
			return reflect.ValueOf([]byte(text)), nil
		}
	case reflect.Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b).Convert(want), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, want.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(n).Convert(want), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(strings.TrimSpace(text), 10, want.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(n).Convert(want), nil
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), want.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(f).Convert(want), nil
	}

	if rv.Type().ConvertibleTo(want) {
		return rv.Convert(want), nil
	}
	// structured parameters decode from JSON text
	ptr := reflect.New(want)
	if err := json.Unmarshal([]byte(text), ptr.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("cannot use %T as %s", val, want)
	}
	return ptr.Elem(), nil
}

// renderValue turns an entry result into output text and content type.
// An absent result falls back to printed output.
func renderValue(v reflect.Value, printed string) (string, string) {
	if !v.IsValid() {
		return printed, ""
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return printed, ""
		}
	}
	if !v.CanInterface() {
		return printed, ""
	}

	switch x := v.Interface().(type) {
	case string:
		return x, ""
	case []byte:
		return string(x), ""
	case map[string]any:
		if out, ok := x["output"]; ok {
			ct, _ := x["content_type"].(string)
			text, _ := renderValue(reflect.ValueOf(out), "")
			return text, ct
		}
		data, _ := json.Marshal(x)
		return string(data), "application/json"
	case map[string]string:
		if out, ok := x["output"]; ok {
			return out, x["content_type"]
		}
		data, _ := json.Marshal(x)
		return string(data), "application/json"
	case fmt.Stringer:
		return x.String(), ""
	}

	switch v.Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array:
		if data, err := json.Marshal(v.Interface()); err == nil {
			return string(data), "application/json"
		}
	}
	return fmt.Sprint(v.Interface()), ""
}
