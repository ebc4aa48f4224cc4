package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"viewer/internal/cid"
	"viewer/internal/params"
	"viewer/internal/runner"
	"viewer/internal/segment"
)

// ErrorKind classifies evaluation failures.
type ErrorKind string

const (
	KindInvalidContentIdentifier ErrorKind = "InvalidContentIdentifier"
	KindContentTooLarge          ErrorKind = "ContentTooLarge"
	KindUnrecognizedExtension    ErrorKind = "UnrecognizedExtension"
	KindDataExtensionMisuse      ErrorKind = "DataExtensionMisuse"
	KindChainingUnsupported      ErrorKind = "ChainingUnsupported"
	KindMissingRequiredParameter ErrorKind = "MissingRequiredParameter"
	KindUnsupportedSignature     ErrorKind = "UnsupportedSignature"
	KindCycleDetected            ErrorKind = "CycleDetected"
	KindRunnerTimeout            ErrorKind = "RunnerTimeout"
	KindExecutionRaised          ErrorKind = "ExecutionRaised"
	KindNotFound                 ErrorKind = "NotFound"
	KindServerDisabled           ErrorKind = "ServerDisabled"
	KindLookupFailed             ErrorKind = "LookupFailed"
	KindInvalidControlFlow       ErrorKind = "InvalidControlFlow"
)

// Status returns the HTTP status code reported for k.
func (k ErrorKind) Status() int {
	switch k {
	case "":
		return http.StatusOK
	case KindInvalidContentIdentifier, KindUnrecognizedExtension, KindDataExtensionMisuse,
		KindChainingUnsupported, KindMissingRequiredParameter, KindInvalidControlFlow:
		return http.StatusBadRequest
	case KindUnsupportedSignature:
		return http.StatusUnprocessableEntity
	case KindContentTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindNotFound:
		return http.StatusNotFound
	case KindServerDisabled:
		return http.StatusForbidden
	case KindCycleDetected:
		return http.StatusLoopDetected
	case KindRunnerTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Error is an evaluation failure with its kind.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewError returns an Error of the given kind.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return newError(kind, format, args...)
}

// Failure reports whether r counts as a failure to control flow: an error,
// or a status of 400 or above.
func (r *Result) Failure() bool {
	return r == nil || !r.Success || r.Status >= http.StatusBadRequest
}

// Classify maps an error to its kind.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var engErr *Error
	var missing *params.MissingParameterError
	var unsupported *params.UnsupportedSignatureError
	var execErr *runner.ExecutionError
	switch {
	case errors.As(err, &engErr):
		return engErr.Kind
	case errors.Is(err, runner.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindRunnerTimeout
	case errors.As(err, &missing):
		return KindMissingRequiredParameter
	case errors.As(err, &unsupported):
		return KindUnsupportedSignature
	case errors.Is(err, cid.ErrContentTooLarge):
		return KindContentTooLarge
	case errors.Is(err, cid.ErrInvalidFormat):
		return KindInvalidContentIdentifier
	case errors.As(err, &execErr):
		return KindExecutionRaised
	}
	return KindExecutionRaised
}

// Mode is the evaluator that produced a Result.
type Mode string

const (
	ModePipeline Mode = "pipeline"
	ModeIO       Mode = "io"
)

// Result is the outcome of one evaluation. It carries everything the
// renderers need, so debug views never re-run evaluation.
type Result struct {
	Path        string            `json:"path"`
	Mode        Mode              `json:"mode"`
	Segments    []segment.Segment `json:"segments"`
	Output      string            `json:"output"`
	ContentType string            `json:"content_type"`
	Success     bool              `json:"success"`
	Error       string            `json:"error,omitempty"`
	ErrorKind   ErrorKind         `json:"error_kind,omitempty"`
	Status      int               `json:"status"`
	Debug       bool              `json:"debug,omitempty"`

	// Annotations carry control-flow metadata such as the termination cause.
	Annotations map[string]string `json:"annotations,omitempty"`

	// Groups describes io chain groups; empty for pipelines.
	Groups []Group `json:"groups,omitempty"`

	// DiagnosticCID links the stored diagnostic for execution-raised errors.
	DiagnosticCID string `json:"diagnostic_cid,omitempty"`

	// ResultCID identifies the stored output of a successful evaluation.
	ResultCID string `json:"result_cid,omitempty"`

	failure *failure
}

// failure keeps what a diagnostic needs about the invocation that raised.
type failure struct {
	name     string
	language string
	code     string
	args     map[string]any
	input    string
	stderr   string
}

// Annotate sets a metadata entry.
func (r *Result) Annotate(key, value string) {
	if r.Annotations == nil {
		r.Annotations = make(map[string]string)
	}
	r.Annotations[key] = value
}

// Failed builds a failed Result from err.
func Failed(err error) *Result {
	r := &Result{}
	r.fail(err)
	return r
}

// Literal builds a successful Result carrying output.
func Literal(output, contentType string) *Result {
	return &Result{Output: output, ContentType: contentType, Success: true, Status: http.StatusOK}
}

func (r *Result) fail(err error) {
	kind := Classify(err)
	r.Success = false
	r.Error = err.Error()
	r.ErrorKind = kind
	r.Status = kind.Status()
}

func (r *Result) succeed(output, contentType string) {
	r.Output = output
	r.ContentType = contentType
	r.Success = true
	r.Error = ""
	r.ErrorKind = ""
	r.Status = http.StatusOK
}

// Err returns the failure as an error, or nil on success.
func (r *Result) Err() error {
	if r.Success {
		return nil
	}
	return &Error{Kind: r.ErrorKind, Message: r.Error}
}
