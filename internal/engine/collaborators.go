package engine

import (
	"context"
	"time"

	"viewer/internal/cid"
	"viewer/internal/segment"
)

// ServerLookup finds stored servers by name.
type ServerLookup = segment.ServerLookup

// AliasLookup matches paths against stored aliases, substituting
// placeholders into the target.
type AliasLookup = segment.AliasLookup

// ServerDefinition is a stored server.
type ServerDefinition = segment.ServerDefinition

// AliasTarget is an alias match.
type AliasTarget = segment.AliasTarget

// ContentStore reads and writes content-addressed blobs.
type ContentStore interface {
	FetchContent(ctx context.Context, id cid.CID) ([]byte, bool, error)
	StoreContent(ctx context.Context, data []byte) (cid.CID, error)
}

// Principal is the acting user's enabled variables and secrets.
type Principal struct {
	Name      string
	Variables map[string]string
	Secrets   map[string]string
}

// PrincipalContext supplies the acting principal for a request.
type PrincipalContext interface {
	CurrentPrincipal(ctx context.Context) (Principal, error)
}

// InvocationRecord describes one server invocation.
type InvocationRecord struct {
	ServerName    string
	ResultCID     string
	AuxiliaryCIDs []string
	Duration      time.Duration
	Failed        bool
}

// InvocationRecorder receives invocation telemetry. Failures are the
// recorder's concern; the engine never waits on or reacts to them.
type InvocationRecorder interface {
	RecordInvocation(ctx context.Context, rec InvocationRecord)
}

// Builtin is a server implemented by the engine's host, such as the
// control-flow servers. A built-in consumes every segment to its right.
type Builtin interface {
	Name() string
	Invoke(ctx context.Context, call BuiltinCall) *Result
}

// BuiltinCall is a built-in invocation.
type BuiltinCall struct {
	Name string

	// Args are the path segments to the right of the built-in.
	Args []string

	// Evaluate runs parts as a pipeline nested in the current evaluation,
	// sharing its cycle guard and request.
	Evaluate func(ctx context.Context, parts []string) *Result
}
