// Package segment models path segments and classifies them.
//
// Each segment gets a Kind (what it is) and a Policy (what to do with it).
// Kind is decided by priority: an enabled server, an alias with an internal
// target, a content identifier, and otherwise a literal parameter. Policy
// follows the segment's filename suffix.
package segment

import (
	"context"
	"strings"

	"viewer/internal/cid"
	"viewer/internal/language"
	"viewer/internal/signature"
)

// Kind is what a segment refers to.
type Kind string

const (
	KindServer    Kind = "server"
	KindAlias     Kind = "alias"
	KindCID       Kind = "cid"
	KindParameter Kind = "parameter"
)

// Policy is how a segment is resolved.
type Policy string

const (
	PolicyLiteral  Policy = "literal"
	PolicyContents Policy = "contents"
	PolicyExecute  Policy = "execute"
	PolicyError    Policy = "error"
)

// ErrorCode names a classification failure.
type ErrorCode string

const (
	ErrUnrecognizedExtension    ErrorCode = "UnrecognizedExtension"
	ErrDataExtensionMisuse      ErrorCode = "DataExtensionMisuse"
	ErrChainingUnsupported      ErrorCode = "ChainingUnsupported"
	ErrInvalidContentIdentifier ErrorCode = "InvalidContentIdentifier"
	ErrLookupFailed             ErrorCode = "LookupFailed"
)

// ChainingUnsupportedMessage is the error text for a non-terminal segment
// that cannot receive chained input.
const ChainingUnsupportedMessage = "server does not support chaining — can only be used as the final segment"

// Issue is one validation or execution problem attached to a segment.
type Issue struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Segment is one classified path token. Segments are created per evaluation
// and owned by it.
type Segment struct {
	Text     string `json:"text"`
	Name     string `json:"name"`
	Suffix   string `json:"suffix,omitempty"`
	Position int    `json:"position"`
	Total    int    `json:"total"`

	Kind   Kind   `json:"kind"`
	Policy Policy `json:"policy"`

	ServerName       string            `json:"server_name,omitempty"`
	Language         language.Language `json:"language,omitempty"`
	SupportsChaining bool              `json:"supports_chaining"`
	Builtin          bool              `json:"builtin,omitempty"`
	Disabled         bool              `json:"disabled,omitempty"`
	NotFound         bool              `json:"not_found,omitempty"`

	CID         string `json:"cid,omitempty"`
	AliasName   string `json:"alias_name,omitempty"`
	AliasTarget string `json:"alias_target,omitempty"`

	// ContentType is the type implied by a data suffix.
	ContentType string `json:"content_type,omitempty"`

	// Code is the resolved source for server and cid segments.
	Code string `json:"-"`

	// Signature is filled in when a debug evaluation inspects the segment.
	Signature *signature.Signature `json:"signature,omitempty"`

	// Region marks segments consumed by a control-flow server to their left.
	Region bool `json:"region,omitempty"`

	Errors []Issue `json:"errors,omitempty"`

	Executed          bool   `json:"executed"`
	Input             string `json:"input,omitempty"`
	Output            string `json:"output,omitempty"`
	OutputContentType string `json:"output_content_type,omitempty"`
}

// HasErrors reports whether the segment failed classification or execution.
func (s Segment) HasErrors() bool { return len(s.Errors) > 0 }

// AddError attaches an issue and marks the segment as an error.
func (s *Segment) AddError(code ErrorCode, message string) {
	s.Errors = append(s.Errors, Issue{Code: code, Message: message})
	s.Policy = PolicyError
}

// Invocable reports whether the segment names something that can run.
func (s Segment) Invocable() bool {
	return s.Kind == KindServer || s.Kind == KindAlias || s.Kind == KindCID
}

// Split breaks a request path into segments. Empty segments are dropped.
func Split(path string) []string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Join rebuilds an absolute path from segment texts.
func Join(parts []string) string {
	return "/" + strings.Join(parts, "/")
}

// ServerDefinition is a stored server as the classifier sees it.
type ServerDefinition struct {
	Name       string            `json:"name"`
	Definition string            `json:"definition"`
	Language   language.Language `json:"language,omitempty"`
	Enabled    bool              `json:"enabled"`
}

// AliasTarget is the result of matching a path against the alias store.
type AliasTarget struct {
	Matched    bool   `json:"matched"`
	Name       string `json:"name,omitempty"`
	TargetPath string `json:"target_path,omitempty"`
	IsRelative bool   `json:"is_relative"`
}

// ServerLookup finds servers by name.
type ServerLookup interface {
	LookupServer(ctx context.Context, name string) (ServerDefinition, bool, error)
}

// AliasLookup matches a path against stored aliases.
type AliasLookup interface {
	LookupAliasTarget(ctx context.Context, path string) (AliasTarget, error)
}

// ContentFetcher loads content by identifier.
type ContentFetcher interface {
	FetchContent(ctx context.Context, id cid.CID) ([]byte, bool, error)
}
