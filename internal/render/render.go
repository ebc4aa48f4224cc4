// Package render turns evaluation results into JSON, HTML, plain text or
// Markdown. Renderers only read the result; nothing is evaluated again.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"viewer/internal/engine"
)

// Format is an output format for debug views.
type Format string

const (
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatText:
		return "text/plain; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "application/json"
	}
}

// ParseFormat accepts format names and common aliases.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, true
	case "html", "htm":
		return FormatHTML, true
	case "text", "txt", "plain":
		return FormatText, true
	case "markdown", "md":
		return FormatMarkdown, true
	}
	return "", false
}

// Negotiate picks a format from an Accept header, defaulting to JSON.
func Negotiate(accept string) Format {
	for _, part := range strings.Split(accept, ",") {
		mediaType := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		switch mediaType {
		case "text/html", "application/xhtml+xml":
			return FormatHTML
		case "text/plain":
			return FormatText
		case "text/markdown":
			return FormatMarkdown
		case "application/json":
			return FormatJSON
		}
	}
	return FormatJSON
}

// Render writes res to w in format f.
func Render(w io.Writer, res *engine.Result, f Format) error {
	switch f {
	case FormatHTML:
		return HTML(w, res)
	case FormatText:
		_, err := io.WriteString(w, Text(res))
		return err
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(res))
		return err
	case FormatJSON, "":
		return JSON(w, res)
	}
	return fmt.Errorf("unknown render format %q", f)
}

// JSON writes res as indented JSON.
func JSON(w io.Writer, res *engine.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
