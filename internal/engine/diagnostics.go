package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"viewer/internal/logging"
)

// maxSourceLines caps the source excerpt in a diagnostic.
const maxSourceLines = 60

// attachDiagnostic renders the failure, stores it as content and links it
// from res. The diagnostic is recorded as an invocation of the failed server.
func (e *Engine) attachDiagnostic(ctx context.Context, res *Result) {
	text := renderDiagnostic(res)
	id, err := e.storeOutput(ctx, []byte(text))
	if err != nil {
		logging.EngineWarn("diagnostic for %s not stored: %v", res.Path, err)
		return
	}
	res.DiagnosticCID = id.Value()
	e.record(ctx, InvocationRecord{
		ServerName:    res.failure.name,
		ResultCID:     id.Value(),
		AuxiliaryCIDs: []string{},
		Failed:        true,
	})
	logging.Engine("diagnostic %s stored for %s", id, res.Path)
}

func renderDiagnostic(res *Result) string {
	f := res.failure
	var b strings.Builder

	fmt.Fprintf(&b, "Error: %s\n", res.Error)
	fmt.Fprintf(&b, "Path: %s\n", res.Path)
	fmt.Fprintf(&b, "Server: %s (%s)\n", f.name, f.language)

	b.WriteString("\nSource:\n")
	lines := strings.Split(strings.TrimRight(f.code, "\n"), "\n")
	for i, line := range lines {
		if i == maxSourceLines {
			fmt.Fprintf(&b, "      ... %d more lines\n", len(lines)-maxSourceLines)
			break
		}
		fmt.Fprintf(&b, "%5d | %s\n", i+1, line)
	}

	b.WriteString("\nArguments:\n")
	args := f.args
	if args == nil {
		args = map[string]any{}
	}
	if data, err := json.MarshalIndent(args, "", "  "); err == nil {
		b.Write(data)
		b.WriteByte('\n')
	} else {
		fmt.Fprintf(&b, "%v\n", args)
	}

	if f.input != "" {
		fmt.Fprintf(&b, "\nInput:\n%s\n", f.input)
	}
	if f.stderr != "" {
		fmt.Fprintf(&b, "\nStderr:\n%s\n", strings.TrimRight(f.stderr, "\n"))
	}
	return b.String()
}
