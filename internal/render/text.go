package render

import (
	"fmt"
	"sort"
	"strings"

	"viewer/internal/engine"
	"viewer/internal/segment"
)

// maxPreview bounds inputs and outputs shown per segment.
const maxPreview = 200

func preview(s string) string {
	s = strings.ReplaceAll(s, "\n", `\n`)
	if len(s) > maxPreview {
		return s[:maxPreview] + "…"
	}
	return s
}

func status(res *engine.Result) string {
	if res.Success {
		return fmt.Sprintf("ok (%d)", res.Status)
	}
	return fmt.Sprintf("%s (%d)", res.ErrorKind, res.Status)
}

func sortedAnnotations(res *engine.Result) []string {
	keys := make([]string, 0, len(res.Annotations))
	for k := range res.Annotations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func describe(s segment.Segment) string {
	var parts []string
	parts = append(parts, string(s.Kind), string(s.Policy))
	if s.Language != "" {
		parts = append(parts, string(s.Language))
	}
	if s.Kind != segment.KindParameter {
		if s.SupportsChaining {
			parts = append(parts, "chains")
		} else {
			parts = append(parts, "terminal only")
		}
	}
	if s.Region {
		parts = append(parts, "region")
	}
	if s.AliasTarget != "" {
		parts = append(parts, "-> "+s.AliasTarget)
	}
	if s.Signature != nil {
		parts = append(parts, s.Signature.Describe())
	}
	return strings.Join(parts, ", ")
}

// Text renders res as plain text.
func Text(res *engine.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", strings.ToUpper(string(res.Mode)), res.Path)
	fmt.Fprintf(&b, "status: %s\n", status(res))
	if res.Error != "" {
		fmt.Fprintf(&b, "error: %s\n", res.Error)
	}
	if res.DiagnosticCID != "" {
		fmt.Fprintf(&b, "diagnostic: /%s.txt\n", res.DiagnosticCID)
	}

	b.WriteString("\nsegments:\n")
	for _, s := range res.Segments {
		mark := " "
		if s.Executed {
			mark = "*"
		}
		fmt.Fprintf(&b, "%s [%d] %s (%s)\n", mark, s.Position, s.Text, describe(s))
		for _, issue := range s.Errors {
			fmt.Fprintf(&b, "      ! %s: %s\n", issue.Code, issue.Message)
		}
		if s.Executed && s.Input != "" {
			fmt.Fprintf(&b, "      in:  %s\n", preview(s.Input))
		}
		if s.Executed && s.Output != "" {
			fmt.Fprintf(&b, "      out: %s\n", preview(s.Output))
		}
	}

	if len(res.Groups) > 0 {
		b.WriteString("\ngroups:\n")
		for i, g := range res.Groups {
			fmt.Fprintf(&b, "  %d %s %s %v\n", i, g.Role, g.Segment, g.Params)
			fmt.Fprintf(&b, "      request:  %s -> %s\n", preview(g.RequestInput), preview(g.RequestOutput))
			if g.Role == engine.RoleMiddle {
				fmt.Fprintf(&b, "      response: %s\n", preview(g.ResponseOutput))
			}
		}
	}

	if len(res.Annotations) > 0 {
		b.WriteString("\nannotations:\n")
		for _, k := range sortedAnnotations(res) {
			fmt.Fprintf(&b, "  %s = %s\n", k, res.Annotations[k])
		}
	}

	if res.Success {
		fmt.Fprintf(&b, "\noutput (%s):\n%s\n", res.ContentType, res.Output)
	}
	return b.String()
}

// Markdown renders res as a Markdown report.
func Markdown(res *engine.Result) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## %s `%s`\n\n", strings.ToUpper(string(res.Mode)), res.Path))
	sb.WriteString(fmt.Sprintf("**Status**: %s\n\n", status(res)))
	if res.Error != "" {
		sb.WriteString(fmt.Sprintf("**Error**: %s\n\n", res.Error))
	}
	if res.DiagnosticCID != "" {
		sb.WriteString(fmt.Sprintf("**Diagnostic**: [/%s.txt](/%s.txt)\n\n", res.DiagnosticCID, res.DiagnosticCID))
	}

	sb.WriteString("| # | Segment | Kind | Policy | Language | Executed | Output |\n")
	sb.WriteString("|---|---|---|---|---|---|---|\n")
	for _, s := range res.Segments {
		out := preview(s.Output)
		for _, issue := range s.Errors {
			out = fmt.Sprintf("**%s**: %s", issue.Code, issue.Message)
		}
		sb.WriteString(fmt.Sprintf("| %d | `%s` | %s | %s | %s | %v | %s |\n",
			s.Position, s.Text, s.Kind, s.Policy, s.Language, s.Executed, escapeCell(out)))
	}
	sb.WriteString("\n")

	if len(res.Groups) > 0 {
		sb.WriteString("### Groups\n\n")
		for _, g := range res.Groups {
			sb.WriteString(fmt.Sprintf("- **%s** `%s` %v: request `%s`", g.Role, g.Segment, g.Params, preview(g.RequestOutput)))
			if g.Role == engine.RoleMiddle {
				sb.WriteString(fmt.Sprintf(", response `%s`", preview(g.ResponseOutput)))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(res.Annotations) > 0 {
		sb.WriteString("### Annotations\n\n")
		for _, k := range sortedAnnotations(res) {
			sb.WriteString(fmt.Sprintf("- `%s`: %s\n", k, res.Annotations[k]))
		}
		sb.WriteString("\n")
	}

	if res.Success {
		sb.WriteString(fmt.Sprintf("### Output\n\n*%s*\n\n```\n%s\n```\n", res.ContentType, res.Output))
	}
	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
