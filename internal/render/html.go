package render

import (
	"html/template"
	"io"
	"strings"

	"viewer/internal/engine"
)

var funcs = template.FuncMap{
	"preview":  preview,
	"describe": describe,
	"status":   status,
	"upper":    strings.ToUpper,
	"keys":     sortedAnnotations,
	"middle":   func(r engine.GroupRole) bool { return r == engine.RoleMiddle },
}

var page = template.Must(template.New("result").Funcs(funcs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{ upper (print .Mode) }} {{ .Path }}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 4px 8px; text-align: left; vertical-align: top; }
.ok { color: #060; } .fail { color: #a00; } .region { color: #666; }
pre { background: #f6f6f6; padding: 1em; overflow-x: auto; }
</style>
</head>
<body>
<h1>{{ upper (print .Mode) }} <code>{{ .Path }}</code></h1>
<p class="{{ if .Success }}ok{{ else }}fail{{ end }}">{{ status . }}</p>
{{- if .Error }}
<p class="fail">{{ .Error }}</p>
{{- end }}
{{- if .DiagnosticCID }}
<p>Diagnostic: <a href="/{{ .DiagnosticCID }}.txt">{{ .DiagnosticCID }}</a></p>
{{- end }}
<h2>Segments</h2>
<table>
<tr><th>#</th><th>Segment</th><th>Classification</th><th>Executed</th><th>Input</th><th>Output</th></tr>
{{- range .Segments }}
<tr{{ if .Region }} class="region"{{ end }}>
<td>{{ .Position }}</td>
<td><code>{{ .Text }}</code></td>
<td>{{ describe . }}{{ range .Errors }}<br><span class="fail">{{ .Code }}: {{ .Message }}</span>{{ end }}</td>
<td>{{ if .Executed }}yes{{ else }}no{{ end }}</td>
<td>{{ preview .Input }}</td>
<td>{{ preview .Output }}</td>
</tr>
{{- end }}
</table>
{{- if .Groups }}
<h2>Groups</h2>
<table>
<tr><th>Role</th><th>Segment</th><th>Params</th><th>Request</th><th>Response</th></tr>
{{- range .Groups }}
<tr><td>{{ .Role }}</td><td><code>{{ .Segment }}</code></td><td>{{ range .Params }}<code>{{ . }}</code> {{ end }}</td>
<td>{{ preview .RequestOutput }}</td><td>{{ if middle .Role }}{{ preview .ResponseOutput }}{{ end }}</td></tr>
{{- end }}
</table>
{{- end }}
{{- if .Annotations }}
<h2>Annotations</h2>
<ul>
{{- $r := . }}
{{- range keys . }}
<li><code>{{ . }}</code>: {{ index $r.Annotations . }}</li>
{{- end }}
</ul>
{{- end }}
{{- if .Success }}
<h2>Output <small>{{ .ContentType }}</small></h2>
<pre>{{ .Output }}</pre>
{{- end }}
</body>
</html>
`))

// HTML writes res as an HTML diagnostic page.
func HTML(w io.Writer, res *engine.Result) error {
	return page.Execute(w, res)
}
