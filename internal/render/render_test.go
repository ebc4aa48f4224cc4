package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viewer/internal/engine"
	"viewer/internal/segment"
)

func sampleResult() *engine.Result {
	return &engine.Result{
		Path:        "/upper/<b>hi</b>",
		Mode:        engine.ModePipeline,
		Success:     true,
		Status:      200,
		Output:      "<B>HI</B>",
		ContentType: "text/html",
		Debug:       true,
		Segments: []segment.Segment{
			{Text: "upper", Position: 0, Total: 2, Kind: segment.KindServer, Policy: segment.PolicyExecute,
				Language: "go", SupportsChaining: true, Executed: true, Input: "<b>hi</b>", Output: "<B>HI</B>"},
			{Text: "<b>hi</b>", Position: 1, Total: 2, Kind: segment.KindParameter, Policy: segment.PolicyLiteral,
				Executed: true, Output: "<b>hi</b>"},
		},
		Annotations: map[string]string{"termination-cause": "condition"},
	}
}

func failedResult() *engine.Result {
	res := engine.Failed(engine.NewError(engine.KindChainingUnsupported, "segment 1 (s2): %s", segment.ChainingUnsupportedMessage))
	res.Path = "/s1/s2"
	res.Mode = engine.ModePipeline
	res.Segments = []segment.Segment{
		{Text: "s1", Kind: segment.KindServer, Policy: segment.PolicyExecute},
		{Text: "s2", Position: 1, Kind: segment.KindServer, Policy: segment.PolicyError,
			Errors: []segment.Issue{{Code: segment.ErrChainingUnsupported, Message: segment.ChainingUnsupportedMessage}}},
	}
	return res
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleResult(), FormatJSON))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "<B>HI</B>", decoded["output"])
	assert.Equal(t, "pipeline", decoded["mode"])
	assert.Len(t, decoded["segments"], 2)
}

func TestHTML_Escapes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleResult(), FormatHTML))
	out := buf.String()

	assert.Contains(t, out, "&lt;B&gt;HI&lt;/B&gt;")
	assert.NotContains(t, out, "<B>HI</B>")
	assert.Contains(t, out, "termination-cause")
	assert.Contains(t, out, "PIPELINE")
}

func TestHTML_Failure(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, failedResult()))
	assert.Contains(t, buf.String(), "ChainingUnsupported")
	assert.Contains(t, buf.String(), "400")
}

func TestText(t *testing.T) {
	out := Text(failedResult())
	assert.Contains(t, out, "PIPELINE /s1/s2")
	assert.Contains(t, out, "ChainingUnsupported (400)")
	assert.Contains(t, out, "! ChainingUnsupported")
	assert.NotContains(t, out, "output (")

	out = Text(sampleResult())
	assert.Contains(t, out, "* [0] upper (server, execute, go, chains)")
	assert.Contains(t, out, "termination-cause = condition")
}

func TestMarkdown(t *testing.T) {
	res := sampleResult()
	res.Segments[1].Text = "a|b"
	out := Markdown(res)
	assert.True(t, strings.HasPrefix(out, "## PIPELINE"))
	assert.Contains(t, out, "| 0 | `upper` | server | execute | go | true |")
	assert.Contains(t, out, "### Output")
}

func TestFormats(t *testing.T) {
	f, ok := ParseFormat("MD")
	assert.True(t, ok)
	assert.Equal(t, FormatMarkdown, f)

	_, ok = ParseFormat("yaml")
	assert.False(t, ok)

	assert.Equal(t, FormatHTML, Negotiate("text/html,application/xhtml+xml;q=0.9"))
	assert.Equal(t, FormatText, Negotiate("text/plain"))
	assert.Equal(t, FormatJSON, Negotiate("*/*"))
	assert.Equal(t, "text/html; charset=utf-8", FormatHTML.ContentType())

	var buf bytes.Buffer
	assert.Error(t, Render(&buf, sampleResult(), Format("yaml")))
}
