package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"viewer/internal/engine"
	"viewer/internal/params"
	"viewer/internal/render"
)

var (
	evalDebug  bool
	evalFormat string
	evalParams []string
	evalBody   string
)

var evalCmd = &cobra.Command{
	Use:   "eval [path]",
	Short: "Evaluate a path as a pipeline",
	Long: `Evaluates a path against the database without starting a server.

Examples:
  viewer eval /echo/hello
  viewer eval /greet --param name=world
  viewer eval /upper/greet/world --debug`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEval(cmd, args[0], false)
	},
}

var ioCmd = &cobra.Command{
	Use:   "io [path]",
	Short: "Evaluate a path as an io chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEval(cmd, args[0], true)
	},
}

func init() {
	for _, c := range []*cobra.Command{evalCmd, ioCmd} {
		c.Flags().BoolVarP(&evalDebug, "debug", "d", false, "Show the evaluation instead of running it")
		c.Flags().StringVarP(&evalFormat, "format", "f", "", "Debug output format: json, html, text, markdown")
		c.Flags().StringArrayVarP(&evalParams, "param", "p", nil, "Query parameter name=value (repeatable)")
		c.Flags().StringVar(&evalBody, "body", "", "JSON request body, or @file")
	}
}

func runEval(cmd *cobra.Command, path string, ioMode bool) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	req, err := buildRequest()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	opts := engine.Options{Debug: evalDebug, Request: req}
	logger.Debug("evaluating", zap.String("path", path), zap.Bool("io", ioMode), zap.Bool("debug", evalDebug))

	var res *engine.Result
	if ioMode {
		res = a.engine.EvaluateIO(ctx, path, opts)
	} else {
		res = a.engine.EvaluatePipeline(ctx, path, opts)
	}
	return printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), res)
}

// buildRequest turns --param and --body into a parameter request.
func buildRequest() (params.Request, error) {
	query := url.Values{}
	for _, p := range evalParams {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return params.Request{}, fmt.Errorf("invalid --param %q (want name=value)", p)
		}
		query.Add(name, value)
	}
	req := params.Request{Query: query, Headers: http.Header{}}
	if evalBody == "" {
		return req, nil
	}

	raw := []byte(evalBody)
	if strings.HasPrefix(evalBody, "@") {
		data, err := os.ReadFile(strings.TrimPrefix(evalBody, "@"))
		if err != nil {
			return req, fmt.Errorf("read body: %w", err)
		}
		raw = data
	}
	body, err := params.DecodeBody("application/json", raw)
	if err != nil {
		return req, err
	}
	req.Body = body
	return req, nil
}

var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8a8f98"))
)

func printResult(stdout, stderr io.Writer, res *engine.Result) error {
	if res.Debug {
		return printDebug(stdout, res)
	}
	if !res.Success {
		fmt.Fprintln(stderr, errorStyle.Render(fmt.Sprintf("%s (%d)", res.ErrorKind, res.Status)), res.Error)
		if res.DiagnosticCID != "" {
			fmt.Fprintln(stderr, mutedStyle.Render("diagnostic: /_/content/"+res.DiagnosticCID))
		}
		return fmt.Errorf("evaluation of %s failed", res.Path)
	}
	fmt.Fprint(stdout, res.Output)
	if !strings.HasSuffix(res.Output, "\n") && isTerminal(stdout) {
		fmt.Fprintln(stdout)
	}
	if res.ResultCID != "" {
		logger.Debug("result stored", zap.String("cid", res.ResultCID))
	}
	return nil
}

// printDebug renders the evaluation. Terminals get Markdown through glamour
// unless a format was asked for explicitly.
func printDebug(w io.Writer, res *engine.Result) error {
	if evalFormat != "" {
		f, ok := render.ParseFormat(evalFormat)
		if !ok {
			return fmt.Errorf("unknown format %q", evalFormat)
		}
		return render.Render(w, res, f)
	}
	if !isTerminal(w) {
		return render.Render(w, res, render.FormatText)
	}

	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return render.Render(w, res, render.FormatText)
	}
	out, err := r.Render(render.Markdown(res))
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// readInput reads a file argument, or stdin when the argument is "-" or absent.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, cmd.InOrStdin()); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return os.ReadFile(args[0])
}
