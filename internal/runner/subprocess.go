package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"viewer/internal/language"
	"viewer/internal/logging"
)

// resultMarker separates printed output from the driver's JSON result.
const resultMarker = "\x1e__VIEWER_RESULT__"

// envelope is the JSON document a driver reads from stdin.
type envelope struct {
	Args       map[string]any `json:"args"`
	Positional []any          `json:"positional"`
	Input      string         `json:"input"`
}

// driverResult is the JSON document a driver prints after resultMarker.
type driverResult struct {
	Output      *string `json:"output"`
	ContentType *string `json:"content_type"`
}

// SubprocessRunner runs one language through an external interpreter. The
// user's code and a small driver are written to a scratch directory; the
// driver loads the code, calls its entry function with the bound arguments
// and reports the return value.
type SubprocessRunner struct {
	lang     language.Language
	binary   string
	executor *Executor

	// prepare writes the scratch files and returns the interpreter arguments.
	prepare func(dir string, inv Invocation) ([]string, error)

	// direct runners pass Input on stdin and take stdout as the output.
	direct bool
}

// Language implements LanguageRunner.
func (r *SubprocessRunner) Language() language.Language { return r.lang }

// Binary returns the interpreter this runner invokes.
func (r *SubprocessRunner) Binary() string { return r.binary }

// Run implements LanguageRunner.
func (r *SubprocessRunner) Run(ctx context.Context, inv Invocation) (*Output, error) {
	dir, err := os.MkdirTemp("", "viewer-"+string(r.lang)+"-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	args, err := r.prepare(dir, inv)
	if err != nil {
		return nil, err
	}

	stdin := inv.Input
	if !r.direct {
		env := envelope{Args: inv.Args, Positional: inv.Positional, Input: inv.Input}
		if env.Args == nil {
			env.Args = map[string]any{}
		}
		if env.Positional == nil {
			env.Positional = []any{}
		}
		data, err := json.Marshal(env)
		if err != nil {
			return nil, fmt.Errorf("encode arguments: %w", err)
		}
		stdin = string(data)
	}

	logging.RunnerDebug("%s: running %q via %s", r.lang, inv.Name, r.binary)
	res, err := r.executor.Execute(ctx, Command{
		Binary:    r.binary,
		Arguments: args,
		Stdin:     stdin,
		Dir:       dir,
		Timeout:   inv.Timeout,
	})
	if err != nil {
		return nil, err
	}

	out := &Output{
		Stdout:    res.Stdout,
		Stderr:    res.Stderr,
		ExitCode:  res.ExitCode,
		Duration:  res.Duration,
		Truncated: res.Truncated,
	}
	if res.ExitCode != 0 {
		return out, &ExecutionError{Language: r.lang, Stderr: res.Stderr, ExitCode: res.ExitCode}
	}

	if r.direct {
		out.Output = res.Stdout
		return out, nil
	}
	printed, result, err := splitResult(res.Stdout)
	if err != nil {
		return out, &ExecutionError{Language: r.lang, Message: err.Error(), Stderr: res.Stderr}
	}
	out.Stdout = printed
	out.Output = printed
	if result.Output != nil {
		out.Output = *result.Output
	}
	if result.ContentType != nil {
		out.ContentType = *result.ContentType
	}
	return out, nil
}

// splitResult separates printed output from the trailing JSON result.
func splitResult(stdout string) (string, driverResult, error) {
	var result driverResult
	i := strings.LastIndex(stdout, resultMarker)
	if i < 0 {
		return stdout, result, fmt.Errorf("driver did not report a result")
	}
	printed := strings.TrimSuffix(stdout[:i], "\n")
	if err := json.Unmarshal([]byte(strings.TrimSpace(stdout[i+len(resultMarker):])), &result); err != nil {
		return printed, result, fmt.Errorf("decode driver result: %w", err)
	}
	return printed, result, nil
}

func writeFiles(dir string, files map[string]string) error {
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// =============================================================================
// PYTHON
// =============================================================================

const pythonDriver = `import io, json, sys
env = json.loads(sys.stdin.read() or "{}")
sys.stdin = io.StringIO(env.get("input", ""))
with open(sys.argv[1]) as f:
    src = f.read()
scope = {"__name__": "__viewer__"}
exec(compile(src, "server.py", "exec"), scope)
fn = scope.get("main")
result = fn(**env.get("args", {})) if callable(fn) else None
content_type = None
if isinstance(result, dict) and "output" in result:
    content_type = result.get("content_type")
    result = result.get("output")
if isinstance(result, (bytes, bytearray)):
    result = bytes(result).decode("utf-8", "replace")
elif result is not None and not isinstance(result, str):
    result = json.dumps(result) if isinstance(result, (dict, list)) else str(result)
sys.stdout.flush()
sys.stdout.write("\n` + resultMarker + `\n" + json.dumps({"output": result, "content_type": content_type}) + "\n")
`

// NewPythonRunner runs Python through binary (usually python3).
func NewPythonRunner(exec *Executor, binary string) *SubprocessRunner {
	return &SubprocessRunner{
		lang:     language.Python,
		binary:   binary,
		executor: exec,
		prepare: func(dir string, inv Invocation) ([]string, error) {
			err := writeFiles(dir, map[string]string{"driver.py": pythonDriver, "server.py": inv.Code})
			return []string{"driver.py", "server.py"}, err
		},
	}
}

// =============================================================================
// BASH
// =============================================================================

// NewBashRunner runs shell code with Input on stdin and positional
// arguments as $1..$n.
func NewBashRunner(exec *Executor, binary string) *SubprocessRunner {
	return &SubprocessRunner{
		lang:     language.Bash,
		binary:   binary,
		executor: exec,
		direct:   true,
		prepare: func(dir string, inv Invocation) ([]string, error) {
			if err := writeFiles(dir, map[string]string{"server.sh": inv.Code}); err != nil {
				return nil, err
			}
			args := []string{"server.sh"}
			for _, v := range inv.Positional {
				args = append(args, fmt.Sprint(v))
			}
			return args, nil
		},
	}
}

// =============================================================================
// JAVASCRIPT / TYPESCRIPT
// =============================================================================

const nodeDriver = `import { readFileSync } from "node:fs";
import { pathToFileURL } from "node:url";
import { resolve } from "node:path";
const env = JSON.parse(readFileSync(0, "utf8") || "{}");
globalThis.input = env.input;
const mod = await import(pathToFileURL(resolve(process.argv[2])).href);
` + jsFinish

const denoDriver = `const env = JSON.parse((await new Response(Deno.stdin.readable).text()) || "{}");
globalThis.input = env.input;
const mod = await import(new URL(Deno.args[0], "file://" + Deno.cwd() + "/").href);
` + jsFinish

const jsFinish = `const main = mod.main ?? mod.default?.main ?? (typeof mod.default === "function" ? mod.default : undefined);
let result = typeof main === "function" ? await main(...env.positional) : undefined;
let contentType = null;
if (result && typeof result === "object" && !(result instanceof Uint8Array) && "output" in result) {
  contentType = result.content_type ?? null;
  result = result.output;
}
if (result instanceof Uint8Array) result = new TextDecoder().decode(result);
else if (result !== undefined && result !== null && typeof result !== "string") {
  result = typeof result === "object" ? JSON.stringify(result) : String(result);
}
console.log("\n` + resultMarker + `\n" + JSON.stringify({ output: result ?? null, content_type: contentType }));
`

var (
	jsExportRe = regexp.MustCompile(`(?m)^\s*export\s`)
	jsMainRe   = regexp.MustCompile(`(?m)^\s*(async\s+)?function\s*\*?\s*main\s*\(|^\s*(const|let|var)\s+main\s*=`)
	jsCommonRe = regexp.MustCompile(`\bmodule\.exports\b|\brequire\s*\(`)
)

// jsModule returns the file name and source to load code as a module,
// exporting a top-level main that the code declares but does not export.
func jsModule(code, ext string) (string, string) {
	if ext == "js" && jsCommonRe.MatchString(code) && !jsExportRe.MatchString(code) {
		return "server.cjs", code
	}
	if !jsExportRe.MatchString(code) && jsMainRe.MatchString(code) {
		code += "\nexport { main };\n"
	}
	if ext == "js" {
		return "server.mjs", code
	}
	return "server." + ext, code
}

// NewJavaScriptRunner runs JavaScript through node.
func NewJavaScriptRunner(exec *Executor, binary string) *SubprocessRunner {
	return &SubprocessRunner{
		lang:     language.JavaScript,
		binary:   binary,
		executor: exec,
		prepare: func(dir string, inv Invocation) ([]string, error) {
			name, src := jsModule(inv.Code, "js")
			err := writeFiles(dir, map[string]string{"driver.mjs": nodeDriver, name: src})
			return []string{"driver.mjs", name}, err
		},
	}
}

// NewTypeScriptRunner runs TypeScript through deno.
func NewTypeScriptRunner(exec *Executor, binary string) *SubprocessRunner {
	return &SubprocessRunner{
		lang:     language.TypeScript,
		binary:   binary,
		executor: exec,
		prepare: func(dir string, inv Invocation) ([]string, error) {
			name, src := jsModule(inv.Code, "ts")
			err := writeFiles(dir, map[string]string{"driver.ts": denoDriver, name: src})
			return []string{"run", "--quiet", "--no-prompt", "--allow-read=.", "driver.ts", name}, err
		},
	}
}

// =============================================================================
// CLOJURE
// =============================================================================

const clojureDriver = `(require '[cheshire.core :as json])
(let [env (json/parse-string (slurp *in*))
      src (slurp (first *command-line-args*))]
  (binding [*in* (java.io.BufferedReader. (java.io.StringReader. (get env "input" "")))]
    (load-string src)
    (let [main (resolve 'main)
          result (when main (apply main (get env "positional" [])))
          [result content-type] (if (and (map? result) (contains? result :output))
                                  [(:output result) (:content_type result)]
                                  [result nil])
          result (cond (nil? result) nil
                       (string? result) result
                       (coll? result) (json/generate-string result)
                       :else (str result))]
      (flush)
      (println)
      (println "` + resultMarker + `")
      (println (json/generate-string {"output" result "content_type" content-type})))))
`

// NewClojureRunner runs Clojure through babashka.
func NewClojureRunner(exec *Executor, binary string) *SubprocessRunner {
	return &SubprocessRunner{
		lang:     language.Clojure,
		binary:   binary,
		executor: exec,
		prepare: func(dir string, inv Invocation) ([]string, error) {
			err := writeFiles(dir, map[string]string{"driver.clj": clojureDriver, "server.clj": inv.Code})
			return []string{"driver.clj", "server.clj"}, err
		},
	}
}
