// Package httpapi exposes the engine over HTTP. Every path that is not a
// reserved route is evaluated as a pipeline; paths under /io are evaluated
// as io chains.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"viewer/internal/cid"
	"viewer/internal/engine"
	"viewer/internal/logging"
	"viewer/internal/params"
	"viewer/internal/render"
)

// Response headers.
const (
	HeaderRequestID     = "X-Request-ID"
	HeaderResultCID     = "X-Result-CID"
	HeaderDiagnosticCID = "X-Diagnostic-CID"
	HeaderErrorKind     = "X-Error-Kind"
)

// DefaultMaxBody bounds request bodies read for parameter resolution.
const DefaultMaxBody = 1 << 20

// Evaluator is the part of the engine the HTTP layer drives.
type Evaluator interface {
	EvaluatePipeline(ctx context.Context, path string, opts engine.Options) *engine.Result
	EvaluateIO(ctx context.Context, path string, opts engine.Options) *engine.Result
}

// Server handles HTTP requests.
type Server struct {
	eval    Evaluator
	content engine.ContentStore
	maxBody int64
}

// Option configures a Server.
type Option func(*Server)

// WithMaxBody sets the request body limit.
func WithMaxBody(n int64) Option {
	return func(s *Server) { s.maxBody = n }
}

// New creates a Server. content may be nil, which disables /_/content.
func New(eval Evaluator, content engine.ContentStore, opts ...Option) *Server {
	s := &Server{eval: eval, content: content, maxBody: DefaultMaxBody}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, logRequests)

	r.Get("/_/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/_/content/{cid}", s.handleContent)

	r.HandleFunc("/io", s.handleIO)
	r.HandleFunc("/io/*", s.handleIO)
	r.HandleFunc("/*", s.handlePipeline)
	return r
}

// ParseDebug interprets the debug query parameter.
func ParseDebug(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.options(w, r)
	if !ok {
		return
	}
	res := s.eval.EvaluatePipeline(r.Context(), r.URL.Path, opts)
	writeResult(w, r, res)
}

func (s *Server) handleIO(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.options(w, r)
	if !ok {
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/io")
	if path == "" {
		path = "/"
	}
	logging.HTTPDebug("io chain %s (debug=%v)", path, opts.Debug)
	res := s.eval.EvaluateIO(r.Context(), path, opts)
	writeResult(w, r, res)
}

func (s *Server) options(w http.ResponseWriter, r *http.Request) (engine.Options, bool) {
	req, err := params.FromHTTPRequest(r, s.maxBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, params.ErrBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, "InvalidRequest", err.Error(), nil)
		return engine.Options{}, false
	}
	return engine.Options{Debug: ParseDebug(r.URL.Query().Get("debug")), Request: req}, true
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	if s.content == nil {
		writeError(w, http.StatusNotFound, string(engine.KindNotFound), "content store disabled", nil)
		return
	}
	id, err := cid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, string(engine.KindInvalidContentIdentifier), err.Error(), nil)
		return
	}
	data, found, err := s.content.FetchContent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, string(engine.KindLookupFailed), err.Error(), nil)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, string(engine.KindNotFound), "no content for "+id.String(), nil)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// writeResult writes the evaluated output, or the rendered result when the
// request asked for debug output.
func writeResult(w http.ResponseWriter, r *http.Request, res *engine.Result) {
	if res.ResultCID != "" {
		w.Header().Set(HeaderResultCID, res.ResultCID)
	}
	if res.DiagnosticCID != "" {
		w.Header().Set(HeaderDiagnosticCID, res.DiagnosticCID)
	}
	if res.ErrorKind != "" {
		w.Header().Set(HeaderErrorKind, string(res.ErrorKind))
	}
	status := res.Status
	if status == 0 {
		status = http.StatusOK
		if !res.Success {
			status = http.StatusInternalServerError
		}
	}

	if res.Debug {
		format := render.Negotiate(r.Header.Get("Accept"))
		if f, ok := render.ParseFormat(r.URL.Query().Get("format")); ok {
			format = f
		}
		w.Header().Set("Content-Type", format.ContentType())
		w.WriteHeader(status)
		if err := render.Render(w, res, format); err != nil {
			logging.Get(logging.CategoryHTTP).Error("render %s: %v", res.Path, err)
		}
		return
	}

	if !res.Success {
		details := map[string]any{"path": res.Path}
		if res.DiagnosticCID != "" {
			details["diagnostic"] = "/_/content/" + res.DiagnosticCID
		}
		writeError(w, status, string(res.ErrorKind), res.Error, details)
		return
	}

	contentType := res.ContentType
	if contentType == "" {
		contentType = engine.DefaultContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(res.Output))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, map[string]any{
		"request_id": w.Header().Get(HeaderRequestID),
		"error": map[string]any{
			"code": code, "message": message, "details": details,
		},
	})
}

type requestIDKey struct{}

// RequestID returns the id assigned to the request carrying ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = "req_" + uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.HTTP("%s %s %d %s (%s)", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond), RequestID(r.Context()))
	})
}
