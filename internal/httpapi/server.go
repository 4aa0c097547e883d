package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/guard"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/identity"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/service"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/workflow"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

// limitBody wraps r.Body with http.MaxBytesReader so handlers cannot read more than maxBytes.
func limitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
}

// bodyLimitMiddleware limits request body size for POST, PUT, PATCH to prevent OOM.
// File uploads get their own, larger limit in the upload handler.
func bodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isUpload(r) {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			limitBody(w, r, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func isUpload(r *http.Request) bool {
	return r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/tasks/") && strings.HasSuffix(r.URL.Path, "/submission/files")
}

// corsMiddleware sets CORS headers for dev mode.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Actor-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServerOptions configures the HTTP server.
type ServerOptions struct {
	Addr    string
	Dev     bool
	Service *service.Service
	// Hub is the SSE hub the service publishes to. A new one is created when nil.
	Hub       *SSEHub
	Directory *identity.Directory
	// JWTSecret enables bearer token authentication. When empty the caller is
	// taken from the X-Actor-ID header and resolved through Directory.
	JWTSecret      []byte
	MetricsHandler http.Handler // if set, used for /metrics (e.g. OTel Prometheus handler)
	UseOtelHTTP    bool         // if true, wrap handler with otelhttp for request metrics
}

// App holds the HTTP server, SSE hub and the workflow service behind it.
type App struct {
	Server  *http.Server
	Hub     *SSEHub
	Service *service.Service
	dir     *identity.Directory
	secret  []byte
}

// NewApp creates the HTTP app and registers all routes.
func NewApp(opts ServerOptions) (*App, error) {
	if opts.Service == nil {
		return nil, errors.New("httpapi: service is required")
	}
	if opts.Directory == nil && len(opts.JWTSecret) == 0 {
		return nil, errors.New("httpapi: a member directory or a JWT secret is required")
	}
	hub := opts.Hub
	if hub == nil {
		hub = NewSSEHub()
	}
	a := &App{Hub: hub, Service: opts.Service, dir: opts.Directory, secret: opts.JWTSecret}
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})
	if opts.MetricsHandler != nil {
		mux.Handle("/metrics", opts.MetricsHandler)
	}
	mux.HandleFunc("/stream", hub.Handler())

	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, actorFrom(r.Context()))
	})
	mux.HandleFunc("/members", a.handleMembers)
	mux.HandleFunc("/tasks", a.handleTasks)
	mux.HandleFunc("/tasks/", a.handleTask)
	mux.HandleFunc("/files/", a.handleFile)

	var handler http.Handler = mux
	handler = bodyLimitMiddleware(models.DefaultMaxRequestBodyBytes, handler)
	handler = a.actorMiddleware(handler)
	if opts.Dev {
		handler = corsMiddleware(handler)
	}
	handler = requestLogMiddleware(handler)
	if opts.UseOtelHTTP {
		handler = otelhttp.NewHandler(handler, "taskhub")
	}
	a.Server = &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return a, nil
}

type actorKey struct{}

// actorFrom returns the authenticated caller. The actor middleware guarantees
// one is present on every route that reaches a handler.
func actorFrom(ctx context.Context) guard.Actor {
	a, _ := ctx.Value(actorKey{}).(guard.Actor)
	return a
}

// publicPath reports whether path is served without an actor.
func publicPath(path string) bool {
	return path == "/health" || path == "/metrics"
}

// actorMiddleware resolves the caller: a bearer token when a secret is
// configured, otherwise the X-Actor-ID header looked up in the directory.
// EventSource clients cannot set headers, so /stream also accepts the
// access_token and actor query parameters.
func (a *App) actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPath(r.URL.Path) || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		actor, err := a.resolveActor(r)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func (a *App) resolveActor(r *http.Request) (guard.Actor, error) {
	stream := r.URL.Path == "/stream"
	if len(a.secret) > 0 {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok && stream {
			raw = r.URL.Query().Get("access_token")
			ok = raw != ""
		}
		if !ok || strings.TrimSpace(raw) == "" {
			return guard.Actor{}, errors.New("missing bearer token")
		}
		return identity.VerifyToken(a.secret, strings.TrimSpace(raw))
	}
	id := r.Header.Get("X-Actor-ID")
	if id == "" && stream {
		id = r.URL.Query().Get("actor")
	}
	if id == "" {
		return guard.Actor{}, errors.New("missing X-Actor-ID header")
	}
	return a.dir.Actor(id)
}

// responseRecorder captures status code for logging and forwards Flusher if supported.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		slog.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeJSONError sends a JSON body {"error": "message"} with the given status code.
func writeJSONError(w http.ResponseWriter, code int, message string) {
	writeJSONErrorKind(w, code, "", message)
}

func writeJSONErrorKind(w http.ResponseWriter, code int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: message, Kind: kind})
}

// statusFor maps a workflow error kind to its HTTP status.
func statusFor(err error) int {
	switch workflow.KindOf(err) {
	case workflow.KindValidation:
		return http.StatusBadRequest
	case workflow.KindPermissionDenied:
		return http.StatusForbidden
	case workflow.KindNotFound:
		return http.StatusNotFound
	case workflow.KindInvalidTransition, workflow.KindConflict:
		return http.StatusConflict
	case workflow.KindFileConstraint, workflow.KindEmptySubmission:
		return http.StatusUnprocessableEntity
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// writeError reports err with the status of its kind. Unclassified errors are
// logged and hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeJSONError(w, code, "internal error")
		return
	}
	writeJSONErrorKind(w, code, string(workflow.KindOf(err)), err.Error())
}

// decodeJSON decodes the request body into v and reports a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// parseDate accepts "2006-01-02" or RFC 3339.
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, workflow.Validation("decode", "%s: invalid date %q", field, s)
}

// parseOptionalDate returns nil for an empty string.
func parseOptionalDate(field, s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := parseDate(field, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
