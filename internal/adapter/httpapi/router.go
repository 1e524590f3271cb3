package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"webllm-bridge/internal/adapter/translator"
	"webllm-bridge/internal/application/port/input"
	"webllm-bridge/internal/application/port/output"
	"webllm-bridge/internal/domain/entity"
	"webllm-bridge/internal/infrastructure/monitoring"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"golang.org/x/time/rate"
)

const (
	ServiceName = "webllm-bridge"

	generateOperation = "generateText"
	defaultBodyLimit  = 1 << 20
)

type Config struct {
	Version            string
	Model              string
	MaxBodyBytes       int64
	ExposeErrorDetails bool

	// AccessLog enables per-request logging through httplog.
	AccessLog        bool
	AccessLogJSON    bool
	AccessLogConcise bool

	RateLimitEnabled bool
	RateLimitRPS     int
	RateLimitBurst   int
}

// Router is the HTTP face of the bridge. Only chat completions touch the
// engine; every other route is static or read-only.
type Router struct {
	bridge  input.BridgePort
	catalog output.ModelCatalog
	metrics *monitoring.Metrics
	logger  output.LoggerPort
	limiter *rate.Limiter
	cfg     Config
	now     func() time.Time
}

func NewRouter(
	bridge input.BridgePort,
	catalog output.ModelCatalog,
	metrics *monitoring.Metrics,
	logger output.LoggerPort,
	cfg Config,
) *Router {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultBodyLimit
	}

	rt := &Router{
		bridge:  bridge,
		catalog: catalog,
		metrics: metrics,
		logger:  logger.Named("http"),
		cfg:     cfg,
		now:     time.Now,
	}
	if cfg.RateLimitEnabled {
		rt.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	// rt.recoverer must be the only panic handler, so httplog.Handler is
	// mounted rather than RequestLogger, which adds chi's Recoverer.
	if rt.cfg.AccessLog {
		accessLog := httplog.NewLogger(ServiceName, httplog.Options{
			JSON:    rt.cfg.AccessLogJSON,
			Concise: rt.cfg.AccessLogConcise,
		})
		r.Use(httplog.Handler(accessLog))
	}
	if rt.metrics != nil {
		r.Use(rt.metrics.Middleware)
	}
	r.Use(rt.recoverer)
	r.Use(corsMiddleware)

	r.NotFound(rt.handleNotFound)
	r.MethodNotAllowed(rt.handleNotFound)

	r.Get("/", rt.handleRoot)
	r.Get("/health", rt.handleHealth)
	r.Get("/v1/models", rt.handleListModels)
	r.With(rt.rateLimit).Post("/v1/chat/completions", rt.handleChatCompletions)

	r.Route("/admin/bridge", func(r chi.Router) {
		r.Get("/", rt.handleBridgeSnapshot)
		r.Post("/reset", rt.handleBridgeReset)
	})

	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	return r
}

func (rt *Router) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, rt.cfg.MaxBodyBytes))
	if err != nil {
		msg := "could not read request body"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)
		}
		rt.fail(w, r, entity.WrapFailure(entity.FailureInvalidRequest, msg, err))
		return
	}

	req, err := translator.ToInferenceRequest(body)
	if err != nil {
		rt.fail(w, r, entity.AsFailure(err, entity.FailureInvalidRequest))
		return
	}

	if rt.bridge.State() != entity.StateReady {
		rt.logger.Info("Engine not ready, initializing before serving request", "state", rt.bridge.State().String())
		if err := rt.bridge.Initialize(r.Context()); err != nil {
			rt.fail(w, r, entity.AsFailure(err, entity.FailureInitialization))
			return
		}
	}

	result := rt.bridge.Invoke(r.Context(), generateOperation, req)
	if !result.OK() {
		rt.fail(w, r, result.Failure)
		return
	}
	rt.respond(w, translator.ToHTTPResponse(result, rt.cfg.ExposeErrorDetails))
}

func (rt *Router) handleListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.catalog.List(rt.now()))
}

type healthResponse struct {
	Status            string `json:"status"`
	WebLLMInitialized bool   `json:"webllm_initialized"`
	Timestamp         string `json:"timestamp"`
}

// handleHealth reports readiness without ever starting initialization.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:            "healthy",
		WebLLMInitialized: rt.bridge.IsReady(r.Context()),
		Timestamp:         rt.now().UTC().Format(time.RFC3339),
	})
}

type rootResponse struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Model     string            `json:"model"`
	Endpoints map[string]string `json:"endpoints"`
}

func (rt *Router) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Name:    ServiceName,
		Version: rt.cfg.Version,
		Model:   rt.cfg.Model,
		Endpoints: map[string]string{
			"chat_completions": "POST /v1/chat/completions",
			"models":           "GET /v1/models",
			"health":           "GET /health",
		},
	})
}

func (rt *Router) handleBridgeSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.bridge.Snapshot())
}

type resetResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
}

// handleBridgeReset tears the session down so the next chat request starts
// a fresh initialization. It is the operator path out of the failed state.
func (rt *Router) handleBridgeReset(w http.ResponseWriter, r *http.Request) {
	previous := rt.bridge.State()
	if err := rt.bridge.Teardown(r.Context()); err != nil {
		rt.fail(w, r, entity.WrapFailure(entity.FailureInternalRouting, "bridge teardown failed", err))
		return
	}
	rt.logger.Info("Bridge reset by operator", "previous_state", previous.String())
	writeJSON(w, http.StatusOK, resetResponse{
		Status: "reset",
		State:  rt.bridge.State().String(),
	})
}

func (rt *Router) handleNotFound(w http.ResponseWriter, r *http.Request) {
	msg := fmt.Sprintf("The requested URL %s was not found on this server.", r.URL.RequestURI())
	rt.respond(w, translator.FailureResponse(entity.NewFailure(entity.FailureNotFound, msg), rt.cfg.ExposeErrorDetails))
}

func (rt *Router) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rt.limiter != nil && !rt.limiter.Allow() {
			rt.fail(w, r, entity.NewFailure(entity.FailureRateLimited, "Rate limit exceeded, retry later"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverer turns a panic anywhere below it into the generic 500 envelope.
func (rt *Router) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			rt.logger.Error("Panic while handling request",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()))
			f := entity.NewFailure(entity.FailureInternalRouting, fmt.Sprint(rec))
			rt.respond(w, translator.FailureResponse(f, rt.cfg.ExposeErrorDetails))
		}()
		next.ServeHTTP(w, r)
	})
}

func (rt *Router) fail(w http.ResponseWriter, r *http.Request, f *entity.Failure) {
	resp := translator.FailureResponse(f, rt.cfg.ExposeErrorDetails)
	if resp.Status >= http.StatusInternalServerError {
		rt.logger.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", resp.Status,
			"kind", string(f.Kind),
			"error", f.Detail())
	} else {
		rt.logger.Debug("Request rejected",
			"method", r.Method,
			"path", r.URL.Path,
			"status", resp.Status,
			"error", f.Detail())
	}
	rt.respond(w, resp)
}

func (rt *Router) respond(w http.ResponseWriter, resp translator.Response) {
	writeJSON(w, resp.Status, resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
