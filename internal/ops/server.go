// Package ops serves liveness, readiness and Prometheus metrics for the
// consumer process.
package ops

import (
	"encoding/json"
	"net/http"
	"reflect"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Poller reports when the queue was last polled.
type Poller interface {
	LastPoll() time.Time
}

// ReadinessChecker reports whether an optional dependency is usable.
type ReadinessChecker interface {
	IsReady() bool
}

// Option customises the handler.
type Option func(*Handler)

// WithDependency adds a named readiness check.
func WithDependency(name string, check ReadinessChecker) Option {
	return func(h *Handler) {
		if name != "" && check != nil {
			h.deps[name] = check
		}
	}
}

// WithClock overrides the clock used for readiness checks.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// Handler answers the ops endpoints.
type Handler struct {
	poller   Poller
	timeout  time.Duration
	gatherer prometheus.Gatherer
	deps     map[string]ReadinessChecker
	logger   zerolog.Logger
	now      func() time.Time
}

// NewHandler builds the ops handler. The consumer is ready once it has polled
// the queue within timeout.
func NewHandler(poller Poller, timeout time.Duration, gatherer prometheus.Gatherer, logger zerolog.Logger, opts ...Option) *Handler {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	h := &Handler{
		poller:   poller,
		timeout:  timeout,
		gatherer: gatherer,
		deps:     make(map[string]ReadinessChecker),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Router mounts /healthz, /readyz and /metrics.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	return r
}

// NewServer wraps the router in an http.Server listening on addr.
func (h *Handler) NewServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

type readiness struct {
	Status   string            `json:"status"`
	LastPoll *time.Time        `json:"last_poll,omitempty"`
	Checks   map[string]string `json:"checks,omitempty"`
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, readiness{Status: "ok"})
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	resp := readiness{Status: "ok", Checks: map[string]string{}}
	ready := true

	last := time.Time{}
	if h.poller != nil {
		last = h.poller.LastPoll()
	}
	switch {
	case last.IsZero():
		ready = false
		resp.Checks["queue"] = "never polled"
	case h.timeout > 0 && h.now().Sub(last) > h.timeout:
		ready = false
		resp.LastPoll = &last
		resp.Checks["queue"] = "stale"
	default:
		resp.LastPoll = &last
		resp.Checks["queue"] = "ok"
	}

	for name, dep := range h.deps {
		if dep.IsReady() {
			resp.Checks[name] = "ok"
			continue
		}
		ready = false
		resp.Checks[name] = "not ready"
	}

	status := http.StatusOK
	if !ready {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
		h.logger.Warn().Interface("checks", resp.Checks).Msg("readiness check failed")
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
