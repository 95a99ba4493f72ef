// Package admission provides an HTTP transport.
package admission

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPTransport serves the admission and admin APIs over HTTP.
type HTTPTransport struct {
	addr         string
	srv          *http.Server
	service      AdmissionService
	admin        AdminService
	appReady     func() bool
	inflight     *InFlight
	logger       Logger
	promRegistry *prometheus.Registry
	enableAuth   bool
	adminToken   string
	maxBodyBytes int64
	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration
	router       http.Handler
	mu           sync.Mutex
}

// NewHTTPTransport constructs a transport bound to an address.
func NewHTTPTransport(addr string, ready func() bool) *HTTPTransport {
	if addr == "" {
		addr = ":8080"
	}
	if ready == nil {
		ready = func() bool { return false }
	}
	return &HTTPTransport{
		addr:     addr,
		appReady: ready,
		inflight: NewInFlight(),
	}
}

// ServeAdmission registers the admission service.
func (t *HTTPTransport) ServeAdmission(service AdmissionService) error {
	if service == nil {
		return errors.New("admission service is required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.service = service
	return nil
}

// ServeAdmin registers the admin service.
func (t *HTTPTransport) ServeAdmin(service AdminService) error {
	if service == nil {
		return errors.New("admin service is required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.admin = service
	return nil
}

// Start begins serving HTTP requests.
func (t *HTTPTransport) Start() error {
	if t == nil {
		return errors.New("http transport is nil")
	}
	handler, err := t.handler()
	if err != nil {
		return err
	}
	t.mu.Lock()
	if t.srv == nil {
		t.srv = &http.Server{
			Addr:         t.addr,
			Handler:      handler,
			ReadTimeout:  t.readTimeout,
			WriteTimeout: t.writeTimeout,
			IdleTimeout:  t.idleTimeout,
		}
	}
	srv := t.srv
	t.mu.Unlock()

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown refuses new work, waits for in flight requests up to the context
// deadline, then stops the server.
func (t *HTTPTransport) Shutdown(ctx context.Context) error {
	if t == nil {
		return errors.New("http transport is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	t.inflight.Close()
	_ = t.inflight.Wait(ctx)
	t.mu.Lock()
	srv := t.srv
	t.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (t *HTTPTransport) Handler() (http.Handler, error) {
	return t.handler()
}

func (t *HTTPTransport) handler() (http.Handler, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.router != nil {
		return t.router, nil
	}
	if t.service == nil || t.admin == nil {
		return nil, errors.New("services must be registered before starting")
	}
	router := chi.NewRouter()
	router.Use(t.drainMiddleware)

	router.Route("/v1/admission", func(r chi.Router) {
		r.Post("/check", t.handleCheck)
		r.Post("/checkBatch", t.handleCheckBatch)
	})
	router.Route("/v1/admin", func(r chi.Router) {
		r.Use(t.authMiddleware)
		r.Post("/principals", t.handleCreatePrincipal)
		r.Get("/principals/{id}", t.handleGetPrincipal)
		r.Post("/principals/{id}/disable", t.handleDisablePrincipal)
		r.Post("/principals/{id}/tier", t.handleChangeTier)
		r.Get("/principals/{id}/usage", t.handleUsage)
		r.Get("/violations/stats", t.handleViolationStats)
	})
	router.Get("/healthz", t.handleHealth)
	router.Get("/readyz", t.handleReady)
	if t.promRegistry != nil {
		router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(t.promRegistry, promhttp.HandlerOpts{}))
	}

	t.router = router
	return router, nil
}

func (t *HTTPTransport) drainMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.inflight.Begin() {
			writeJSON(w, http.StatusServiceUnavailable, httpErrorResponse{Error: "draining"})
			return
		}
		defer t.inflight.End()
		next.ServeHTTP(w, r)
	})
}

func (t *HTTPTransport) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t.enableAuth {
			expected := "Bearer " + t.adminToken
			if r.Header.Get("Authorization") != expected {
				t.writeError(w, r, http.StatusUnauthorized, Wrap(CodeUnauthorized, "unauthorized", nil))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
