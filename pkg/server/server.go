// Package server exposes a Teddy over HTTP for inspection and scripting.
//
// Routes:
//
//	GET    /stores                                  list stores
//	GET    /stores/{space}/{name}?path=&vars=       read a value
//	PUT    /stores/{space}/{name}?path=             write the JSON body
//	POST   /stores/{space}/{name}/push?path=        append the JSON body
//	DELETE /stores/{space}/{name}?path=             remove a value
//	POST   /stores/{space}/{name}/actions/{action}  run an action with a JSON array of args
//	GET    /stores/{space}/{name}/getters/{getter}  resolve a getter
//	GET    /metrics                                 Prometheus metrics, when configured
//	GET    /sync                                    sync hub, when configured
//
// Every handler runs inside Teddy.Exclusive, so watchers fire before the
// response is written.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/teddy"
)

// Config configures a Server.
type Config struct {
	// Address is the address to listen on (e.g., ":8080" or "localhost:3000").
	// Default: ":8080".
	Address string

	// Logger receives request and lifecycle logs.
	// Default: the Teddy's logger.
	Logger *slog.Logger

	// Gatherer enables GET /metrics.
	Gatherer prometheus.Gatherer

	// Hub is mounted at /sync when set, usually a *sync.Hub.
	Hub http.Handler

	// MaxBodyBytes bounds request bodies.
	// Default: 1MB.
	MaxBodyBytes int64

	// ReadHeaderTimeout bounds reading request headers.
	// Default: 10 seconds.
	ReadHeaderTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 10 seconds.
	ShutdownTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = 10 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return c
}

// Server serves the HTTP API of one Teddy.
type Server struct {
	t       *teddy.Teddy
	config  Config
	logger  *slog.Logger
	router  chi.Router
	httpSrv *http.Server
}

// New creates a server for t.
func New(t *teddy.Teddy, config Config) *Server {
	config = config.withDefaults()
	logger := config.Logger
	if logger == nil {
		logger = t.Logger()
	}
	s := &Server{t: t, config: config, logger: logger}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/stores", s.listStores)
	r.Route("/stores/{space}/{name}", func(r chi.Router) {
		r.Get("/", s.getValue)
		r.Put("/", s.setValue)
		r.Delete("/", s.removeValue)
		r.Post("/push", s.pushValue)
		r.Post("/actions/{action}", s.runAction)
		r.Get("/getters/{getter}", s.resolveGetter)
	})

	if s.config.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	}
	if s.config.Hub != nil {
		r.Handle("/sync", s.config.Hub)
	}
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on the configured address until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.config.Address,
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Address)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}
	s.logger.Info("server shutdown complete")
	return nil
}
