// Package httpapi serves the online-devices dashboard API.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/unrolled/secure"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bavix/presence/internal/config"
	"github.com/bavix/presence/internal/metrics"
	"github.com/bavix/presence/internal/version"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultShutdownTimeout   = 5 * time.Second
)

type Server struct {
	cfg       config.HTTPConfig
	mux       *mux.Router
	hub       *Hub
	startTime time.Time
}

// NewServer builds the router. The hub receives /ws clients.
func NewServer(cfg config.HTTPConfig, api *APIHandler, hub *Hub) *Server {
	s := &Server{
		cfg:       cfg,
		mux:       mux.NewRouter(),
		hub:       hub,
		startTime: time.Now(),
	}

	s.mux.Use(MetricsMiddleware)

	v1 := s.mux.PathPrefix("/api/v1").Subrouter()
	api.RegisterRoutes(v1, RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))

	s.mux.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler returns the full middleware chain, as served by Start.
func (s *Server) Handler(ctx context.Context) http.Handler {
	chain := s.buildMiddlewareChain(ctx)

	// WebSocket upgrades bypass the wrappers so http.Hijacker stays available.
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			s.hub.ServeHTTP(w, r.WithContext(zerolog.Ctx(ctx).WithContext(r.Context())))

			return
		}

		chain.ServeHTTP(w, r)
	})
}

// Start listens in the background until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	// Fast-fail if port is occupied
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.cfg.Listen)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		MaxHeaderBytes:    s.cfg.MaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	zerolog.Ctx(ctx).Info().Str("addr", s.cfg.Listen).Msg("http listen")

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Err(err).Msg("http server stopped")
		}
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(shutdownCtx)
		_ = srv.Close()
	}()

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	state := "healthy"

	if !metrics.IsReady() {
		status = http.StatusServiceUnavailable
		state = "starting"
	}

	render.Status(r, status)
	render.JSON(w, r, map[string]any{
		"status":    state,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   version.Get().Version,
		"uptime":    time.Since(s.startTime).String(),
		"clients":   s.hub.Len(),
	})
}

func (s *Server) buildMiddlewareChain(ctx context.Context) http.Handler {
	logger := zerolog.Ctx(ctx)

	var h http.Handler = s.mux

	corsOpts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"*"},
	}
	if len(s.cfg.CORSOrigins) > 0 {
		corsOpts.AllowedOrigins = s.cfg.CORSOrigins
	} else {
		corsOpts.AllowOriginFunc = func(string) bool { return true }
	}

	h = cors.New(corsOpts).Handler(h)

	sec := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; img-src 'self' data:; connect-src 'self' ws: wss:",
	})
	h = sec.Handler(h)

	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("url", r.URL.String()).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("http")
	})(h)
	h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
	h = hlog.NewHandler(*logger)(h)
	h = chimw.RealIP(h)
	// Recoverer last to catch panics
	h = chimw.Recoverer(h)

	return otelhttp.NewHandler(h, "presence")
}
