// Package opsserver exposes liveness, readiness, metrics and engine cache
// state over HTTP for operators. It is not an application API.
package opsserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/koustreak/aigis/internal/enginecache"
	"github.com/koustreak/aigis/internal/logger"
)

const (
	routeHealth  = "/healthz"
	routeReady   = "/readyz"
	routeMetrics = "/metrics"
	routeEngines = "/debug/engines"

	pingTimeout = 2 * time.Second
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Address string
	// Ready lists the dependencies /readyz checks, by name.
	Ready   map[string]Pinger
	Metrics http.Handler
	Cache   *enginecache.Cache
	Log     *logger.Logger
}

type Server struct {
	srv *http.Server
	log *logger.Logger
}

func New(cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Address,
			Handler:           Routes(cfg),
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		log: log,
	}
}

// Routes builds the ops router.
func Routes(cfg Config) http.Handler {
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLog(log))

	r.Get(routeHealth, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get(routeReady, readyHandler(cfg.Ready))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, routeMetrics, cfg.Metrics)
	}
	if cfg.Cache != nil {
		r.Get(routeEngines, enginesHandler(cfg.Cache))
	}
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	errc := make(chan error, 1)
	go func() { errc <- s.srv.Serve(l) }()
	s.log.Infof("ops server listening on %s", l.Addr())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func readyHandler(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()

		status, checks := http.StatusOK, make(map[string]string, len(deps))
		for name, p := range deps {
			if err := p.Ping(ctx); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		writeJSON(w, status, checks)
	}
}

type engineEntry struct {
	UserID       int64 `json:"user_id"`
	ConnectionID int64 `json:"connection_id"`
}

func enginesHandler(cache *enginecache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		keys := cache.Keys()
		entries := make([]engineEntry, len(keys))
		for i, k := range keys {
			entries[i] = engineEntry{UserID: k.UserID, ConnectionID: k.ConnectionID}
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": cache.Len(), "engines": entries})
	}
}

func requestLog(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.HTTPEvent().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("ops request")
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
