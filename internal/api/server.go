// Package api exposes the scanner, scan history, server registry and users
// over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/viniciushammett/go-weblog-analyzer/internal/auth"
	"github.com/viniciushammett/go-weblog-analyzer/internal/detector"
	"github.com/viniciushammett/go-weblog-analyzer/internal/ingest"
	"github.com/viniciushammett/go-weblog-analyzer/internal/logger"
	"github.com/viniciushammett/go-weblog-analyzer/internal/metrics"
	"github.com/viniciushammett/go-weblog-analyzer/internal/store"
)

var tracer = otel.Tracer("api")

// SkippedLinesHeader carries the number of unparseable lines of a scan.
const SkippedLinesHeader = "X-Skipped-Lines"

type Deps struct {
	Log      *logger.Logger
	Store    *store.Store
	Files    *ingest.Files
	Detector *detector.Detector
	Users    *auth.Users
	Guard    auth.Guard
}

type Config struct {
	Addr           string
	CORSOrigins    []string
	ReadTimeout    time.Duration
	MaxUploadBytes int64
}

type Server struct {
	d Deps
	c Config
}

func NewServer(d Deps, c Config) *Server {
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 256 << 20
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	return &Server{d: d, c: c}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, s.d.Log.HTTP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.c.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{SkippedLinesHeader},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { metrics.Handler().ServeHTTP(w, r) })

	r.Route("/api", func(ar chi.Router) {
		ar.Post("/auth/register", s.register)
		ar.Post("/auth/login", s.login)

		ar.Group(func(pr chi.Router) {
			pr.Use(s.d.Guard.Middleware)
			pr.Get("/model/status", s.modelStatus)
			pr.Post("/upload", s.upload)
			pr.Post("/scan/{filename}", s.scan)
			pr.Get("/stats/{filename}", s.stats)

			pr.Route("/history", func(hr chi.Router) {
				hr.Get("/", s.listHistory)
				hr.Post("/save", s.saveHistory)
				hr.Delete("/clear-all", s.clearHistory)
				hr.Get("/{id}", s.getHistory)
				hr.Delete("/{id}", s.deleteHistory)
			})

			pr.Route("/servers", func(sr chi.Router) {
				sr.Post("/", s.createServer)
				sr.Get("/user/{ownerID}", s.listServers)
				sr.Get("/{id}", s.getServer)
				sr.Delete("/{id}", s.deleteServer)
				sr.Get("/{id}/logs", s.serverLogs)
				sr.Get("/{id}/stats", s.serverStats)
				sr.Post("/{id}/analyze", s.analyze)
			})
		})
	})

	return otelhttp.NewHandler(r, "http.request",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("%s %s", r.Method, r.URL.Path)
		}),
	)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.c.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.c.ReadTimeout,
	}
	errc := make(chan error, 1)
	go func() {
		s.d.Log.Info().Str("addr", s.c.Addr).Msg("listening")
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// fail maps well-known errors to status codes; anything else is a 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, ingest.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ingest.ErrInvalidName), errors.Is(err, store.ErrInvalid),
		errors.Is(err, auth.ErrMissingFields), errors.Is(err, auth.ErrUserExists):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, auth.ErrInvalidCredentials):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	default:
		s.d.Log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return false
	}
	return true
}
