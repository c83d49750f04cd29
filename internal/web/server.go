package web

import (
	"context"
	"embed"
	"errors"
	"net/http"
	"time"

	"github.com/buemura/rook/internal/store"
	"github.com/buemura/rook/internal/web/jobs"
	"github.com/buemura/rook/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

//go:embed static/*
var staticFS embed.FS

// Server is the HTTP server for the Rook web application.
type Server struct {
	router   chi.Router
	addr     string
	manager  *jobs.Manager
	store    *store.Store
	defaults types.ScanOptions
	log      logrus.FieldLogger
	http     *http.Server
}

// NewServer builds a new Server with middleware and routes configured. st may be
// nil when record storage is disabled.
func NewServer(addr string, exec jobs.Executor, st *store.Store, defaults types.ScanOptions, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		router:   chi.NewRouter(),
		addr:     addr,
		manager:  jobs.NewManager(exec, log),
		store:    st,
		defaults: defaults,
		log:      log.WithField("component", "web"),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.registerRoutes()

	return s
}

// Start begins listening on the configured address. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.WithField("addr", s.addr).Info("web server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and cancels every running run.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	if merr := s.manager.Shutdown(ctx); err == nil {
		err = merr
	}
	return err
}

// Router exposes the chi.Router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Manager exposes the run manager.
func (s *Server) Manager() *jobs.Manager {
	return s.manager
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Debug("request")
		}()
		next.ServeHTTP(ww, r)
	})
}
