package web

import (
	"encoding/json"
	"io/fs"
	"net/http"

	"github.com/buemura/rook/internal/web/api"
	"github.com/buemura/rook/internal/web/pages"
	"github.com/go-chi/chi/v5"
)

// registerRoutes mounts all route groups on the server's router.
func (s *Server) registerRoutes() {
	pageHandlers := pages.NewPageHandlers(s.manager, s.store, s.defaults)
	apiHandlers := api.NewHandlers(s.manager, s.store, s.defaults)

	// Page routes
	s.router.Get("/", pageHandlers.Index)
	s.router.Get("/runs", pageHandlers.RunList)
	s.router.Get("/runs/{id}", pageHandlers.RunDetail)
	s.router.Get("/history", pageHandlers.History)
	s.router.Get("/history/{id}", pageHandlers.Record)
	s.router.NotFound(pageHandlers.NotFound)

	// Health check
	s.router.Get("/health", s.handleHealth)

	// REST API
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", apiHandlers.CreateRun)
		r.Get("/runs", apiHandlers.ListRuns)
		r.Get("/runs/{id}", apiHandlers.GetRun)
		r.Post("/runs/{id}/cancel", apiHandlers.CancelRun)
		r.Get("/runs/{id}/report", apiHandlers.GetRunReport)
		r.Delete("/runs/{id}", apiHandlers.DeleteRun)

		r.Get("/records", apiHandlers.ListRecords)
		r.Get("/records/{id}", apiHandlers.GetRecord)
		r.Delete("/records/{id}", apiHandlers.DeleteRecord)
	})

	// Embedded static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
