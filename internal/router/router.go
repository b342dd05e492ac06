package router

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/leca/dt-video-gen/internal/api"
	"github.com/leca/dt-video-gen/internal/handler"
)

// Server holds the application handler and HTTP router.
type Server struct {
	Handler *handler.Handler
	Router  chi.Router
}

// New creates a new Server with a fully configured chi router.
func New(h *handler.Handler, logger *slog.Logger) *Server {
	s := &Server{Handler: h}
	cfg := h.Config

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// CORS must be before other middleware to handle preflight OPTIONS.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.RequestLogger(logger))

	// Health check and metrics (no auth required).
	r.Get("/health", s.Health)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	}

	// Job routes.
	r.Group(func(r chi.Router) {
		r.Use(api.AuthMiddleware(cfg.AuthToken))

		r.Post("/generate", h.Generate)
		r.Get("/status/{id}", h.Status)
		r.Get("/download/{id}", h.Download)
		r.Post("/remix", h.Remix)

		r.Get("/jobs", h.ListJobs)
		r.Get("/jobs/{id}", h.GetJob)
	})

	s.Router = r
	return s
}

// Health returns a simple health-check response.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		slog.Error("failed to encode health response", "error", err)
	}
}
