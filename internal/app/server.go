package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/resumelens/resumelens/internal/api/handlers"
	appMiddleware "github.com/resumelens/resumelens/internal/api/middlewares"
	"github.com/resumelens/resumelens/internal/config"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, a *App) *Server {
	uploadHandler := handlers.NewUploadHandler(a.Store, a.Objects, a.Pool, cfg.MaxFileSize, a.log)
	jobHandler := handlers.NewJobHandler(a.Store)
	adminHandler := handlers.NewAdminHandler(a.Store, a.log)
	analysisHandler := handlers.NewAnalysisHandler(jobHandler, a.analyzer)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// API routes
	r.Route("/api", func(api chi.Router) {
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))

			protected.Post("/resumes/upload", uploadHandler.UploadResume)
			protected.Get("/resumes", jobHandler.ListResumes)
			protected.Get("/resumes/{id}", jobHandler.GetResume)
			protected.Get("/resumes/{id}/text", jobHandler.GetResumeText)
			protected.Post("/resumes/{id}/analyze", analysisHandler.AnalyzeResume)

			protected.Get("/admin/stats", adminHandler.GetStats)
			protected.Post("/admin/purge", adminHandler.Purge)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
