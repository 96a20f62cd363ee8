package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pixeon-io/pixeon/internal/auth"
	"github.com/pixeon-io/pixeon/internal/config"
	"github.com/pixeon-io/pixeon/internal/detection"
	"github.com/pixeon-io/pixeon/internal/history"
	"github.com/pixeon-io/pixeon/internal/storage"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100

	// room for multipart boundaries and headers on top of the file itself
	multipartOverhead = 1 << 20
)

// Deps are the services the HTTP layer dispatches to
type Deps struct {
	Auth      *auth.Service
	Detection *detection.Orchestrator
	History   *history.Manager
	Storage   *storage.Storage
	// MaxUploadBytes bounds the request body of POST /detect
	MaxUploadBytes int64
}

type Api struct {
	Config config.Config
	Router *chi.Mux

	deps Deps
	log  *slog.Logger
}

func NewApi(cfg config.Config, deps Deps, log *slog.Logger) (*Api, error) {
	if cfg.APIPort == 0 {
		return nil, errors.New("Must have at least a port to start API")
	}
	if deps.Auth == nil || deps.Detection == nil || deps.History == nil || deps.Storage == nil {
		return nil, errors.New("api: all services are required")
	}
	api := &Api{
		Config: cfg,
		Router: chi.NewRouter(),
		deps:   deps,
		log:    log,
	}

	api.setupRoutes()
	return api, nil
}

func (api *Api) setupRoutes() {
	r := api.Router

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   api.Config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/heartbeat"))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/", api.Root)

	if dir := api.deps.Storage.LocalDir(); dir != "" {
		fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(dir)))
		r.Handle("/uploads/*", fs)
	}

	api.mountRoutes(r)
	// the web frontend calls everything under /api
	r.Route("/api", api.mountRoutes)
}

func (api *Api) mountRoutes(r chi.Router) {
	r.Get("/health", api.Health)
	r.Post("/auth/register", api.RegisterHandler)
	r.Post("/auth/login", api.LoginHandler)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(api.deps.Auth))

		r.Get("/auth/me", api.MeHandler)
		r.Post("/detect", api.DetectHandler)
		r.Get("/history", api.ListHistoryHandler)
		r.Get("/history/{id}", api.GetHistoryHandler)
		r.Delete("/history/{id}", api.DeleteHistoryHandler)
	})
}

// Serve listens on the configured port until ctx is cancelled, then drains
// in-flight requests.
func (api *Api) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", api.Config.APIPort),
		Handler:           api.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		api.log.Info("starting API server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	api.log.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func (api *Api) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the Pixeon object detection API"})
}

func (api *Api) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
