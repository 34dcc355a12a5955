package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/b-cal/apiserver/config"
	"github.com/b-cal/apiserver/internal/auth"
	"github.com/b-cal/apiserver/internal/db"
	"github.com/b-cal/apiserver/internal/handlers"
	"github.com/b-cal/apiserver/internal/mq"
	"github.com/b-cal/apiserver/internal/services"
	"github.com/b-cal/apiserver/internal/storage"
	"github.com/b-cal/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     http.Handler
	db         *sql.DB
	queue      *mq.MQ
	logger     *slog.Logger
}

// Deps are the backends the HTTP API runs on. Objects and Events may be nil.
type Deps struct {
	Users   services.UserRepository
	Entries services.CalendarRepository
	Objects services.ObjectStore
	Events  services.EventPublisher
	Logger  *slog.Logger
}

// New connects Postgres and the optional broker and object store, then
// constructs a Server listening on cfg.ServerPort.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Auth.Validate(); err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	var events services.EventPublisher = services.NopPublisher{}
	if queue != nil {
		events = services.NewMQPublisher(queue, cfg.MQ.EventsChannel, logger)
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		if queue != nil {
			_ = queue.Close()
		}
		_ = dbConn.Close()
		return nil, err
	}

	deps := Deps{
		Users:   store.NewUserRepository(dbConn),
		Entries: store.NewCalendarRepository(dbConn),
		Events:  events,
		Logger:  logger,
	}
	// A nil *storage.Storage must stay an untyped nil interface.
	if objects != nil {
		deps.Objects = objects
	}

	router, err := NewHandler(cfg, deps)
	if err != nil {
		return nil, err
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
		logger:     logger,
	}, nil
}

// NewHandler builds the routed API over deps.
func NewHandler(cfg config.Config, deps Deps) (http.Handler, error) {
	if err := cfg.Auth.Validate(); err != nil {
		return nil, err
	}
	if deps.Users == nil || deps.Entries == nil {
		return nil, errors.New("user and calendar repositories are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	issuer := auth.NewTokenIssuer(cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	authService := services.NewAuthService(deps.Users, auth.NewBcryptHasher(), issuer, deps.Events, logger)
	userService := services.NewUserService(deps.Users)
	calendarService := services.NewCalendarService(deps.Entries, deps.Events)
	exportService := services.NewExportService(deps.Entries, deps.Objects, deps.Events)

	guards := handlers.NewGuards(authService, issuer, logger)
	authHandler := handlers.NewAuthHandler(authService, userService, issuer, cfg.IsProduction(), logger)
	calendarHandler := handlers.NewCalendarHandler(calendarService, exportService, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		handlers.RequestLogger(logger),
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{cfg.FrontendURL},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler, guards)
	})
	router.Route("/calendar", func(r chi.Router) {
		handlers.CalendarRouter(r, calendarHandler, guards)
	})
	return router, nil
}

// Router exposes the routed handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and then releases the broker and
// database connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.queue != nil {
		if cerr := s.queue.Close(); cerr != nil {
			s.logger.Warn("close mq failed", "err", cerr)
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
